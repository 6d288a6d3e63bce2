// Package geofence holds the immutable set of static airspace constraints
// and answers point classification queries. The zone set is loaded once at
// startup (§3 lifecycle) and never mutated afterward, so Index needs no
// internal locking once constructed.
package geofence

import (
	"math"

	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/models"
)

// Index answers (forbidden?, cost multiplier) queries against a static
// zone set. Zones are checked with a linear scan, which the spec
// explicitly allows at PoC scale; the interface is small enough that an
// R-tree-backed implementation could be substituted without callers
// noticing (see the note on strictlyInside below).
type Index struct {
	zones []models.Zone
}

// New builds an Index over zones. The zone slice is copied so later
// mutation by the caller cannot violate the "immutable post-init"
// invariant from §3.
func New(zones []models.Zone) *Index {
	cp := make([]models.Zone, len(zones))
	copy(cp, zones)
	return &Index{zones: cp}
}

// Zones returns a copy of the configured zone set, for snapshotting/tests.
func (idx *Index) Zones() []models.Zone {
	cp := make([]models.Zone, len(idx.zones))
	copy(cp, idx.zones)
	return cp
}

// Classify returns whether (lat,lon) is forbidden, and the combined cost
// multiplier applicable at that point. Per §4.2:
//   - any NO_FLY zone containing the point (strict-inside semantics: the
//     boundary itself is forbidden) makes the point forbidden, multiplier +Inf.
//   - otherwise, the multiplier is the product of every SENSITIVE zone that
//     contains the point (inclusive-of-boundary semantics); 1.0 if none match.
//
// Classify is a pure function of the immutable zone set, so it can be
// called concurrently from planner worker goroutines without locking.
func (idx *Index) Classify(lat, lon float64) (forbidden bool, multiplier float64) {
	multiplier = 1.0
	for _, z := range idx.zones {
		switch z.Kind {
		case models.ZoneNoFly:
			if strictlyInside(z.Polygon, lat, lon) {
				return true, math.Inf(1)
			}
		case models.ZoneSensitive:
			if geo.BBoxContains(z.Polygon, lat, lon) {
				multiplier *= z.Multiplier
			}
		}
	}
	return false, multiplier
}

// ClassifyPoint is a convenience wrapper over Classify for a Point4D.
func (idx *Index) ClassifyPoint(p models.Point4D) (forbidden bool, multiplier float64) {
	return idx.Classify(p.Lat, p.Lon)
}

// SegmentCrossesNoFly reports whether any point sampled along the straight
// line from a to b (inclusive of both endpoints) falls within a NO_FLY
// zone, i.e. a check of the geofence-respect invariant (§8 property 2) for
// one segment. The planner does not call it: its edge rule classifies only
// the two endpoints of each edge.
func (idx *Index) SegmentCrossesNoFly(a, b models.Point4D, samples int) bool {
	if samples < 2 {
		samples = 2
	}
	for i := 0; i <= samples; i++ {
		frac := float64(i) / float64(samples)
		lat := a.Lat + (b.Lat-a.Lat)*frac
		lon := a.Lon + (b.Lon-a.Lon)*frac
		if forbidden, _ := idx.Classify(lat, lon); forbidden {
			return true
		}
	}
	return false
}

// strictlyInside implements the NO_FLY boundary-is-forbidden rule: a point
// exactly on the rectangle's edge counts as inside (forbidden), matching
// "strict-inside semantics for NO_FLY (boundary is forbidden)" in §4.2.
// For an axis-aligned rectangle this is identical to inclusive containment;
// the distinct name documents the intended contract for a future polygon
// implementation (e.g. an R-tree-backed ray-casting index, as used by the
// reference geofence engine this package generalizes from) where boundary
// handling genuinely differs from interior handling.
func strictlyInside(box models.BBox, lat, lon float64) bool {
	return geo.BBoxContains(box, lat, lon)
}
