// Package conflict implements the Conflict Detector (C5): pairwise,
// time-aligned sampling over candidate and committed trajectories to find
// spatio-temporal separation violations (§4.5). It is grounded on the same
// sampled-segment approach geofence.SegmentCrossesNoFly uses for static
// airspace, generalized here to a moving pair of trajectories compared at
// synchronized sample times rather than a fixed geofence.
package conflict

import (
	"sort"

	"github.com/google/uuid"

	"github.com/picogrid/utm-core/pkg/config"
	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/models"
)

// Candidate is a trajectory not yet committed to the store, checked
// against every trajectory already active (§4.5 "candidate vs active").
type Candidate struct {
	MissionID  uuid.UUID
	Trajectory models.Trajectory
}

// Detector finds conflicts between trajectories using the configured
// separation minima and sample resolution.
type Detector struct {
	cfg *config.Config
}

// New creates a Detector bound to cfg's HorizontalSeparationM,
// VerticalSeparationM and TimeResolutionS.
func New(cfg *config.Config) *Detector {
	return &Detector{cfg: cfg}
}

// CheckPair reports the earliest conflict between a and b, sampling at
// cfg.TimeResolutionS over their overlapping time span (§4.5 "Sampling").
// Two trajectories that never overlap in time never conflict. Per §4.5,
// only the first violating sample for the pair is reported — never more
// than one Conflict per pair.
func (d *Detector) CheckPair(idA uuid.UUID, a models.Trajectory, idB uuid.UUID, b models.Trajectory) []models.Conflict {
	aStart, aEnd := a.TimeSpan()
	bStart, bEnd := b.TimeSpan()

	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if start > end {
		return nil
	}

	dt := d.cfg.TimeResolutionS
	if dt <= 0 {
		dt = 1
	}

	sampleAt := func(t float64) (models.Conflict, bool) {
		pa := geo.InterpolatePosition(a, t)
		pb := geo.InterpolatePosition(b, t)
		hSep := geo.HorizontalDistance(pa, pb)
		vSep := geo.VerticalDistance(pa, pb)
		if hSep < d.cfg.HorizontalSeparationM && vSep < d.cfg.VerticalSeparationM {
			return models.Conflict{
				MissionA: idA,
				MissionB: idB,
				PointA:   pa,
				PointB:   pb,
				TimeS:    t,
				HSep:     hSep,
				VSep:     vSep,
			}, true
		}
		return models.Conflict{}, false
	}

	for t := start; t <= end; t += dt {
		if c, ok := sampleAt(t); ok {
			return []models.Conflict{c}
		}
	}
	// Sample the exact end of the overlap window too, since the dt-stepped
	// loop above can stop short of it by a fractional step.
	if c, ok := sampleAt(end); ok {
		return []models.Conflict{c}
	}
	return nil
}

// CheckAgainstActive checks candidate against every active trajectory and
// returns all conflicts found, sorted by time then mission id for
// deterministic resolver behavior.
func (d *Detector) CheckAgainstActive(candidate Candidate, active []Candidate) []models.Conflict {
	var out []models.Conflict
	for _, other := range active {
		if other.MissionID == candidate.MissionID {
			continue
		}
		out = append(out, d.CheckPair(candidate.MissionID, candidate.Trajectory, other.MissionID, other.Trajectory)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeS != out[j].TimeS {
			return out[i].TimeS < out[j].TimeS
		}
		return out[i].MissionB.String() < out[j].MissionB.String()
	})
	return out
}
