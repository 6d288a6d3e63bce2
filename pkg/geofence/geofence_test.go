package geofence

import (
	"math"
	"testing"

	"github.com/picogrid/utm-core/pkg/models"
)

func testZones() []models.Zone {
	return []models.Zone{
		{
			Name:       "airport-no-fly",
			Kind:       models.ZoneNoFly,
			Polygon:    models.BBox{MinLat: 10, MaxLat: 11, MinLon: 10, MaxLon: 11},
			Multiplier: math.Inf(1),
		},
		{
			Name:       "hospital-sensitive",
			Kind:       models.ZoneSensitive,
			Polygon:    models.BBox{MinLat: 20, MaxLat: 21, MinLon: 20, MaxLon: 21},
			Multiplier: 3.0,
		},
		{
			Name:       "school-sensitive",
			Kind:       models.ZoneSensitive,
			Polygon:    models.BBox{MinLat: 20.5, MaxLat: 21.5, MinLon: 20.5, MaxLon: 21.5},
			Multiplier: 2.0,
		},
	}
}

func TestClassifyOutsideAnyZone(t *testing.T) {
	idx := New(testZones())
	forbidden, mult := idx.Classify(0, 0)
	if forbidden {
		t.Error("expected unrestricted point to be allowed")
	}
	if mult != 1.0 {
		t.Errorf("expected multiplier 1.0, got %f", mult)
	}
}

func TestClassifyNoFlyBoundaryIsForbidden(t *testing.T) {
	idx := New(testZones())
	forbidden, mult := idx.Classify(10, 10) // exact corner of the no-fly box
	if !forbidden {
		t.Error("expected boundary point of a NO_FLY zone to be forbidden")
	}
	if !math.IsInf(mult, 1) {
		t.Errorf("expected +Inf multiplier for NO_FLY, got %f", mult)
	}
}

func TestClassifySensitiveZonesMultiplyStack(t *testing.T) {
	idx := New(testZones())
	// (20.6, 20.6) falls inside both sensitive rectangles.
	forbidden, mult := idx.Classify(20.6, 20.6)
	if forbidden {
		t.Error("sensitive zones must not be forbidden")
	}
	want := 3.0 * 2.0
	if mult != want {
		t.Errorf("expected stacked multiplier %f, got %f", want, mult)
	}
}

func TestNewCopiesZoneSliceDefensively(t *testing.T) {
	zones := testZones()
	idx := New(zones)
	zones[0].Polygon = models.BBox{} // would un-forbid (10,10) if the slice were shared

	_, mult := idx.Classify(10, 10)
	if !math.IsInf(mult, 1) {
		t.Error("Index must not observe mutation of the caller's zone slice after New")
	}
}

func TestSegmentCrossesNoFly(t *testing.T) {
	idx := New(testZones())

	a := models.Point4D{Lat: 9.5, Lon: 9.5}
	b := models.Point4D{Lat: 11.5, Lon: 11.5}
	if !idx.SegmentCrossesNoFly(a, b, 10) {
		t.Error("expected segment crossing the no-fly box to be flagged")
	}

	c := models.Point4D{Lat: 0, Lon: 0}
	d := models.Point4D{Lat: 1, Lon: 1}
	if idx.SegmentCrossesNoFly(c, d, 10) {
		t.Error("expected segment far from any zone to be clear")
	}
}
