package planner

import (
	"container/heap"
	"math"
	"testing"

	"github.com/picogrid/utm-core/pkg/config"
	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/geofence"
	"github.com/picogrid/utm-core/pkg/models"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.OperationalBounds = models.BBox{MinLat: 36, MaxLat: 39, MinLon: -124, MaxLon: -121}
	return cfg
}

func TestPlanFindsDirectPathInOpenAirspace(t *testing.T) {
	cfg := testConfig()
	idx := geofence.New(nil)
	p := New(cfg, idx)

	start := models.Point4D{Lat: 37.70, Lon: -122.40}
	goal := geo.OffsetMeters(start, 500, 0) // 500m due east

	traj, err := p.Plan(Request{Start: start, Goal: goal, StartTimeS: 0})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(traj.Waypoints) < 2 {
		t.Fatalf("expected at least 2 waypoints, got %d", len(traj.Waypoints))
	}

	first, last := traj.Start(), traj.End()
	if first.Lat != start.Lat || first.Lon != start.Lon {
		t.Errorf("expected first waypoint to equal start, got %+v", first)
	}
	if math.Abs(last.Lat-goal.Lat) > 1e-9 || math.Abs(last.Lon-goal.Lon) > 1e-9 {
		t.Errorf("expected last waypoint snapped to goal, got %+v", last)
	}
	if traj.Waypoints[len(traj.Waypoints)-1].SpeedMps != 0 {
		t.Error("expected the last waypoint's speed to be 0")
	}
}

func TestPlanUsesSingleLaneForWholeTrajectory(t *testing.T) {
	cfg := testConfig()
	idx := geofence.New(nil)
	p := New(cfg, idx)

	start := models.Point4D{Lat: 37.70, Lon: -122.40}
	goal := geo.OffsetMeters(start, 0, 600) // due north => north-south lanes

	traj, err := p.Plan(Request{Start: start, Goal: goal, StartTimeS: 0})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	wantLane := cfg.DirectionAltitudeMap.NorthSouth[0]
	for i, wp := range traj.Waypoints {
		if wp.AltM != wantLane {
			t.Errorf("waypoint %d: expected lane altitude %.1f, got %.1f", i, wantLane, wp.AltM)
		}
	}
}

func TestPlanRejectsBlockedEndpoint(t *testing.T) {
	cfg := testConfig()
	noFlyBox := models.BBox{MinLat: 37.0, MaxLat: 37.1, MinLon: -122.1, MaxLon: -122.0}
	idx := geofence.New([]models.Zone{{
		Name: "blocked", Kind: models.ZoneNoFly, Polygon: noFlyBox, Multiplier: math.Inf(1),
	}})
	p := New(cfg, idx)

	start := models.Point4D{Lat: 37.05, Lon: -122.05} // inside the no-fly box
	goal := models.Point4D{Lat: 37.20, Lon: -122.20}

	_, err := p.Plan(Request{Start: start, Goal: goal})
	if err != ErrBlockedEndpoint {
		t.Errorf("expected ErrBlockedEndpoint, got %v", err)
	}
}

func TestPlanNoLaneAvailableWhenAllForbidden(t *testing.T) {
	cfg := testConfig()
	idx := geofence.New(nil)
	p := New(cfg, idx)

	start := models.Point4D{Lat: 37.70, Lon: -122.40}
	goal := geo.OffsetMeters(start, 500, 0)

	_, err := p.Plan(Request{Start: start, Goal: goal, ForbiddenLanes: cfg.DirectionAltitudeMap.EastWest})
	if err != ErrNoLaneAvailable {
		t.Errorf("expected ErrNoLaneAvailable, got %v", err)
	}
}

func TestPlanExhaustsWithTinyExpansionBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxExpansions = 1
	idx := geofence.New(nil)
	p := New(cfg, idx)

	start := models.Point4D{Lat: 37.70, Lon: -122.40}
	goal := geo.OffsetMeters(start, 5000, 5000)

	_, err := p.Plan(Request{Start: start, Goal: goal})
	if err != ErrExhausted {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
}

func TestDynamicPenaltyAtPenalizesNearbyObstacle(t *testing.T) {
	cfg := testConfig()
	idx := geofence.New(nil)
	p := New(cfg, idx)

	obstacle := models.Trajectory{Waypoints: []models.Waypoint{
		{Point4D: models.Point4D{Lat: 37.70, Lon: -122.40, AltM: 50, TimeS: 0}},
		{Point4D: models.Point4D{Lat: 37.70, Lon: -122.40, AltM: 50, TimeS: 100}},
	}}

	near := models.Point4D{Lat: 37.70, Lon: -122.40, AltM: 50, TimeS: 50}
	far := geo.OffsetMeters(near, 5000, 0)
	far.TimeS = 50

	nearPenalty := p.dynamicPenaltyAt(near, []models.Trajectory{obstacle}, 200)
	farPenalty := p.dynamicPenaltyAt(far, []models.Trajectory{obstacle}, 200)

	if nearPenalty <= 0 {
		t.Error("expected a positive penalty near the obstacle")
	}
	if farPenalty != 0 {
		t.Errorf("expected zero penalty far from the obstacle, got %f", farPenalty)
	}
}

func TestOpenHeapOrdersByFThenHThenSeq(t *testing.T) {
	h := &openHeap{}
	heap.Init(h)
	items := []*openItem{
		{f: 5, h: 2, seq: 1},
		{f: 3, h: 9, seq: 0},
		{f: 3, h: 1, seq: 2},
		{f: 3, h: 1, seq: 1},
	}
	for _, it := range items {
		heap.Push(h, it)
	}

	order := make([]*openItem, 0, len(items))
	for h.Len() > 0 {
		order = append(order, heap.Pop(h).(*openItem))
	}

	if order[0].f != 3 || order[0].h != 1 || order[0].seq != 1 {
		t.Errorf("expected lowest (f,h,seq) item first, got %+v", order[0])
	}
	if order[1].f != 3 || order[1].h != 1 || order[1].seq != 2 {
		t.Errorf("expected tie broken by seq next, got %+v", order[1])
	}
}
