// Package models holds the shared data types for the UTM core: points,
// waypoints, trajectories, zones, vehicles, missions, and conflicts.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Point4D is a position in space and time: WGS-84 latitude/longitude in
// degrees, altitude in meters AGL, and seconds since the trajectory epoch.
type Point4D struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	AltM  float64 `json:"alt_m"`
	TimeS float64 `json:"t_s"`
}

// Waypoint is a Point4D plus the commanded speed on the segment departing it.
// The last waypoint of a trajectory always carries SpeedMps == 0.
type Waypoint struct {
	Point4D
	SpeedMps float64 `json:"speed_mps"`
}

// Trajectory is an ordered sequence of waypoints. Times strictly increase;
// the first waypoint's horizontal position is the pickup, the last is the
// delivery.
type Trajectory struct {
	Waypoints []Waypoint `json:"waypoints"`
}

// Start returns the first waypoint's Point4D.
func (t Trajectory) Start() Point4D { return t.Waypoints[0].Point4D }

// End returns the last waypoint's Point4D.
func (t Trajectory) End() Point4D { return t.Waypoints[len(t.Waypoints)-1].Point4D }

// TimeSpan returns [t_start, t_end] for the trajectory.
func (t Trajectory) TimeSpan() (start, end float64) {
	return t.Waypoints[0].TimeS, t.Waypoints[len(t.Waypoints)-1].TimeS
}

// ZoneKind distinguishes prohibited airspace from cost-weighted airspace.
type ZoneKind string

const (
	ZoneNoFly     ZoneKind = "NO_FLY"
	ZoneSensitive ZoneKind = "SENSITIVE"
)

// BBox is an axis-aligned lat/lon rectangle, inclusive of its edges.
type BBox struct {
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MinLon float64 `yaml:"min_lon" json:"min_lon"`
	MaxLon float64 `yaml:"max_lon" json:"max_lon"`
}

// Zone is a static airspace constraint: either an absolute NO_FLY rectangle
// (Multiplier is always +Inf) or a SENSITIVE rectangle carrying a cost
// multiplier >= 1.
type Zone struct {
	Name       string   `yaml:"name" json:"name"`
	Kind       ZoneKind `yaml:"kind" json:"kind"`
	Polygon    BBox     `yaml:"polygon" json:"polygon"`
	Multiplier float64  `yaml:"multiplier" json:"multiplier"`
}

// VehicleState is the lifecycle state of a delivery vehicle.
type VehicleState string

const (
	VehicleIdle        VehicleState = "IDLE"
	VehicleAssigned    VehicleState = "ASSIGNED"
	VehicleInFlight    VehicleState = "IN_FLIGHT"
	VehicleReturning   VehicleState = "RETURNING"
	VehicleUnavailable VehicleState = "UNAVAILABLE"
)

// Vehicle is a single delivery drone tracked by the trajectory store.
type Vehicle struct {
	ID           int          `json:"id"`
	State        VehicleState `json:"state"`
	Position     Point4D      `json:"position"`
	Battery      float64      `json:"battery"` // 0..1, telemetry-only
	MissionID    *uuid.UUID   `json:"mission_id,omitempty"`
	LastUpdateAt time.Time    `json:"last_update_at"`
}

// MissionPhase is the lifecycle phase of a committed mission.
type MissionPhase string

const (
	PhasePlanned       MissionPhase = "PLANNED"
	PhaseEnRoutePickup MissionPhase = "EN_ROUTE_PICKUP"
	PhaseCarrying      MissionPhase = "CARRYING"
	PhaseDelivered     MissionPhase = "DELIVERED"
	PhaseFailed        MissionPhase = "FAILED"
)

// terminalPhases lists phases after which a mission no longer occupies its
// vehicle or its trajectory's slot in the store.
var terminalPhases = map[MissionPhase]bool{
	PhaseDelivered: true,
	PhaseFailed:    true,
}

// IsTerminal reports whether phase is a terminal phase.
func (p MissionPhase) IsTerminal() bool { return terminalPhases[p] }

// legalTransitions enumerates the allowed phase transitions for
// mark_mission_phase.
var legalTransitions = map[MissionPhase][]MissionPhase{
	PhasePlanned:       {PhaseEnRoutePickup, PhaseFailed},
	PhaseEnRoutePickup: {PhaseCarrying, PhaseFailed},
	PhaseCarrying:      {PhaseDelivered, PhaseFailed},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to MissionPhase) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Mission is a committed delivery: a vehicle assignment plus its planned
// trajectory and current phase.
type Mission struct {
	ID         uuid.UUID    `json:"id"`
	VehicleID  int          `json:"vehicle_id"`
	Pickup     Point4D      `json:"pickup"`
	Delivery   Point4D      `json:"delivery"`
	Trajectory Trajectory   `json:"trajectory"`
	Phase      MissionPhase `json:"phase"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Conflict records a spatio-temporal interference between two committed
// (or candidate) trajectories.
type Conflict struct {
	MissionA uuid.UUID `json:"mission_a"`
	MissionB uuid.UUID `json:"mission_b"`
	PointA   Point4D   `json:"point_a"`
	PointB   Point4D   `json:"point_b"`
	TimeS    float64   `json:"t"`
	HSep     float64   `json:"h_sep"`
	VSep     float64   `json:"v_sep"`
}

// Event is the tagged union of notifications published to external
// observers (§6 subscribe_events). The Kind field discriminates the
// payload: Vehicle for VehicleUpdated, Mission for MissionCreated, Mission
// and Phase for MissionPhaseChanged, Conflicts for ConflictDetected.
type EventKind string

const (
	EventVehicleUpdated      EventKind = "VehicleUpdated"
	EventMissionCreated      EventKind = "MissionCreated"
	EventMissionPhaseChanged EventKind = "MissionPhaseChanged"
	EventConflictDetected    EventKind = "ConflictDetected"
)

type Event struct {
	Kind      EventKind    `json:"kind"`
	At        time.Time    `json:"at"`
	Vehicle   *Vehicle     `json:"vehicle,omitempty"`
	Mission   *Mission     `json:"mission,omitempty"`
	Phase     MissionPhase `json:"phase,omitempty"`
	Conflicts []Conflict   `json:"conflicts,omitempty"`
}
