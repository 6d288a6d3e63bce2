// Package trajectorystore implements the Trajectory Store (C3): the single
// mutable shared resource of the UTM core (§5, §9 "Global mutable state").
// It owns committed trajectories and vehicle lifecycle state behind one
// mutex, generalizing the teacher's sync.RWMutex-guarded
// SimulationController/UpdateBuffer pattern (cmd/drone-swarm/controllers,
// cmd/drone-swarm/core/update_buffer.go) from periodic-flush telemetry
// batching to the UTM core's read-snapshot / serialized-commit shape.
package trajectorystore

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/utm-core/pkg/events"
	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/models"
	"github.com/picogrid/utm-core/pkg/utmerr"
)

// ErrConflictOnCommit is returned by CommitIfConflictFree when a fresh
// conflict appears between the resolver's last check and the commit
// attempt (§5 "optimistic commit").
var ErrConflictOnCommit = errors.New("trajectorystore: conflict detected at commit")

// farFuture bounds an "all active missions" query without a real horizon.
const farFuture = 1e18

// ActiveTrajectory pairs a committed mission's id with its trajectory, the
// shape C4 (planner) and C5 (detector) consume as "dynamic obstacles".
type ActiveTrajectory struct {
	MissionID  uuid.UUID
	Trajectory models.Trajectory
}

// Store holds committed missions and vehicle state. All mutating
// operations are serialized through mu (§5: "commits are serialized
// through a single critical section"); readers take a read lock and see a
// consistent snapshot.
type Store struct {
	mu       sync.RWMutex
	vehicles map[int]*models.Vehicle
	reserved map[int]bool
	missions map[uuid.UUID]*models.Mission
	bus      *events.Bus
}

// New creates a Store seeded with the given vehicles; a vehicle whose State
// is empty starts IDLE, any other State is kept as given.
func New(vehicles []models.Vehicle, bus *events.Bus) *Store {
	s := &Store{
		vehicles: make(map[int]*models.Vehicle, len(vehicles)),
		reserved: make(map[int]bool),
		missions: make(map[uuid.UUID]*models.Mission),
		bus:      bus,
	}
	for i := range vehicles {
		v := vehicles[i]
		if v.State == "" {
			v.State = models.VehicleIdle
		}
		s.vehicles[v.ID] = &v
	}
	return s
}

// AssignIdleVehicle selects the IDLE, unreserved vehicle minimizing
// horizontal distance to pickup (ties broken by lowest vehicle id), per
// §4.3, and provisionally reserves it so a concurrent planning attempt
// cannot pick the same vehicle. The reservation is not a Vehicle.State
// change — only Insert performs the IDLE -> ASSIGNED transition (§3) — so
// ReleaseVehicle can undo it cheaply on any non-success exit (§7).
func (s *Store) AssignIdleVehicle(pickup models.Point4D) (vehicleID int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	bestDistSq := 0.0
	for id, v := range s.vehicles {
		if v.State != models.VehicleIdle || s.reserved[id] {
			continue
		}
		d := geo.HorizontalDistanceSq(v.Position, pickup)
		if best == -1 || d < bestDistSq || (d == bestDistSq && id < best) {
			best = id
			bestDistSq = d
		}
	}
	if best == -1 {
		return 0, false
	}
	s.reserved[best] = true
	return best, true
}

// ReleaseVehicle drops a provisional reservation made by AssignIdleVehicle
// without changing vehicle state, used on every resolver failure path.
func (s *Store) ReleaseVehicle(vehicleID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, vehicleID)
}

// insertLocked performs the mutation half of a commit; the caller must
// already hold s.mu for writing.
func (s *Store) insertLocked(mission models.Mission) (models.Mission, models.Vehicle, error) {
	v, ok := s.vehicles[mission.VehicleID]
	if !ok {
		return models.Mission{}, models.Vehicle{}, utmerr.ErrUnknownVehicle
	}
	if v.State != models.VehicleIdle {
		return models.Mission{}, models.Vehicle{}, utmerr.ErrNoVehicle
	}

	v.State = models.VehicleAssigned
	id := mission.ID
	v.MissionID = &id
	v.LastUpdateAt = time.Now()
	delete(s.reserved, mission.VehicleID)

	mCopy := mission
	mCopy.Phase = models.PhasePlanned
	mCopy.CreatedAt = time.Now()
	s.missions[mission.ID] = &mCopy

	return mCopy, *v, nil
}

// Insert atomically commits a mission: it rejects if the vehicle is not
// IDLE, otherwise transitions the vehicle IDLE -> ASSIGNED and records the
// mission, publishing MissionCreated (§4.6 step 7).
func (s *Store) Insert(mission models.Mission) error {
	s.mu.Lock()
	mCopy, vSnapshot, err := s.insertLocked(mission)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(models.Event{Kind: models.EventMissionCreated, At: time.Now(), Mission: &mCopy})
		s.bus.Publish(models.Event{Kind: models.EventVehicleUpdated, At: time.Now(), Vehicle: &vSnapshot})
	}
	return nil
}

// CommitIfConflictFree implements the §5 optimistic-commit critical
// section: it re-snapshots the live active set, re-runs detect against it,
// and only commits the mission if detect still reports no conflicts — all
// under one lock, so no concurrent SubmitDelivery can slip a colliding
// trajectory in between the resolver's last check and this commit. If
// detect reports conflicts, the mission is not committed and the caller
// (the resolver) is expected to restart resolution against the now-current
// active set (§5 "commit or restart once").
func (s *Store) CommitIfConflictFree(mission models.Mission, detect func([]ActiveTrajectory) []models.Conflict) ([]models.Conflict, error) {
	s.mu.Lock()

	active := s.activeLocked(0, farFuture)
	if conflicts := detect(active); len(conflicts) > 0 {
		s.mu.Unlock()
		return conflicts, ErrConflictOnCommit
	}

	mCopy, vSnapshot, err := s.insertLocked(mission)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(models.Event{Kind: models.EventMissionCreated, At: time.Now(), Mission: &mCopy})
		s.bus.Publish(models.Event{Kind: models.EventVehicleUpdated, At: time.Now(), Vehicle: &vSnapshot})
	}
	return nil, nil
}

// Remove releases a mission's trajectory slot and its vehicle, sending the
// vehicle to IDLE (successful/cancelled outcomes) or UNAVAILABLE (hard
// failure outcomes), per §3's "removed when a mission reaches a terminal
// phase".
func (s *Store) Remove(missionID uuid.UUID, outcome models.VehicleState) error {
	s.mu.Lock()

	m, ok := s.missions[missionID]
	if !ok {
		s.mu.Unlock()
		return utmerr.ErrUnknownMission
	}
	delete(s.missions, missionID)

	var vSnapshot *models.Vehicle
	if v, ok := s.vehicles[m.VehicleID]; ok {
		v.State = outcome
		v.MissionID = nil
		v.LastUpdateAt = time.Now()
		snap := *v
		vSnapshot = &snap
	}
	s.mu.Unlock()

	if s.bus != nil && vSnapshot != nil {
		s.bus.Publish(models.Event{Kind: models.EventVehicleUpdated, At: time.Now(), Vehicle: vSnapshot})
	}
	return nil
}

// activeLocked is ActiveBetween's body; the caller must already hold s.mu
// (for reading or writing).
func (s *Store) activeLocked(tStart, tEnd float64) []ActiveTrajectory {
	out := make([]ActiveTrajectory, 0, len(s.missions))
	for id, m := range s.missions {
		if m.Phase.IsTerminal() {
			continue
		}
		mStart, mEnd := m.Trajectory.TimeSpan()
		if mStart <= tEnd && mEnd >= tStart {
			out = append(out, ActiveTrajectory{MissionID: id, Trajectory: m.Trajectory})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID.String() < out[j].MissionID.String() })
	return out
}

// ActiveBetween returns committed trajectories whose time span overlaps
// [tStart, tEnd], the dynamic-obstacle input to C4 and C5 (§4.3).
func (s *Store) ActiveBetween(tStart, tEnd float64) []ActiveTrajectory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(tStart, tEnd)
}

// ListVehicles returns a snapshot of every tracked vehicle.
func (s *Store) ListVehicles() []models.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListMissions returns a snapshot of every tracked mission.
func (s *Store) ListMissions() []models.Mission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Mission, 0, len(s.missions))
	for _, m := range s.missions {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// UpdateVehicleTelemetry applies an externally reported position/battery
// update (§6 update_vehicle_telemetry).
func (s *Store) UpdateVehicleTelemetry(vehicleID int, pos models.Point4D, battery float64) error {
	s.mu.Lock()
	v, ok := s.vehicles[vehicleID]
	if !ok {
		s.mu.Unlock()
		return utmerr.ErrUnknownVehicle
	}
	v.Position = pos
	v.Battery = battery
	v.LastUpdateAt = time.Now()
	snap := *v
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(models.Event{Kind: models.EventVehicleUpdated, At: time.Now(), Vehicle: &snap})
	}
	return nil
}

// MarkMissionPhase applies a phase transition (§6 mark_mission_phase),
// releasing the vehicle to IDLE if the new phase is terminal-success
// (DELIVERED) or to UNAVAILABLE if terminal-failure (FAILED).
func (s *Store) MarkMissionPhase(missionID uuid.UUID, phase models.MissionPhase) error {
	s.mu.Lock()

	m, ok := s.missions[missionID]
	if !ok {
		s.mu.Unlock()
		return utmerr.ErrUnknownMission
	}
	if !models.CanTransition(m.Phase, phase) {
		s.mu.Unlock()
		return utmerr.ErrIllegalTransition
	}
	m.Phase = phase
	mSnapshot := *m

	var vSnapshot *models.Vehicle
	if phase.IsTerminal() {
		if v, ok := s.vehicles[m.VehicleID]; ok {
			if phase == models.PhaseDelivered {
				v.State = models.VehicleIdle
			} else {
				v.State = models.VehicleUnavailable
			}
			v.MissionID = nil
			v.LastUpdateAt = time.Now()
			snap := *v
			vSnapshot = &snap
		}
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(models.Event{Kind: models.EventMissionPhaseChanged, At: time.Now(), Mission: &mSnapshot, Phase: phase})
		if vSnapshot != nil {
			s.bus.Publish(models.Event{Kind: models.EventVehicleUpdated, At: time.Now(), Vehicle: vSnapshot})
		}
	}
	return nil
}

// Mission returns a snapshot of one mission by id.
func (s *Store) Mission(id uuid.UUID) (models.Mission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.missions[id]
	if !ok {
		return models.Mission{}, false
	}
	return *m, true
}

// Vehicle returns a snapshot of one vehicle by id.
func (s *Store) Vehicle(id int) (models.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return models.Vehicle{}, false
	}
	return *v, true
}
