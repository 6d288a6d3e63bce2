// Package resolver implements the Resolver and Committer (C6): it owns the
// bounded retry loop that turns a (pickup, delivery) request into a
// conflict-free committed mission, or gives up with one of the closed
// error kinds from utmerr (§4.6, §7). It is the only caller of
// trajectorystore's mutating methods, generalizing the teacher's
// SimulationController orchestration loop (cmd/drone-swarm/controllers)
// from a fixed simulated flight plan to an on-demand plan/detect/commit
// pipeline.
package resolver

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/utm-core/pkg/config"
	"github.com/picogrid/utm-core/pkg/conflict"
	"github.com/picogrid/utm-core/pkg/events"
	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/geofence"
	"github.com/picogrid/utm-core/pkg/models"
	"github.com/picogrid/utm-core/pkg/planner"
	"github.com/picogrid/utm-core/pkg/trajectorystore"
	"github.com/picogrid/utm-core/pkg/utmerr"
)

// Resolver coordinates the planner and conflict detector against the
// trajectory store to commit new missions.
type Resolver struct {
	cfg      *config.Config
	idx      *geofence.Index
	store    *trajectorystore.Store
	plan     *planner.Planner
	detector *conflict.Detector
	bus      *events.Bus
}

// New builds a Resolver bound to the given config, static geofence index,
// trajectory store, and event bus.
func New(cfg *config.Config, idx *geofence.Index, store *trajectorystore.Store, bus *events.Bus) *Resolver {
	return &Resolver{
		cfg:      cfg,
		idx:      idx,
		store:    store,
		plan:     planner.New(cfg, idx),
		detector: conflict.New(cfg),
		bus:      bus,
	}
}

// strategy names one escalation step of the resolution loop (§4.6 step 5).
type strategy string

const (
	strategyReStratify    strategy = "altitude_restratify"
	strategySpeedDamp     strategy = "speed_damp"
	strategyDynamicReplan strategy = "dynamic_replan"
)

// SubmitDelivery runs the full plan/detect/resolve/commit pipeline for a
// new mission (§6 submit_delivery). pickup and delivery must both lie
// within OPERATIONAL_BOUNDS and outside every NO_FLY zone; SubmitDelivery
// checks this at intake, before assigning a vehicle, and returns
// ErrOutOfBounds without retrying.
func (r *Resolver) SubmitDelivery(ctx context.Context, pickup, delivery models.Point4D, startTimeS float64) (models.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestDeadline)
	defer cancel()

	if pickup.Lat == delivery.Lat && pickup.Lon == delivery.Lon {
		return models.Mission{}, utmerr.ErrUnroutable
	}
	if !geo.BBoxContains(r.cfg.OperationalBounds, pickup.Lat, pickup.Lon) ||
		!geo.BBoxContains(r.cfg.OperationalBounds, delivery.Lat, delivery.Lon) {
		return models.Mission{}, utmerr.ErrOutOfBounds
	}
	if forbidden, _ := r.idx.ClassifyPoint(pickup); forbidden {
		return models.Mission{}, utmerr.ErrOutOfBounds
	}
	if forbidden, _ := r.idx.ClassifyPoint(delivery); forbidden {
		return models.Mission{}, utmerr.ErrOutOfBounds
	}

	vehicleID, ok := r.store.AssignIdleVehicle(pickup)
	if !ok {
		return models.Mission{}, utmerr.ErrNoVehicle
	}

	mission, err := r.resolveAndCommit(ctx, vehicleID, pickup, delivery, startTimeS)
	if err != nil {
		r.store.ReleaseVehicle(vehicleID)
		return models.Mission{}, err
	}
	return mission, nil
}

// resolveAndCommit plans a conflict-free trajectory and commits it through
// the store's single optimistic-commit critical section (§5): the store
// re-snapshots the live active set and re-runs C5 against it atomically
// with the insert, so a trajectory committed by a concurrent request
// between resolve()'s last check and this commit cannot be missed. If the
// commit reports a fresh conflict, resolution restarts exactly once against
// the now-current active set (§5 "commit or restart once") before giving up.
func (r *Resolver) resolveAndCommit(ctx context.Context, vehicleID int, pickup, delivery models.Point4D, startTimeS float64) (models.Mission, error) {
	for round := 0; round < 2; round++ {
		mission, err := r.resolve(ctx, vehicleID, pickup, delivery, startTimeS)
		if err != nil {
			return models.Mission{}, err
		}

		detect := func(active []trajectorystore.ActiveTrajectory) []models.Conflict {
			candidates := make([]conflict.Candidate, 0, len(active))
			for _, a := range active {
				candidates = append(candidates, conflict.Candidate{MissionID: a.MissionID, Trajectory: a.Trajectory})
			}
			return r.detector.CheckAgainstActive(conflict.Candidate{MissionID: mission.ID, Trajectory: mission.Trajectory}, candidates)
		}

		conflicts, err := r.store.CommitIfConflictFree(mission, detect)
		switch err {
		case nil:
			return mission, nil
		case trajectorystore.ErrConflictOnCommit:
			r.publishConflicts(conflicts)
			continue
		default:
			return models.Mission{}, err
		}
	}
	return models.Mission{}, utmerr.ErrResolutionFailed
}

// resolve runs the bounded escalation loop: a direct plan first, then up to
// cfg.MaxResolveRetries further attempts escalating through altitude
// re-stratification, speed damping, and dynamic replans with an escalating
// penalty (§4.6 step 5). Re-stratification and speed damping are each
// attempted at most once per request (§4.6 5a/5b); once both are
// exhausted, any remaining retries keep escalating the dynamic replan.
func (r *Resolver) resolve(ctx context.Context, vehicleID int, pickup, delivery models.Point4D, startTimeS float64) (models.Mission, error) {
	missionID := uuid.New()
	active := r.activeAsCandidates()

	dynamicPenalty := r.cfg.DynamicPenalty
	var forbiddenLanes []float64
	var triedReStratify, triedSpeedDamp bool

	req := planner.Request{
		Start:            pickup,
		Goal:             delivery,
		StartTimeS:       startTimeS,
		DynamicObstacles: activeTrajectories(active),
		DynamicPenalty:   dynamicPenalty,
	}

	traj, err := r.plan.Plan(req)
	if err != nil {
		return models.Mission{}, mapPlanErr(err)
	}

	attempts := r.cfg.MaxResolveRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return models.Mission{}, utmerr.ErrTimeout
		default:
		}

		candidate := conflict.Candidate{MissionID: missionID, Trajectory: traj}
		conflicts := r.detector.CheckAgainstActive(candidate, active)
		if len(conflicts) == 0 {
			return models.Mission{
				ID:         missionID,
				VehicleID:  vehicleID,
				Pickup:     pickup,
				Delivery:   delivery,
				Trajectory: traj,
				Phase:      models.PhasePlanned,
			}, nil
		}
		r.publishConflicts(conflicts)

		if attempt == attempts-1 {
			break
		}

		switch nextStrategy(triedReStratify, triedSpeedDamp) {
		case strategyReStratify:
			triedReStratify = true
			forbiddenLanes = append(forbiddenLanes, currentLane(traj))
			req.ForbiddenLanes = forbiddenLanes
			traj, err = r.plan.Plan(req)
			if err != nil {
				return models.Mission{}, mapPlanErr(err)
			}
		case strategySpeedDamp:
			triedSpeedDamp = true
			if damped, ok := dampSpeedBeforeConflict(traj, conflicts, r.cfg.TimeResolutionS); ok {
				traj = damped
			}
		case strategyDynamicReplan:
			dynamicPenalty *= 2
			req.DynamicPenalty = dynamicPenalty
			req.ForbiddenLanes = nil
			forbiddenLanes = nil
			traj, err = r.plan.Plan(req)
			if err != nil {
				return models.Mission{}, mapPlanErr(err)
			}
		}
	}

	return models.Mission{}, utmerr.ErrResolutionFailed
}

// mapPlanErr translates a planner error into the matching utmerr sentinel.
func mapPlanErr(err error) error {
	switch err {
	case planner.ErrNoLaneAvailable:
		return utmerr.ErrUnroutable
	case planner.ErrBlockedEndpoint:
		return utmerr.ErrOutOfBounds
	default:
		return utmerr.ErrUnroutable
	}
}

// nextStrategy returns the next escalation strategy to try (§4.6 step 5):
// altitude re-stratification and speed damping are each offered at most
// once per request; once both have been tried, every further attempt
// escalates the dynamic replan's penalty instead of repeating either.
func nextStrategy(triedReStratify, triedSpeedDamp bool) strategy {
	if !triedReStratify {
		return strategyReStratify
	}
	if !triedSpeedDamp {
		return strategySpeedDamp
	}
	return strategyDynamicReplan
}

// currentLane reads back the altitude lane the planner committed the
// trajectory to, which is constant across all of its waypoints (§4.4
// stratification).
func currentLane(t models.Trajectory) float64 {
	return t.Start().AltM
}

// dampSpeedBeforeConflict rewrites traj's waypoint speeds and times without
// invoking the planner again (§4.6 5b): for every reported conflict it
// computes the slowdown factor s that would delay arrival at that
// conflict's point by at least minDelayS, takes the minimum such s across
// all conflicts (the most conservative), and applies it only to the
// segment of the trajectory before the earliest conflict time. Waypoints
// at or after the earliest conflict keep their original (cruise) speed,
// shifted later by the same delay the slowdown introduced. Returns
// ok == false if no conflict occurs after the trajectory's departure time,
// meaning damping cannot help and the caller should escalate further.
func dampSpeedBeforeConflict(traj models.Trajectory, conflicts []models.Conflict, minDelayS float64) (models.Trajectory, bool) {
	if len(traj.Waypoints) == 0 || len(conflicts) == 0 {
		return traj, false
	}
	t0 := traj.Waypoints[0].TimeS

	earliest := conflicts[0].TimeS
	s := 0.0
	haveSlowdown := false
	for _, c := range conflicts {
		if c.TimeS < earliest {
			earliest = c.TimeS
		}
		span := c.TimeS - t0
		if span <= 0 {
			continue // conflict at or before departure; slowing down can't help it
		}
		si := span / (span + minDelayS)
		if !haveSlowdown || si < s {
			s = si
			haveSlowdown = true
		}
	}
	if !haveSlowdown {
		return traj, false
	}

	wps := make([]models.Waypoint, len(traj.Waypoints))
	for i, w := range traj.Waypoints {
		nw := w
		if w.TimeS <= earliest {
			nw.TimeS = t0 + (w.TimeS-t0)/s
			if w.TimeS < earliest {
				nw.SpeedMps = w.SpeedMps * s
			}
		} else {
			nw.TimeS = w.TimeS + minDelayS
		}
		wps[i] = nw
	}
	return models.Trajectory{Waypoints: wps}, true
}

// publishConflicts emits a ConflictDetected event (§6 subscribe_events)
// whenever the detector reports a non-empty conflict set, whether the
// conflict surfaced during a resolve attempt or at optimistic commit time.
func (r *Resolver) publishConflicts(conflicts []models.Conflict) {
	if r.bus == nil || len(conflicts) == 0 {
		return
	}
	r.bus.Publish(models.Event{Kind: models.EventConflictDetected, At: time.Now(), Conflicts: conflicts})
}

// activeAsCandidates snapshots every currently committed, non-terminal
// trajectory as a conflict.Candidate.
func (r *Resolver) activeAsCandidates() []conflict.Candidate {
	// A wide-open window: active trajectories have finite spans, and
	// trajectorystore.ActiveBetween already excludes terminal missions.
	active := r.store.ActiveBetween(0, maxFloat())
	out := make([]conflict.Candidate, 0, len(active))
	for _, a := range active {
		out = append(out, conflict.Candidate{MissionID: a.MissionID, Trajectory: a.Trajectory})
	}
	return out
}

func activeTrajectories(candidates []conflict.Candidate) []models.Trajectory {
	out := make([]models.Trajectory, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Trajectory)
	}
	return out
}

func maxFloat() float64 {
	return 1e18
}
