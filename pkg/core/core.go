// Package core wires the geofence index, trajectory store, and resolver
// into the six operations the UTM core exposes externally (§6), the same
// role the teacher's cmd/drone-swarm "controller" package plays in
// wiring its simulation pieces behind one façade.
package core

import (
	"context"

	"github.com/google/uuid"

	"github.com/picogrid/utm-core/pkg/config"
	"github.com/picogrid/utm-core/pkg/events"
	"github.com/picogrid/utm-core/pkg/geofence"
	"github.com/picogrid/utm-core/pkg/models"
	"github.com/picogrid/utm-core/pkg/resolver"
	"github.com/picogrid/utm-core/pkg/trajectorystore"
)

// Core is the UTM core's external entry point, grouping the static
// geofence index, the live trajectory store, the event bus, and the
// resolver that ties them together.
type Core struct {
	cfg      *config.Config
	idx      *geofence.Index
	store    *trajectorystore.Store
	bus      *events.Bus
	resolver *resolver.Resolver
}

// New constructs a Core from a validated config and an initial vehicle
// fleet, building the geofence index from cfg's zone lists.
func New(cfg *config.Config, vehicles []models.Vehicle) *Core {
	idx := geofence.New(cfg.Zones())
	bus := events.NewBus()
	store := trajectorystore.New(vehicles, bus)
	return &Core{
		cfg:      cfg,
		idx:      idx,
		store:    store,
		bus:      bus,
		resolver: resolver.New(cfg, idx, store, bus),
	}
}

// SubmitDelivery plans, resolves and commits a new mission from pickup to
// delivery, returning the committed Mission or one of the utmerr sentinel
// errors (§6 submit_delivery).
func (c *Core) SubmitDelivery(ctx context.Context, pickup, delivery models.Point4D, startTimeS float64) (models.Mission, error) {
	return c.resolver.SubmitDelivery(ctx, pickup, delivery, startTimeS)
}

// ListMissions returns a snapshot of every tracked mission (§6 list_missions).
func (c *Core) ListMissions() []models.Mission {
	return c.store.ListMissions()
}

// ListVehicles returns a snapshot of every tracked vehicle (§6 list_vehicles).
func (c *Core) ListVehicles() []models.Vehicle {
	return c.store.ListVehicles()
}

// UpdateVehicleTelemetry applies an externally reported position/battery
// update (§6 update_vehicle_telemetry).
func (c *Core) UpdateVehicleTelemetry(vehicleID int, pos models.Point4D, battery float64) error {
	return c.store.UpdateVehicleTelemetry(vehicleID, pos, battery)
}

// MarkMissionPhase applies a mission lifecycle transition (§6
// mark_mission_phase).
func (c *Core) MarkMissionPhase(missionID uuid.UUID, phase models.MissionPhase) error {
	return c.store.MarkMissionPhase(missionID, phase)
}

// SubscribeEvents registers a new event listener (§6 subscribe_events).
// The caller must invoke the returned unsubscribe func when done to avoid
// leaking the subscriber's channel.
func (c *Core) SubscribeEvents() (<-chan models.Event, func()) {
	return c.bus.Subscribe()
}

// Config returns the bound configuration, for CLI/display use.
func (c *Core) Config() *config.Config {
	return c.cfg
}
