package core

import (
	"context"
	"testing"

	"github.com/picogrid/utm-core/pkg/config"
	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/models"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.OperationalBounds = models.BBox{MinLat: 36, MaxLat: 39, MinLon: -124, MaxLon: -121}
	return cfg
}

func TestSubmitDeliveryEndToEndPublishesEventsAndUpdatesState(t *testing.T) {
	cfg := testConfig()
	pickup := models.Point4D{Lat: 37.70, Lon: -122.40}
	fleet := []models.Vehicle{{ID: 1, Position: pickup}}

	c := New(cfg, fleet)
	ch, unsubscribe := c.SubscribeEvents()
	defer unsubscribe()

	delivery := geo.OffsetMeters(pickup, 500, 0)
	mission, err := c.SubmitDelivery(context.Background(), pickup, delivery, 0)
	if err != nil {
		t.Fatalf("SubmitDelivery failed: %v", err)
	}

	missions := c.ListMissions()
	if len(missions) != 1 || missions[0].ID != mission.ID {
		t.Errorf("expected ListMissions to report the committed mission, got %+v", missions)
	}

	vehicles := c.ListVehicles()
	if len(vehicles) != 1 || vehicles[0].State != models.VehicleAssigned {
		t.Errorf("expected vehicle ASSIGNED after commit, got %+v", vehicles)
	}

	ev := <-ch
	if ev.Kind != models.EventMissionCreated {
		t.Errorf("expected first published event to be MissionCreated, got %s", ev.Kind)
	}
}

func TestUpdateVehicleTelemetryAndMarkMissionPhase(t *testing.T) {
	cfg := testConfig()
	pickup := models.Point4D{Lat: 37.70, Lon: -122.40}
	fleet := []models.Vehicle{{ID: 1, Position: pickup}}
	c := New(cfg, fleet)

	delivery := geo.OffsetMeters(pickup, 500, 0)
	mission, err := c.SubmitDelivery(context.Background(), pickup, delivery, 0)
	if err != nil {
		t.Fatalf("SubmitDelivery failed: %v", err)
	}

	newPos := geo.OffsetMeters(pickup, 10, 10)
	if err := c.UpdateVehicleTelemetry(1, newPos, 0.8); err != nil {
		t.Fatalf("UpdateVehicleTelemetry failed: %v", err)
	}
	vehicles := c.ListVehicles()
	if vehicles[0].Position.Lat != newPos.Lat || vehicles[0].Battery != 0.8 {
		t.Errorf("expected telemetry update applied, got %+v", vehicles[0])
	}

	if err := c.MarkMissionPhase(mission.ID, models.PhaseEnRoutePickup); err != nil {
		t.Fatalf("MarkMissionPhase failed: %v", err)
	}
	missions := c.ListMissions()
	if missions[0].Phase != models.PhaseEnRoutePickup {
		t.Errorf("expected phase EN_ROUTE_PICKUP, got %s", missions[0].Phase)
	}
}

func TestConfigReturnsBoundConfig(t *testing.T) {
	cfg := testConfig()
	c := New(cfg, nil)
	if c.Config() != cfg {
		t.Error("expected Config() to return the same config instance passed to New")
	}
}
