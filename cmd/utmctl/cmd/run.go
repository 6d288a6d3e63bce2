package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/picogrid/utm-core/pkg/config"
	"github.com/picogrid/utm-core/pkg/core"
	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/logger"
	"github.com/picogrid/utm-core/pkg/models"
	"github.com/picogrid/utm-core/pkg/utmlog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive UTM core session",
	Long: `Seeds a vehicle fleet, starts a UTM core in-process, tails its
event feed, and prompts interactively for submit/list/telemetry/phase
operations until the session is ended.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringP("utm-config", "f", "", "UTM config file to load (defaults to built-in values)")
	runCmd.Flags().IntP("fleet", "n", 5, "number of vehicles to seed")
}

func runSession(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("utm-config")
	fleetSize, _ := cmd.Flags().GetInt("fleet")

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fleet := seedFleet(cfg, fleetSize)
	c := core.New(cfg, fleet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe := c.SubscribeEvents()
	defer unsubscribe()

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	feed := utmlog.NewEventFeed(noColor || !isTTY)
	go feed.Run(events)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("received interrupt, ending session")
		cancel()
	}()

	logger.LogSection("UTM Core Session")
	logger.Successf("seeded %d vehicles", len(fleet))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		action, err := promptAction()
		if err != nil {
			return nil // Ctrl-C during a prompt ends the session cleanly.
		}

		switch action {
		case actionSubmit:
			if err := promptSubmit(ctx, c); err != nil {
				logger.Errorf("submit failed: %v", err)
			}
		case actionListMissions:
			printMissions(c.ListMissions())
		case actionListVehicles:
			printVehicles(c.ListVehicles())
		case actionTelemetry:
			if err := promptTelemetry(c); err != nil {
				logger.Errorf("telemetry update failed: %v", err)
			}
		case actionPhase:
			if err := promptPhase(c); err != nil {
				logger.Errorf("phase update failed: %v", err)
			}
		case actionQuit:
			return nil
		}
	}
}

const (
	actionSubmit       = "Submit delivery"
	actionListMissions = "List missions"
	actionListVehicles = "List vehicles"
	actionTelemetry    = "Update vehicle telemetry"
	actionPhase        = "Mark mission phase"
	actionQuit         = "Quit"
)

func promptAction() (string, error) {
	var selected string
	prompt := &survey.Select{
		Message: "Choose an action:",
		Options: []string{actionSubmit, actionListMissions, actionListVehicles, actionTelemetry, actionPhase, actionQuit},
	}
	err := survey.AskOne(prompt, &selected)
	return selected, err
}

func promptSubmit(ctx context.Context, c *core.Core) error {
	answers := struct {
		PickupLat   float64
		PickupLon   float64
		DeliveryLat float64
		DeliveryLon float64
	}{}

	qs := []*survey.Question{
		{Name: "PickupLat", Prompt: &survey.Input{Message: "Pickup latitude:"}},
		{Name: "PickupLon", Prompt: &survey.Input{Message: "Pickup longitude:"}},
		{Name: "DeliveryLat", Prompt: &survey.Input{Message: "Delivery latitude:"}},
		{Name: "DeliveryLon", Prompt: &survey.Input{Message: "Delivery longitude:"}},
	}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}

	pickup := models.Point4D{Lat: answers.PickupLat, Lon: answers.PickupLon}
	delivery := models.Point4D{Lat: answers.DeliveryLat, Lon: answers.DeliveryLon}

	mission, err := c.SubmitDelivery(ctx, pickup, delivery, 0)
	if err != nil {
		return err
	}
	logger.Successf("mission %s committed: vehicle %d, %.0fm", mission.ID, mission.VehicleID, geo.HorizontalDistance(pickup, delivery))
	return nil
}

func promptTelemetry(c *core.Core) error {
	answers := struct {
		VehicleID int
		Lat       float64
		Lon       float64
		AltM      float64
		Battery   float64
	}{}
	qs := []*survey.Question{
		{Name: "VehicleID", Prompt: &survey.Input{Message: "Vehicle ID:"}},
		{Name: "Lat", Prompt: &survey.Input{Message: "Latitude:"}},
		{Name: "Lon", Prompt: &survey.Input{Message: "Longitude:"}},
		{Name: "AltM", Prompt: &survey.Input{Message: "Altitude (m):"}},
		{Name: "Battery", Prompt: &survey.Input{Message: "Battery (0-1):"}},
	}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}
	pos := models.Point4D{Lat: answers.Lat, Lon: answers.Lon, AltM: answers.AltM}
	return c.UpdateVehicleTelemetry(answers.VehicleID, pos, answers.Battery)
}

func promptPhase(c *core.Core) error {
	var missionIDStr string
	if err := survey.AskOne(&survey.Input{Message: "Mission ID:"}, &missionIDStr, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	missionID, err := uuid.Parse(missionIDStr)
	if err != nil {
		return fmt.Errorf("invalid mission id: %w", err)
	}

	var phaseStr string
	phasePrompt := &survey.Select{
		Message: "New phase:",
		Options: []string{
			string(models.PhaseEnRoutePickup),
			string(models.PhaseCarrying),
			string(models.PhaseDelivered),
			string(models.PhaseFailed),
		},
	}
	if err := survey.AskOne(phasePrompt, &phaseStr); err != nil {
		return err
	}

	return c.MarkMissionPhase(missionID, models.MissionPhase(phaseStr))
}

func printMissions(missions []models.Mission) {
	if len(missions) == 0 {
		fmt.Println("No missions")
		return
	}
	for _, m := range missions {
		fmt.Printf("%s  vehicle=%d  phase=%-16s  pickup=(%.4f,%.4f)  delivery=(%.4f,%.4f)\n",
			m.ID, m.VehicleID, m.Phase, m.Pickup.Lat, m.Pickup.Lon, m.Delivery.Lat, m.Delivery.Lon)
	}
}

func printVehicles(vehicles []models.Vehicle) {
	for _, v := range vehicles {
		fmt.Printf("#%-3d  state=%-12s  pos=(%.4f,%.4f,%.0fm)  battery=%.0f%%\n",
			v.ID, v.State, v.Position.Lat, v.Position.Lon, v.Position.AltM, v.Battery*100)
	}
}

// seedFleet places n vehicles at IDLE, spread in a small grid around the
// operational bounds' centroid so submit_delivery has candidates to assign.
func seedFleet(cfg *config.Config, n int) []models.Vehicle {
	lat, lon := geo.Centroid(cfg.OperationalBounds)
	origin := models.Point4D{Lat: lat, Lon: lon}

	fleet := make([]models.Vehicle, 0, n)
	const spacingM = 200
	for i := 0; i < n; i++ {
		offsetEast := float64(i%3-1) * spacingM
		offsetNorth := float64(i/3) * spacingM
		pos := geo.OffsetMeters(origin, offsetEast, offsetNorth)
		pos.AltM = cfg.MinAltitudeM
		fleet = append(fleet, models.Vehicle{
			ID:       i + 1,
			State:    models.VehicleIdle,
			Position: pos,
			Battery:  1.0,
		})
	}
	return fleet
}
