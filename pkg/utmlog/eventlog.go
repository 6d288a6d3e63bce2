// Package utmlog renders the event bus's live feed to a terminal with
// severity-colored lines, adapted from the teacher's
// cmd/drone-swarm/reporting.SimulationLogger (which colored combat events
// by severity/team) to the UTM core's VehicleUpdated/MissionCreated/
// MissionPhaseChanged/ConflictDetected event kinds.
package utmlog

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/picogrid/utm-core/pkg/models"
)

var (
	colorDebug   = color.New(color.FgHiBlack)
	colorInfo    = color.New(color.FgCyan)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed, color.Bold)
	colorSuccess = color.New(color.FgGreen)
)

// EventFeed renders models.Event values as colored, single-line entries.
type EventFeed struct {
	noColor bool
}

// NewEventFeed creates an EventFeed. When noColor is true, lines are
// printed without ANSI color codes (e.g. when stdout is not a TTY).
func NewEventFeed(noColor bool) *EventFeed {
	return &EventFeed{noColor: noColor}
}

// Run drains ch, printing one line per event, until ch is closed.
func (f *EventFeed) Run(ch <-chan models.Event) {
	for ev := range ch {
		f.print(ev)
	}
}

func (f *EventFeed) print(ev models.Event) {
	ts := ev.At.Format("15:04:05.000")
	label, c := f.classify(ev)

	if f.noColor {
		fmt.Printf("[%s] %-8s %s\n", ts, label, f.detail(ev))
		return
	}
	c.Printf("[%s] %-8s %s\n", ts, label, f.detail(ev))
}

// classify maps an event kind to a display label and color, mirroring the
// severity buckets the teacher's reporting logger used for combat events.
func (f *EventFeed) classify(ev models.Event) (string, *color.Color) {
	switch ev.Kind {
	case models.EventConflictDetected:
		return "CONFLICT", colorError
	case models.EventMissionPhaseChanged:
		if ev.Phase == models.PhaseFailed {
			return "FAILED", colorError
		}
		if ev.Phase == models.PhaseDelivered {
			return "DELIVERED", colorSuccess
		}
		return "PHASE", colorInfo
	case models.EventMissionCreated:
		return "MISSION", colorInfo
	case models.EventVehicleUpdated:
		return "VEHICLE", colorDebug
	default:
		return "EVENT", colorInfo
	}
}

func (f *EventFeed) detail(ev models.Event) string {
	switch ev.Kind {
	case models.EventConflictDetected:
		return fmt.Sprintf("%d conflict(s) found", len(ev.Conflicts))
	case models.EventMissionCreated:
		if ev.Mission == nil {
			return ""
		}
		return fmt.Sprintf("mission %s assigned to vehicle %d", shortID(ev.Mission.ID.String()), ev.Mission.VehicleID)
	case models.EventMissionPhaseChanged:
		if ev.Mission == nil {
			return ""
		}
		return fmt.Sprintf("mission %s -> %s", shortID(ev.Mission.ID.String()), ev.Phase)
	case models.EventVehicleUpdated:
		if ev.Vehicle == nil {
			return ""
		}
		return fmt.Sprintf("vehicle %d state=%s battery=%.0f%%", ev.Vehicle.ID, ev.Vehicle.State, ev.Vehicle.Battery*100)
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
