package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picogrid/utm-core/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Load (or default) the UTM core configuration and print its resolved values.`,
	RunE:  showConfig,
}

func init() {
	configCmd.Flags().StringP("utm-config", "f", "", "UTM config file to load (defaults to built-in values)")
}

func showConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("utm-config")

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	fmt.Fprintln(w, "---\t-----")
	fmt.Fprintf(w, "grid_resolution_m\t%.1f\n", cfg.GridResolutionM)
	fmt.Fprintf(w, "time_resolution_s\t%.1f\n", cfg.TimeResolutionS)
	fmt.Fprintf(w, "horizontal_separation_m\t%.1f\n", cfg.HorizontalSeparationM)
	fmt.Fprintf(w, "vertical_separation_m\t%.1f\n", cfg.VerticalSeparationM)
	fmt.Fprintf(w, "drone_max_speed_mps\t%.1f\n", cfg.DroneMaxSpeedMps)
	fmt.Fprintf(w, "drone_cruise_speed_mps\t%.1f\n", cfg.DroneCruiseSpeedMps)
	fmt.Fprintf(w, "north_south_lanes\t%v\n", cfg.DirectionAltitudeMap.NorthSouth)
	fmt.Fprintf(w, "east_west_lanes\t%v\n", cfg.DirectionAltitudeMap.EastWest)
	fmt.Fprintf(w, "max_expansions\t%d\n", cfg.MaxExpansions)
	fmt.Fprintf(w, "max_resolve_retries\t%d\n", cfg.MaxResolveRetries)
	fmt.Fprintf(w, "speed_min_ratio\t%.2f\n", cfg.SpeedMinRatio)
	fmt.Fprintf(w, "dynamic_penalty\t%.1f\n", cfg.DynamicPenalty)
	fmt.Fprintf(w, "request_deadline\t%s\n", cfg.RequestDeadline)
	fmt.Fprintf(w, "operational_bounds\t%.4f,%.4f to %.4f,%.4f\n",
		cfg.OperationalBounds.MinLat, cfg.OperationalBounds.MinLon,
		cfg.OperationalBounds.MaxLat, cfg.OperationalBounds.MaxLon)

	return w.Flush()
}
