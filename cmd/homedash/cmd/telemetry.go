package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"homedash/internal/telemetry"
)

// newTelemetryCmd creates the 'telemetry' subcommand for the local sync log.
func newTelemetryCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	telemetryCmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Inspect the local sync telemetry log",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show recent sync events",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, err := openTracker(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = tracker.Close() }()

			limit, _ := cmd.Flags().GetInt("limit")
			events, err := tracker.Recent(limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				_, _ = fmt.Fprintln(stdout, "no events recorded")
				return nil
			}
			for _, e := range events {
				ts := time.Unix(e.Timestamp, 0).Format("2006-01-02 15:04:05")
				_, _ = fmt.Fprintf(stdout, "%s  %-8s %-12s %s\n", ts, e.Kind, e.Subject, e.Detail)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	showCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	telemetryCmd.AddCommand(showCmd)

	telemetryCmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete events older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			tracker, err := openTracker(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = tracker.Close() }()

			deleted, err := tracker.Cleanup(appCfg.GetTelemetryRetentionDays())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "deleted %d events\n", deleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return telemetryCmd
}

func openTracker(cfg *Config) (*telemetry.Tracker, error) {
	appCfg, err := loadConfig(cfg)
	if err != nil {
		return nil, err
	}
	path := appCfg.GetTelemetryPath()
	if cfg.TelemetryPath != "" {
		path = cfg.TelemetryPath
	}
	return telemetry.NewTracker(path, true)
}
