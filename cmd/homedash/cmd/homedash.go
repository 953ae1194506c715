// Package cmd implements the homedash command-line interface.
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"homedash/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Config holds CLI overrides, mainly for testing
type Config struct {
	ConfigPath    string // Path to config file
	CachePath     string // Path to cache file (for testing)
	SocketPath    string // Path to daemon socket (for testing)
	TelemetryPath string // Path to telemetry database (for testing)
	Verbose       bool
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewHomedash(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewHomedash creates the root command with injectable IO
func NewHomedash(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "homedash",
		Short:   "Home dashboard sync engine",
		Long:    "homedash keeps a local cache of Home Assistant data fresh and replays offline actions when the hub comes back.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				cfg.Verbose = true
			}
			utils.SetVerboseMode(cfg.Verbose)

			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg.ConfigPath = path
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")

	cmd.AddCommand(newRunCmd(stdout, cfg))
	cmd.AddCommand(newStatusCmd(stdout, cfg))
	cmd.AddCommand(newTickCmd(stdout, cfg))
	cmd.AddCommand(newRefreshCmd(stdout, cfg))
	cmd.AddCommand(newCompleteCmd(stdout, cfg))
	cmd.AddCommand(newAckMailboxCmd(stdout, cfg))
	cmd.AddCommand(newWatchCmd(stdout, cfg))
	cmd.AddCommand(newTokenCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTelemetryCmd(stdout, cfg))

	return cmd
}
