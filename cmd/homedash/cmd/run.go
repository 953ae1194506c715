package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"homedash/internal/daemon"
	"homedash/internal/shutdown"
)

// newRunCmd creates the 'run' subcommand that starts the sync daemon.
func newRunCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long:  "Runs the sync engine in the foreground, refreshing data on schedule and serving the control socket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := socketPath(cfg)
			if err != nil {
				return err
			}
			if daemon.IsRunning(sock) {
				return fmt.Errorf("daemon already running at %s", sock)
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}

			mgr := shutdown.NewManager()
			mgr.HandleSignals()
			mgr.RegisterCleanup("hub", func(ctx context.Context) error {
				return a.hub.Close()
			})
			mgr.RegisterCleanup("telemetry", func(ctx context.Context) error {
				return a.tracker.Close()
			})

			d := daemon.New(&daemon.Config{
				SocketPath:   sock,
				TickInterval: a.cfg.GetTickInterval(),
				LogPath:      a.cfg.Logging.File,
			}, a.engine, mgr)

			_, _ = fmt.Fprintf(stdout, "homedash daemon listening on %s\n", sock)
			runErr := d.Run(mgr.Context())

			waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mgr.Wait(waitCtx); err != nil {
				return fmt.Errorf("shutdown did not complete cleanly: %w", err)
			}
			return runErr
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
