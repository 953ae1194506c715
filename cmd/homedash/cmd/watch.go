package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"homedash/internal/core"
	"homedash/internal/daemon"
	"homedash/internal/tui"
)

// newWatchCmd creates the 'watch' subcommand: a live terminal dashboard.
func newWatchCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the dashboard live in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := socketPath(cfg)
			if err != nil {
				return err
			}

			if daemon.IsRunning(sock) {
				return tui.Run(&daemonSource{client: daemon.NewClient(sock)})
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return tui.Run(&localSource{engine: a.engine})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// daemonSource reads snapshots from a running daemon.
type daemonSource struct {
	client *daemon.Client
}

func (s *daemonSource) Snapshot() (core.Snapshot, error) {
	resp, err := s.client.Status()
	if err != nil {
		return core.Snapshot{}, err
	}
	if resp.Snapshot == nil {
		return core.Snapshot{}, fmt.Errorf("daemon returned no snapshot")
	}
	return *resp.Snapshot, nil
}

func (s *daemonSource) Refresh() error {
	_, err := s.client.Refresh()
	return err
}

// localSource ticks an in-process engine on demand.
type localSource struct {
	engine *core.Engine
}

func (s *localSource) Snapshot() (core.Snapshot, error) {
	now := time.Now()
	s.engine.Tick(context.Background(), now)
	return s.engine.Snapshot(now), nil
}

func (s *localSource) Refresh() error {
	s.engine.ForceRefresh()
	return nil
}

var _ tui.Source = (*daemonSource)(nil)
var _ tui.Source = (*localSource)(nil)
