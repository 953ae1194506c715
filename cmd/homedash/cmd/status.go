package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"homedash/hub"
	"homedash/internal/cache"
	"homedash/internal/core"
	"homedash/internal/daemon"
)

// newStatusCmd creates the 'status' subcommand. It queries the running
// daemon when there is one, otherwise it reports straight from the cache.
func newStatusCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current dashboard state",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := socketPath(cfg)
			if err != nil {
				return err
			}

			if daemon.IsRunning(sock) {
				resp, err := daemon.NewClient(sock).Status()
				if err != nil {
					return err
				}
				if resp.Snapshot == nil {
					return fmt.Errorf("daemon returned no snapshot")
				}
				renderSnapshot(stdout, resp.Snapshot, isTerminal(stdout))
				_, _ = fmt.Fprintf(stdout, "daemon: running (%d ticks, last %s)\n", resp.TickCount, resp.LastTick)
				return nil
			}

			// No daemon; show what the cache holds.
			appCfg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			cachePath := appCfg.Cache.Path
			if cfg.CachePath != "" {
				cachePath = cfg.CachePath
			}
			store := cache.Open(cachePath, appCfg.IsRAMDiskEnabled())

			snap := core.Snapshot{
				Weather:          store.Weather(),
				Forecast:         store.Forecast(),
				Tasks:            store.Tasks(),
				CalendarToday:    store.CalendarToday(),
				CalendarUpcoming: store.CalendarUpcoming(),
				Mailbox:          store.Mailbox(),
				MailboxMeta:      store.MailboxMeta(),
				Sun:              store.Sun(),
				QueuedActions:    len(store.PendingActions()),
				StatusLine:       "daemon not running; showing cached data",
				Quote:            store.DailyQuote(),
			}
			renderSnapshot(stdout, &snap, isTerminal(stdout))
			_, _ = fmt.Fprintln(stdout, "daemon: not running")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newTickCmd creates the 'tick' subcommand that runs one sync cycle in-process.
func newTickCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one sync cycle and show the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			now := time.Now()
			a.engine.Tick(context.Background(), now)
			snap := a.engine.Snapshot(now)
			renderSnapshot(stdout, &snap, isTerminal(stdout))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newRefreshCmd creates the 'refresh' subcommand that forces the daemon to
// refresh every domain now.
func newRefreshCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force the running daemon to refresh all data",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := socketPath(cfg)
			if err != nil {
				return err
			}
			if _, err := daemon.NewClient(sock).Refresh(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "refresh scheduled")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// isTerminal reports whether the writer is an interactive terminal.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// renderSnapshot writes a plain-text summary of the snapshot, with light
// styling when writing to a terminal.
func renderSnapshot(w io.Writer, snap *core.Snapshot, styled bool) {
	header := func(s string) string { return s }
	if styled {
		style := lipgloss.NewStyle().Bold(true)
		header = func(s string) string { return style.Render(s) }
	}

	online := "offline"
	if snap.HubOnline {
		online = "online"
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", header("Hub:"), online)

	if snap.Weather != nil {
		line := hub.FormatCondition(snap.Weather.State)
		if snap.Weather.Temperature != nil {
			line = fmt.Sprintf("%.0f%s, %s", *snap.Weather.Temperature, snap.Weather.TemperatureUnit, line)
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", header("Weather:"), line)
	}

	_, _ = fmt.Fprintf(w, "%s %d\n", header("Tasks:"), len(snap.Tasks))
	for _, task := range snap.Tasks {
		due := ""
		if task.Due != "" {
			due = " (due " + task.Due + ")"
		}
		_, _ = fmt.Fprintf(w, "  - %s%s\n", task.Summary, due)
	}

	if len(snap.CalendarToday) > 0 {
		_, _ = fmt.Fprintf(w, "%s\n", header("Today:"))
		for _, event := range snap.CalendarToday {
			_, _ = fmt.Fprintf(w, "  - %s %s\n", event.Start, event.Summary)
		}
	}
	if len(snap.CalendarUpcoming) > 0 {
		_, _ = fmt.Fprintf(w, "%s\n", header("Upcoming:"))
		for _, event := range snap.CalendarUpcoming {
			_, _ = fmt.Fprintf(w, "  - %s %s\n", event.Start, event.Summary)
		}
	}

	if snap.MailboxMeta.OpenedToday && !snap.MailboxMeta.Cleared {
		at := snap.MailboxMeta.OpenedTime
		if at == "" {
			at = "today"
		}
		_, _ = fmt.Fprintf(w, "%s opened at %s\n", header("Mailbox:"), at)
	}

	if snap.QueuedActions > 0 {
		_, _ = fmt.Fprintf(w, "%s %d pending\n", header("Queued actions:"), snap.QueuedActions)
	}
	if snap.StatusLine != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", header("Status:"), snap.StatusLine)
	}
}
