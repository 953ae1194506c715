package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"homedash/internal/daemon"
)

// newCompleteCmd creates the 'complete' subcommand to mark a task done.
// The action goes through the daemon when one is running so both processes
// agree on the queue; otherwise it is applied (or queued) in-process.
func newCompleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <uid>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := args[0]
			entity, _ := cmd.Flags().GetString("list")
			summary, _ := cmd.Flags().GetString("summary")

			sock, err := socketPath(cfg)
			if err != nil {
				return err
			}

			if daemon.IsRunning(sock) {
				resp, err := daemon.NewClient(sock).Complete(entity, uid, summary)
				if err != nil {
					return err
				}
				if resp.Status != "ok" {
					return fmt.Errorf("%s", resp.Message)
				}
				printActionResult(stdout, resp.Applied)
				return nil
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.engine.CompleteTask(context.Background(), entity, uid, summary)
			if err != nil {
				return err
			}
			printActionResult(stdout, applied)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("list", "l", "", "Task list entity ID (required with multiple lists)")
	cmd.Flags().String("summary", "", "Task summary, recorded with the queued action")
	return cmd
}

// newAckMailboxCmd creates the 'ack-mailbox' subcommand.
func newAckMailboxCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ack-mailbox",
		Short: "Acknowledge today's mail notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := socketPath(cfg)
			if err != nil {
				return err
			}

			if daemon.IsRunning(sock) {
				resp, err := daemon.NewClient(sock).AckMailbox()
				if err != nil {
					return err
				}
				if resp.Status != "ok" {
					return fmt.Errorf("%s", resp.Message)
				}
				printActionResult(stdout, resp.Applied)
				return nil
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.engine.AckMailbox(context.Background())
			if err != nil {
				return err
			}
			printActionResult(stdout, applied)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func printActionResult(w io.Writer, applied bool) {
	if applied {
		_, _ = fmt.Fprintln(w, "done")
	} else {
		_, _ = fmt.Fprintln(w, "queued for when the hub is back")
	}
}
