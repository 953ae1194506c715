package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"homedash/internal/credentials"
)

// newTokenCmd creates the 'token' subcommand for hub token management.
func newTokenCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the Home Assistant access token",
	}

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "set [token]",
		Short: "Store the hub token in the system keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				_, _ = fmt.Fprint(stderr, "Token: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}

			if err := credentials.NewManager().Store(token); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}
			_, _ = fmt.Fprintln(stdout, "token stored in keyring")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show where the token comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			info := credentials.NewManager().Resolve(appCfg.Hub.Token)
			_, _ = fmt.Fprintf(stdout, "source: %s\ntoken: %s\n", info.Source, info.Masked())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the hub token from the keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credentials.NewManager().Delete(); err != nil {
				return fmt.Errorf("failed to delete token: %w", err)
			}
			_, _ = fmt.Fprintln(stdout, "token removed from keyring")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return tokenCmd
}
