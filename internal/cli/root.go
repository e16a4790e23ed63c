// Package cli is the puzzle-sync command line: it records plays on the
// device and drives the reconcilers against the backend.
package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alexjbarnes/puzzle-sync/internal/clock"
	"github.com/alexjbarnes/puzzle-sync/internal/config"
	"github.com/spf13/cobra"
)

// Run executes the command line in args and releases every resource the
// command opened.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	a := &app{cfg: cfg, logger: logger, clock: clock.New()}

	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	return errors.Join(err, a.close())
}

func newRootCmd(a *app) *cobra.Command {
	a.output = "text"

	rootCmd := &cobra.Command{
		Use:   "puzzle-sync",
		Short: "Keep daily puzzle plays in step between the device and the backend",
		Long: `puzzle-sync records guest and offline plays of the daily number puzzle on
this device, then reconciles them with the signed-in user's account:

  migrate  moves guest games into the account
  sync     uploads games played offline while signed in
  watch    syncs whenever the backend becomes reachable again`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validFormat(a.output)
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.token, "token", "", "Session token (env: SESSION_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", a.output, "Output format: text, json, yaml")

	rootCmd.AddCommand(newRecordCmd(a))
	rootCmd.AddCommand(newRecordOfflineCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newSignInCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newSyncCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newDBCmd(a))
	rootCmd.AddCommand(newTokenCmd(a))

	return rootCmd
}

func (a *app) out(cmd *cobra.Command) *Output {
	return NewOutput(a.output, cmd.OutOrStdout())
}
