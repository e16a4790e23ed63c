package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/service"
	"github.com/alexjbarnes/puzzle-sync/internal/session"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dump.json>",
		Short: "Import guest and offline games from a legacy key-value dump",
		Long: `import reads a JSON object mapping legacy storage keys to their string
values and copies the game entries into local state. Keys that do not
parse are reported and left out; the dump file is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading dump: %w", err)
			}

			var kv map[string]string
			if err := json.Unmarshal(data, &kv); err != nil {
				return fmt.Errorf("parsing dump: %w", err)
			}

			local, err := a.openLocal()
			if err != nil {
				return err
			}

			report, err := local.ImportLegacy(kv)
			if err != nil {
				return err
			}

			return a.out(cmd).Print(report)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show games waiting on this device and when reconciliation last ran",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := a.openLocal()
			if err != nil {
				return err
			}

			guests, err := local.GuestCount()
			if err != nil {
				return err
			}

			status := Status{GuestRecords: guests}

			// Without a session only guest records are shown.
			if sess, err := a.session(); err == nil {
				status.UserID = sess.UserID

				pending, err := local.PendingStates(sess.UserID)
				if err != nil {
					return err
				}

				status.PendingGames = len(pending)

				runs, err := service.LastRuns(local, sess.UserID)
				if err != nil {
					return err
				}

				status.LastRuns = make(map[string]time.Time, len(runs))
				for kind, at := range runs {
					status.LastRuns[string(kind)] = at
				}
			}

			return a.out(cmd).Print(status)
		},
	}
}

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Backend database commands",
	}

	cmd.AddCommand(newDBMigrateCmd(a))
	cmd.AddCommand(newDBAllocateCmd(a))
	cmd.AddCommand(newDBSetRegionCmd(a))

	return cmd
}

func newDBMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.openRemote(cmd.Context()); err != nil {
				return err
			}

			return a.out(cmd).PrintMessage("schema up to date")
		},
	}
}

func newDBAllocateCmd(a *app) *cobra.Command {
	var (
		modeName string
		puzzle   int64
		day      string
		scope    string
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate a puzzle to a date for a region or user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := models.ParseMode(modeName)
			if err != nil {
				return err
			}

			date, err := models.ParseDate(day)
			if err != nil {
				return err
			}

			store, err := a.openRemote(cmd.Context())
			if err != nil {
				return err
			}

			if err := store.AllocatePuzzle(cmd.Context(), mode, puzzle, date, scope); err != nil {
				return err
			}

			return a.out(cmd).PrintMessage(fmt.Sprintf("allocated %s/%d to %s for %s", mode, puzzle, date, scope))
		},
	}

	cmd.Flags().StringVar(&modeName, "mode", string(models.ModeRegion), "Puzzle mode: region or user")
	cmd.Flags().Int64Var(&puzzle, "puzzle", 0, "Puzzle id")
	cmd.Flags().StringVar(&day, "date", "", "Puzzle date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&scope, "scope", "UK", "Region code, or user id for user mode")
	_ = cmd.MarkFlagRequired("puzzle")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newDBSetRegionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-region <user-id> <region>",
		Short: "Set the region on a user's profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openRemote(cmd.Context())
			if err != nil {
				return err
			}

			if err := store.SetUserRegion(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			return a.out(cmd).PrintMessage(fmt.Sprintf("region for %s set to %s", args[0], args[1]))
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a session token signed with JWT_SECRET, for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireSession(); err != nil {
				return err
			}

			token, err := session.Sign(args[0], email, a.cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}

			return a.out(cmd).PrintMessage(token)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
