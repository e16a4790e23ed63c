package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// printRuns prints the reports and returns the first run-level error.
func (a *app) printRuns(cmd *cobra.Command, reports ...reconcile.Report) error {
	summaries := make([]RunSummary, len(reports))
	for i, r := range reports {
		summaries[i] = summarize(r)
	}

	var data any = summaries
	if len(summaries) == 1 {
		data = summaries[0]
	}

	if err := a.out(cmd).Print(data); err != nil {
		return err
	}

	for _, r := range reports {
		if r.Err != nil {
			return r.Err
		}
	}

	return nil
}

func newSignInCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signin",
		Short: "Run the sign-in reconciliation: migrate guest games, then sync offline games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}

			svc, _, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			migrate, sync := svc.OnSignIn(cmd.Context(), sess.UserID)

			return a.printRuns(cmd, migrate, sync)
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move guest games on this device into the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}

			svc, _, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			return a.printRuns(cmd, svc.Migrate(cmd.Context(), sess.UserID))
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload games the signed-in user played offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}

			svc, _, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			return a.printRuns(cmd, svc.OnReconnect(cmd.Context(), sess.UserID))
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync offline games whenever the backend becomes reachable",
		Long: `watch runs the sign-in reconciliation once, then probes the backend every
interval and syncs offline games each time it comes back. It runs until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}

			svc, _, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			if interval <= 0 {
				interval = a.cfg.WatchInterval
			}

			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() error {
				migrate, sync := svc.OnSignIn(ctx, sess.UserID)
				a.logRun(ctx, migrate)
				a.logRun(ctx, sync)

				return nil
			})

			g.Go(func() error {
				return svc.Watch(ctx, sess.UserID, interval)
			})

			return g.Wait()
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Probe interval (env: WATCH_INTERVAL)")

	return cmd
}

func (a *app) logRun(ctx context.Context, r reconcile.Report) {
	if r.Err != nil {
		a.logger.WarnContext(ctx, "reconciliation failed",
			slog.String("kind", string(r.Kind)),
			slog.String("run_id", r.RunID),
			slog.String("error", r.Err.Error()),
		)

		return
	}

	a.logger.InfoContext(ctx, "reconciliation finished",
		slog.String("kind", string(r.Kind)),
		slog.String("run_id", r.RunID),
		slog.Int("failures", len(r.Failures())),
	)
}
