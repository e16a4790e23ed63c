package cli

import (
	"errors"
	"log/slog"

	apperrors "github.com/alexjbarnes/puzzle-sync/internal/errors"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/reconcile"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		modeName string
		refresh  bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the signed-in user's stats for a mode",
		Long: `stats reads the cached stats view, falling back to the backend's stats row.
With --refresh the row is rebuilt from the user's attempts first and the
cached views are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mode, err := models.ParseMode(modeName)
			if err != nil {
				return err
			}

			sess, err := a.session()
			if err != nil {
				return err
			}

			local, err := a.openLocal()
			if err != nil {
				return err
			}

			store, err := a.openRemote(ctx)
			if err != nil {
				return err
			}

			views, err := a.openViews(ctx)
			if err != nil {
				return err
			}

			rem := reconcile.StoreRemote{Store: store}

			if refresh {
				m := reconcile.NewMigrator(local, rem, views, a.clock, a.logger, a.cfg.AtomicWrites)
				if err := m.Recompute(ctx, sess.UserID, mode); err != nil {
					return err
				}
			}

			st, found, err := views.GetStats(ctx, sess.UserID, mode)
			if err != nil {
				a.logger.Warn("reading cached stats", slog.String("error", err.Error()))
			}

			if found {
				a.logger.Debug("stats served from cache", slog.String("mode", string(mode)))
				return a.out(cmd).Print(st)
			}

			region := ""
			if mode == models.ModeRegion {
				if region, err = store.UserRegion(ctx, sess.UserID); err != nil {
					return err
				}
			}

			st, err = store.GetStats(ctx, mode, sess.UserID, region)
			if errors.Is(err, apperrors.ErrStatsNotFound) {
				// No row yet; derive one without saving it.
				st, err = reconcile.RecomputeStats(ctx, rem, sess.UserID, mode)
			}

			if err != nil {
				return err
			}

			if err := views.SetStats(ctx, st); err != nil {
				a.logger.Warn("caching stats", slog.String("error", err.Error()))
			}

			return a.out(cmd).Print(st)
		},
	}

	cmd.Flags().StringVar(&modeName, "mode", string(models.ModeRegion), "Puzzle mode: region or user")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Rebuild the stats row from attempts first")

	return cmd
}
