package reconcile

import (
	"context"
	"fmt"

	"github.com/alexjbarnes/puzzle-sync/internal/clock"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/stats"
)

// Recompute rebuilds the user's stats row for mode from their attempts
// and drops the cached views derived from it. Region stats only count
// puzzles allocated to the user's profile region.
func (m *Migrator) Recompute(ctx context.Context, userID string, mode models.Mode) error {
	return refreshStats(ctx, m.remote, m.views, m.clock, userID, mode)
}

func refreshStats(ctx context.Context, rem Remote, views ViewInvalidator, clk clock.Clock, userID string, mode models.Mode) error {
	st, err := RecomputeStats(ctx, rem, userID, mode)
	if err != nil {
		return err
	}

	st.UpdatedAt = clk.Now().UTC()

	if err := rem.UpsertStats(ctx, st); err != nil {
		return fmt.Errorf("saving %s stats: %w", mode, err)
	}

	if views != nil {
		if err := views.Invalidate(ctx, userID, mode); err != nil {
			return fmt.Errorf("invalidating %s views: %w", mode, err)
		}
	}

	return nil
}

// RecomputeStats derives a stats row from the remote attempts without
// saving it.
func RecomputeStats(ctx context.Context, rem Remote, userID string, mode models.Mode) (models.Stats, error) {
	st := models.Stats{UserID: userID, Mode: mode}

	if mode == models.ModeRegion {
		region, err := rem.UserRegion(ctx, userID)
		if err != nil {
			return st, fmt.Errorf("looking up region: %w", err)
		}

		st.Region = region
	}

	attempts, err := rem.ListAttempts(ctx, mode, userID, st.Region)
	if err != nil {
		return st, fmt.Errorf("listing %s attempts: %w", mode, err)
	}

	sum := stats.Compute(attempts)
	st.GamesPlayed = sum.GamesPlayed
	st.GamesWon = sum.GamesWon
	st.CurrentStreak = sum.CurrentStreak
	st.MaxStreak = sum.MaxStreak
	st.GuessDistribution = sum.GuessDistribution

	return st, nil
}
