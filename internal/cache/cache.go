// Package cache holds derived views (stats, streak-saver and badge
// eligibility, attempt history) that must be dropped whenever a user's
// attempts change.
package cache

import (
	"context"
	"fmt"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
)

const keyPrefix = "puzzlesync"

// View names one cached projection of a user's attempts.
type View string

const (
	ViewUserStats      View = "user-stats"
	ViewStreakSaver    View = "streak-saver"
	ViewBadges         View = "badges"
	ViewAttemptHistory View = "attempt-history"
)

// AllViews lists every view dropped by Invalidate.
var AllViews = []View{ViewUserStats, ViewStreakSaver, ViewBadges, ViewAttemptHistory}

func viewKey(userID string, mode models.Mode, view View) string {
	return fmt.Sprintf("%s:view:%s:%s:%s", keyPrefix, userID, mode, view)
}

// Views is the view cache used by the reconcilers and the CLI.
type Views interface {
	// Invalidate drops every cached view for (user, mode).
	Invalidate(ctx context.Context, userID string, mode models.Mode) error

	// GetStats returns the cached stats view. found is false on a miss.
	GetStats(ctx context.Context, userID string, mode models.Mode) (st models.Stats, found bool, err error)

	// SetStats caches the stats view for st's user and mode.
	SetStats(ctx context.Context, st models.Stats) error

	Close() error
}

// Nop is used when no cache is configured. Every read misses.
type Nop struct{}

var _ Views = Nop{}

func (Nop) Invalidate(context.Context, string, models.Mode) error { return nil }

func (Nop) GetStats(context.Context, string, models.Mode) (models.Stats, bool, error) {
	return models.Stats{}, false, nil
}

func (Nop) SetStats(context.Context, models.Stats) error { return nil }

func (Nop) Close() error { return nil }
