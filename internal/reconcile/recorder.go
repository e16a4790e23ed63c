package reconcile

import (
	"context"
	"log/slog"

	"github.com/alexjbarnes/puzzle-sync/internal/clock"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
)

// Recorder stores finished or in-progress plays on the device. It never
// touches the network and never fails the caller: gameplay must not be
// blocked by a storage error, so failures are logged and dropped.
type Recorder struct {
	local  LocalStore
	clock  clock.Clock
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing to local.
func NewRecorder(local LocalStore, clk clock.Clock, logger *slog.Logger) *Recorder {
	return &Recorder{local: local, clock: clk, logger: logger}
}

// Record writes or overwrites the guest game for rec's (mode, puzzle).
func (r *Recorder) Record(ctx context.Context, rec models.GuestGameRecord) {
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = r.clock.Now().UTC()
	}

	if err := r.local.PutGuestRecord(rec); err != nil {
		r.logger.WarnContext(ctx, "recording guest game",
			slog.String("mode", string(rec.Mode)),
			slog.Int64("puzzle_id", rec.PuzzleID),
			slog.String("error", err.Error()),
		)

		return
	}

	r.logger.DebugContext(ctx, "guest game recorded",
		slog.String("mode", string(rec.Mode)),
		slog.Int64("puzzle_id", rec.PuzzleID),
		slog.Int("guesses", len(rec.Guesses)),
	)
}

// RecordPending writes or overwrites a signed-in user's offline game.
func (r *Recorder) RecordPending(ctx context.Context, st models.PendingGameState) {
	if st.LastUpdated.IsZero() {
		st.LastUpdated = r.clock.Now().UTC()
	}

	if err := r.local.PutPending(st); err != nil {
		r.logger.WarnContext(ctx, "recording offline game",
			slog.String("mode", string(st.Mode)),
			slog.Int64("puzzle_id", st.PuzzleID),
			slog.String("error", err.Error()),
		)

		return
	}

	r.logger.DebugContext(ctx, "offline game recorded",
		slog.String("mode", string(st.Mode)),
		slog.Int64("puzzle_id", st.PuzzleID),
		slog.Int("guesses", len(st.Guesses)),
	)
}
