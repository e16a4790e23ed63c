package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/clock"
	apperrors "github.com/alexjbarnes/puzzle-sync/internal/errors"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/state"
	"github.com/google/uuid"
)

// Syncer reconciles games a signed-in user played offline with their
// remote attempts.
//
// Guesses are append-only within an attempt, so the number of guesses
// each side holds orders them: the remote copy wins when it is finished
// or strictly ahead, otherwise local progress is appended to it.
type Syncer struct {
	local  LocalStore
	remote Remote
	views  ViewInvalidator
	clock  clock.Clock
	logger *slog.Logger
	atomic bool
}

// NewSyncer creates a Syncer. views may be nil.
func NewSyncer(local LocalStore, rem Remote, views ViewInvalidator, clk clock.Clock, logger *slog.Logger, atomic bool) *Syncer {
	return &Syncer{
		local:  local,
		remote: rem,
		views:  views,
		clock:  clk,
		logger: logger,
		atomic: atomic,
	}
}

// Run reconciles every pending game stored for userID. Each game is
// handled independently; a failure leaves that game for the next run.
func (s *Syncer) Run(ctx context.Context, userID string) (report Report) {
	report = Report{
		RunID:     uuid.NewString(),
		Kind:      RunSync,
		UserID:    userID,
		StartedAt: s.clock.Now(),
	}

	logger := s.logger.With(slog.String("run_id", report.RunID), slog.String("user_id", userID))

	defer func() {
		if p := recover(); p != nil {
			report.fail(newError(KindUnexpected, "", 0, fmt.Errorf("panic: %v", p)))
			logger.Error("offline sync aborted", slog.Any("panic", p))
		}

		report.FinishedAt = s.clock.Now()
	}()

	if userID == "" {
		report.fail(apperrors.ErrNoUser)
		return report
	}

	entries, err := s.local.PendingStates(userID)
	if err != nil {
		report.fail(fmt.Errorf("reading pending games: %w", err))
		logger.Error("offline sync failed", slog.String("error", err.Error()))

		return report
	}

	if len(entries) == 0 {
		logger.Debug("no pending games")
		return report
	}

	logger.Info("offline sync starting", slog.Int("pending", len(entries)))

	completed := make(map[models.Mode]bool)

	for _, entry := range entries {
		if ctx.Err() != nil {
			report.Interrupted = true
			logger.Warn("offline sync interrupted", slog.Int("remaining", len(entries)-len(report.Outcomes)))

			break
		}

		out, finished := s.syncOne(ctx, userID, entry)
		report.Outcomes = append(report.Outcomes, out)

		if finished {
			completed[out.Mode] = true
		}

		if out.Err != nil {
			logger.Warn("pending game not synced",
				slog.String("mode", string(out.Mode)),
				slog.Int64("puzzle_id", out.PuzzleID),
				slog.String("kind", string(out.Err.Kind)),
				slog.String("error", out.Err.Err.Error()),
			)
		}
	}

	refreshCtx := context.WithoutCancel(ctx)

	for _, mode := range models.Modes {
		if !completed[mode] {
			continue
		}

		if err := refreshStats(refreshCtx, s.remote, s.views, s.clock, userID, mode); err != nil {
			logger.Warn("recomputing stats", slog.String("mode", string(mode)), slog.String("error", err.Error()))
			continue
		}

		report.Recomputed = append(report.Recomputed, mode)
	}

	logger.Info("offline sync complete",
		slog.Int("uploaded", report.Count(ActionUploaded)),
		slog.Int("discarded", report.Count(ActionDiscarded)),
		slog.Int("failures", len(report.Failures())),
		slog.Bool("interrupted", report.Interrupted),
	)

	return report
}

// syncOne handles one pending game. finished reports whether a terminal
// result was written to the remote attempt.
func (s *Syncer) syncOne(ctx context.Context, userID string, entry state.PendingEntry) (out Outcome, finished bool) {
	st := entry.State
	out = Outcome{Mode: st.Mode, PuzzleID: st.PuzzleID, Action: ActionSkipped}

	skip := func(kind ErrorKind, err error) (Outcome, bool) {
		out.Err = newError(kind, st.Mode, st.PuzzleID, err)
		return out, false
	}

	if entry.DecodeErr != nil {
		return skip(KindMalformed, fmt.Errorf("%w: %v", apperrors.ErrMalformedRecord, entry.DecodeErr))
	}

	if st.OwnerUserID != userID {
		return skip(KindOwnership, apperrors.ErrOwnerMismatch)
	}

	if !st.Mode.Valid() || st.PuzzleID <= 0 {
		return skip(KindMalformed, fmt.Errorf("%w: mode %q puzzle id %d", apperrors.ErrMalformedRecord, st.Mode, st.PuzzleID))
	}

	summary, err := s.remote.AttemptSummary(ctx, st.Mode, userID, st.PuzzleID)
	if err != nil {
		return skip(KindUnresolved, fmt.Errorf("fetching remote attempt: %w", err))
	}

	if serverWins(summary, len(st.Guesses)) {
		out.Action = ActionDiscarded
		return s.dropLocal(out, userID, entry), false
	}

	if s.atomic {
		err = s.remote.InTx(ctx, func(tx Remote) error {
			if rerr := s.upload(ctx, tx, userID, st, summary); rerr != nil {
				return rerr
			}

			return nil
		})
	} else if rerr := s.upload(ctx, s.remote, userID, st, summary); rerr != nil {
		err = rerr
	}

	if err != nil {
		var rerr *ReconcileError
		if !errors.As(err, &rerr) {
			rerr = newError(KindPrimaryWrite, st.Mode, st.PuzzleID, err)
		}

		out.Err = rerr

		return out, false
	}

	out.Action = ActionUploaded

	return s.dropLocal(out, userID, entry), models.IsTerminal(st.Result)
}

// serverWins reports whether the remote attempt supersedes a local game
// holding localGuesses guesses.
func serverWins(remote *models.AttemptSummary, localGuesses int) bool {
	if remote == nil {
		return false
	}

	return models.IsTerminal(remote.Result) || remote.Progress() > localGuesses
}

// upload makes sure the attempt exists, appends the guesses the remote
// copy lacks and, for finished games, stores the result. The first
// failing step aborts the rest.
func (s *Syncer) upload(ctx context.Context, rem Remote, userID string, st models.PendingGameState, summary *models.AttemptSummary) *ReconcileError {
	at := st.LastUpdated
	if at.IsZero() {
		at = s.clock.Now().UTC()
	}

	var (
		attemptID      int64
		remoteProgress int
	)

	if summary == nil {
		// Guess count stays at zero until the attempt finishes; the guess
		// rows carry progress so an interrupted append is retried.
		id, err := rem.InsertAttempt(ctx, st.Mode, models.NewAttempt{
			UserID:     userID,
			PuzzleID:   st.PuzzleID,
			StartedAt:  at,
			DigitWidth: st.DigitWidth,
		})
		if err != nil {
			return newError(KindPrimaryWrite, st.Mode, st.PuzzleID, fmt.Errorf("creating attempt: %w", err))
		}

		attemptID = id
	} else {
		attemptID = summary.ID
		remoteProgress = summary.Progress()
	}

	if delta := st.Guesses[remoteProgress:]; len(delta) > 0 {
		if err := rem.InsertGuesses(ctx, st.Mode, attemptID, guessRows(delta, at)); err != nil {
			return newError(KindDependentWrite, st.Mode, st.PuzzleID, fmt.Errorf("appending guesses: %w", err))
		}
	}

	if models.IsTerminal(st.Result) {
		if err := rem.CompleteAttempt(ctx, st.Mode, attemptID, *st.Result, len(st.Guesses), at); err != nil {
			return newError(KindPrimaryWrite, st.Mode, st.PuzzleID, fmt.Errorf("completing attempt: %w", err))
		}
	}

	return nil
}

func (s *Syncer) dropLocal(out Outcome, userID string, entry state.PendingEntry) Outcome {
	if err := s.local.DeletePending(userID, entry); err != nil {
		out.Err = newError(KindLocalStorage, out.Mode, out.PuzzleID, fmt.Errorf("deleting pending game: %w", err))
		return out
	}

	out.LocalDeleted = true

	return out
}

func guessRows(values []string, at time.Time) []models.Guess {
	rows := make([]models.Guess, len(values))
	for i, v := range values {
		rows[i] = models.Guess{Value: v, GuessedAt: at}
	}

	return rows
}
