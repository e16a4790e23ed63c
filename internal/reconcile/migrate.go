package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/clock"
	apperrors "github.com/alexjbarnes/puzzle-sync/internal/errors"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Migrator moves guest games into a newly signed-in user's account.
type Migrator struct {
	local  LocalStore
	remote Remote
	views  ViewInvalidator
	clock  clock.Clock
	logger *slog.Logger

	// atomic wraps the attempt and guess inserts of one game in a
	// transaction, so a failed guess insert keeps the local record.
	atomic bool
}

// NewMigrator creates a Migrator. views may be nil.
func NewMigrator(local LocalStore, rem Remote, views ViewInvalidator, clk clock.Clock, logger *slog.Logger, atomic bool) *Migrator {
	return &Migrator{
		local:  local,
		remote: rem,
		views:  views,
		clock:  clk,
		logger: logger,
		atomic: atomic,
	}
}

// Run migrates every guest record in the manifest for userID, one at a
// time. A failing record never stops the scan. Afterwards stats are
// recomputed and cached views dropped for every mode that gained an
// attempt.
func (m *Migrator) Run(ctx context.Context, userID string) (report Report) {
	report = Report{
		RunID:     uuid.NewString(),
		Kind:      RunMigrate,
		UserID:    userID,
		StartedAt: m.clock.Now(),
	}

	logger := m.logger.With(slog.String("run_id", report.RunID), slog.String("user_id", userID))

	defer func() {
		if p := recover(); p != nil {
			report.fail(newError(KindUnexpected, "", 0, fmt.Errorf("panic: %v", p)))
			logger.Error("guest migration aborted", slog.Any("panic", p))
		}

		report.FinishedAt = m.clock.Now()
	}()

	if userID == "" {
		report.fail(apperrors.ErrNoUser)
		return report
	}

	entries, err := m.local.GuestManifest()
	if err != nil {
		report.fail(fmt.Errorf("reading guest manifest: %w", err))
		logger.Error("guest migration failed", slog.String("error", err.Error()))

		return report
	}

	logger.Info("guest migration starting", slog.Int("records", len(entries)))

	touched := make(map[models.Mode]bool)

	for _, entry := range entries {
		if ctx.Err() != nil {
			report.Interrupted = true
			logger.Warn("guest migration interrupted", slog.Int("remaining", len(entries)-len(report.Outcomes)))

			break
		}

		out := m.migrateOne(ctx, userID, entry)
		report.Outcomes = append(report.Outcomes, out)

		if out.Action == ActionMigrated {
			report.Migrated++
			touched[out.Mode] = true
		}

		if out.Err != nil {
			logger.Warn("guest record not fully migrated",
				slog.String("mode", string(out.Mode)),
				slog.Int64("puzzle_id", out.PuzzleID),
				slog.String("kind", string(out.Err.Kind)),
				slog.Bool("local_deleted", out.LocalDeleted),
				slog.String("error", out.Err.Err.Error()),
			)
		}
	}

	// Modes already written are refreshed even when the run was interrupted.
	refreshCtx := context.WithoutCancel(ctx)

	for _, mode := range models.Modes {
		if !touched[mode] {
			continue
		}

		if err := m.Recompute(refreshCtx, userID, mode); err != nil {
			logger.Warn("recomputing stats", slog.String("mode", string(mode)), slog.String("error", err.Error()))
			continue
		}

		report.Recomputed = append(report.Recomputed, mode)
	}

	logger.Info("guest migration complete",
		slog.Int("migrated", report.Migrated),
		slog.Int("failures", len(report.Failures())),
		slog.Bool("interrupted", report.Interrupted),
	)

	return report
}

func (m *Migrator) migrateOne(ctx context.Context, userID string, entry state.ManifestEntry) Outcome {
	out := Outcome{Mode: entry.Mode, PuzzleID: entry.PuzzleID, Action: ActionSkipped}

	skip := func(kind ErrorKind, err error) Outcome {
		out.Err = newError(kind, entry.Mode, entry.PuzzleID, err)
		return out
	}

	if !entry.Valid() {
		return skip(KindMalformed, fmt.Errorf("%w: manifest entry has mode %q and puzzle id %d",
			apperrors.ErrMalformedRecord, entry.Mode, entry.PuzzleID))
	}

	raw, err := m.local.GuestRecordRaw(entry)
	if err != nil {
		return skip(KindLocalStorage, err)
	}

	rec, err := decodeGuestRecord(raw)
	if err != nil {
		return skip(KindMalformed, err)
	}

	date, err := m.resolveDate(ctx, entry, rec)
	if err != nil {
		return skip(KindUnresolved, err)
	}

	existing, err := m.remote.AttemptSummary(ctx, entry.Mode, userID, entry.PuzzleID)
	if err != nil {
		return skip(KindUnresolved, fmt.Errorf("checking for existing attempt: %w", err))
	}

	if existing != nil {
		// The account already has this puzzle. The remote copy wins.
		out.Action = ActionAlreadyPresent
		return m.dropLocal(out, entry)
	}

	at := rec.LastUpdated
	if at.IsZero() {
		at = date.Time
	}

	attempt, guesses := buildAttempt(userID, entry, rec, at)

	if m.atomic {
		err = m.remote.InTx(ctx, func(tx Remote) error {
			id, err := tx.InsertAttempt(ctx, entry.Mode, attempt)
			if err != nil {
				return newError(KindPrimaryWrite, entry.Mode, entry.PuzzleID, err)
			}

			if err := tx.InsertGuesses(ctx, entry.Mode, id, guesses); err != nil {
				return newError(KindDependentWrite, entry.Mode, entry.PuzzleID, err)
			}

			return nil
		})
		if err != nil {
			var rerr *ReconcileError
			if !errors.As(err, &rerr) {
				rerr = newError(KindPrimaryWrite, entry.Mode, entry.PuzzleID, err)
			}

			out.Err = rerr

			return out
		}

		out.Action = ActionMigrated

		return m.dropLocal(out, entry)
	}

	id, err := m.remote.InsertAttempt(ctx, entry.Mode, attempt)
	if err != nil {
		return skip(KindPrimaryWrite, err)
	}

	out.Action = ActionMigrated

	// Without a transaction the attempt stays even if its guesses fail;
	// the record is dropped regardless so it is not migrated twice.
	if err := m.remote.InsertGuesses(ctx, entry.Mode, id, guesses); err != nil {
		out.Err = newError(KindDependentWrite, entry.Mode, entry.PuzzleID, err)
	}

	return m.dropLocal(out, entry)
}

func (m *Migrator) dropLocal(out Outcome, entry state.ManifestEntry) Outcome {
	if err := m.local.DeleteGuestRecord(entry); err != nil {
		if out.Err == nil {
			out.Err = newError(KindLocalStorage, entry.Mode, entry.PuzzleID, fmt.Errorf("deleting guest record: %w", err))
		}

		return out
	}

	out.LocalDeleted = true

	return out
}

// decodeGuestRecord rejects records that are missing, are not JSON, or
// whose guesses are not an array, before decoding the rest.
func decodeGuestRecord(raw []byte) (models.GuestGameRecord, error) {
	var rec models.GuestGameRecord

	if raw == nil {
		return rec, fmt.Errorf("%w: record missing", apperrors.ErrMalformedRecord)
	}

	if !gjson.ValidBytes(raw) {
		return rec, fmt.Errorf("%w: invalid JSON", apperrors.ErrMalformedRecord)
	}

	if !gjson.GetBytes(raw, "guesses").IsArray() {
		return rec, fmt.Errorf("%w: guesses missing or not a list", apperrors.ErrMalformedRecord)
	}

	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", apperrors.ErrMalformedRecord, err)
	}

	return rec, nil
}

// resolveDate prefers the date stored with the record and falls back to
// the remote allocation.
func (m *Migrator) resolveDate(ctx context.Context, entry state.ManifestEntry, rec models.GuestGameRecord) (models.Date, error) {
	if rec.PuzzleDate != nil && !rec.PuzzleDate.IsZero() {
		return *rec.PuzzleDate, nil
	}

	date, err := m.remote.PuzzleDate(ctx, entry.Mode, entry.PuzzleID)
	if err != nil {
		return models.Date{}, fmt.Errorf("resolving puzzle date: %w", err)
	}

	return date, nil
}

func buildAttempt(userID string, entry state.ManifestEntry, rec models.GuestGameRecord, at time.Time) (models.NewAttempt, []models.Guess) {
	attempt := models.NewAttempt{
		UserID:     userID,
		PuzzleID:   entry.PuzzleID,
		Result:     models.ResultPtr(rec.Result),
		NumGuesses: len(rec.Guesses),
		StartedAt:  at,
		DigitWidth: rec.DigitWidth,
	}

	if rec.Result.Terminal() {
		completed := at
		attempt.CompletedAt = &completed
	}

	if rec.Result == models.ResultWon {
		one := 1
		attempt.StreakDayStatus = &one
	}

	return attempt, guessRows(rec.Guesses, at)
}
