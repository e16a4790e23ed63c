// Package reconcile merges games played on the device into the signed-in
// user's remote attempts: guest games on sign-in (Migrator), offline games
// on reconnect (Syncer).
package reconcile

import (
	"context"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/remote"
	"github.com/alexjbarnes/puzzle-sync/internal/state"
)

//go:generate mockgen -destination=mock_remote_test.go -package=reconcile . Remote,ViewInvalidator

// Remote is the backend the reconcilers read and write.
type Remote interface {
	PuzzleDate(ctx context.Context, mode models.Mode, puzzleID int64) (models.Date, error)
	AttemptSummary(ctx context.Context, mode models.Mode, userID string, puzzleID int64) (*models.AttemptSummary, error)
	InsertAttempt(ctx context.Context, mode models.Mode, a models.NewAttempt) (int64, error)
	InsertGuesses(ctx context.Context, mode models.Mode, attemptID int64, guesses []models.Guess) error
	CompleteAttempt(ctx context.Context, mode models.Mode, attemptID int64, result models.Result, numGuesses int, completedAt time.Time) error
	UserRegion(ctx context.Context, userID string) (string, error)
	ListAttempts(ctx context.Context, mode models.Mode, userID, region string) ([]models.Attempt, error)
	UpsertStats(ctx context.Context, st models.Stats) error

	// InTx runs fn against a Remote whose writes commit or roll back
	// together.
	InTx(ctx context.Context, fn func(tx Remote) error) error
}

// LocalStore is the device storage holding guest and pending games.
type LocalStore interface {
	PutGuestRecord(rec models.GuestGameRecord) error
	GuestManifest() ([]state.ManifestEntry, error)
	GuestRecordRaw(entry state.ManifestEntry) ([]byte, error)
	DeleteGuestRecord(entry state.ManifestEntry) error

	PutPending(st models.PendingGameState) error
	PendingStates(userID string) ([]state.PendingEntry, error)
	DeletePending(userID string, entry state.PendingEntry) error
}

var _ LocalStore = (*state.State)(nil)

// ViewInvalidator drops cached views derived from a user's attempts.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, userID string, mode models.Mode) error
}

// StoreRemote adapts a *remote.Store to Remote.
type StoreRemote struct {
	*remote.Store
}

var _ Remote = StoreRemote{}

// InTx runs fn inside a database transaction.
func (r StoreRemote) InTx(ctx context.Context, fn func(tx Remote) error) error {
	return r.Store.InTx(ctx, func(tx *remote.Store) error {
		return fn(StoreRemote{Store: tx})
	})
}
