package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/clock"
	"github.com/alexjbarnes/puzzle-sync/internal/logging"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/remote"
	"github.com/alexjbarnes/puzzle-sync/internal/state"
	"github.com/stretchr/testify/require"
)

const testUser = "5b2c1e0a-7f0e-4c3e-9a51-1d2f3a4b5c6d"

var (
	testNow     = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	quietLogger = logging.Discard()
	errBackend  = errors.New("backend unavailable")
)

func testClock() *clock.Fixed {
	return clock.NewFixed(testNow)
}

func testState(t *testing.T) *state.State {
	t.Helper()
	s, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testStore(t *testing.T) *remote.Store {
	t.Helper()
	ctx := context.Background()

	db, err := remote.Open(ctx, remote.Options{Type: "sqlite", Path: filepath.Join(t.TempDir(), "remote.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(ctx, quietLogger))

	return remote.NewStore(db)
}

func date(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func datePtr(t *testing.T, s string) *models.Date {
	d := date(t, s)
	return &d
}

func resultPtr(r models.Result) *models.Result {
	return &r
}

func guest(mode models.Mode, id int64, result models.Result, guesses ...string) models.GuestGameRecord {
	return models.GuestGameRecord{
		Mode:        mode,
		PuzzleID:    id,
		Guesses:     guesses,
		Result:      result,
		DigitWidth:  8,
		LastUpdated: testNow.Add(-time.Hour),
	}
}

func pending(mode models.Mode, id int64, result *models.Result, guesses ...string) models.PendingGameState {
	return models.PendingGameState{
		OwnerUserID: testUser,
		Mode:        mode,
		PuzzleID:    id,
		Guesses:     guesses,
		Result:      result,
		DigitWidth:  8,
		LastUpdated: testNow.Add(-time.Hour),
	}
}

// fakeLocal wraps a real state database and lets tests inject entries
// that the database itself would refuse, plus storage failures.
type fakeLocal struct {
	*state.State

	extraManifest []state.ManifestEntry
	extraPending  []state.PendingEntry
	manifestErr   error
	pendingErr    error
	deleteErr     error
}

func (f *fakeLocal) GuestManifest() ([]state.ManifestEntry, error) {
	if f.manifestErr != nil {
		return nil, f.manifestErr
	}
	entries, err := f.State.GuestManifest()
	return append(append([]state.ManifestEntry{}, f.extraManifest...), entries...), err
}

func (f *fakeLocal) DeleteGuestRecord(entry state.ManifestEntry) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.State.DeleteGuestRecord(entry)
}

func (f *fakeLocal) PendingStates(userID string) ([]state.PendingEntry, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	entries, err := f.State.PendingStates(userID)
	return append(append([]state.PendingEntry{}, f.extraPending...), entries...), err
}

// failingGuesses is a Remote whose guess inserts always fail, inside or
// outside a transaction.
type failingGuesses struct {
	Remote
}

func (f failingGuesses) InsertGuesses(context.Context, models.Mode, int64, []models.Guess) error {
	return errBackend
}

func (f failingGuesses) InTx(ctx context.Context, fn func(tx Remote) error) error {
	return f.Remote.InTx(ctx, func(tx Remote) error {
		return fn(failingGuesses{Remote: tx})
	})
}

func guestCount(t *testing.T, s *state.State) int {
	t.Helper()
	n, err := s.GuestCount()
	require.NoError(t, err)
	return n
}

// cancelOnGuesses cancels the run's context as soon as the first guess
// insert starts, then lets the insert proceed with the cancelled context.
type cancelOnGuesses struct {
	Remote
	cancel context.CancelFunc
}

func (c cancelOnGuesses) InsertGuesses(ctx context.Context, mode models.Mode, attemptID int64, guesses []models.Guess) error {
	c.cancel()
	return c.Remote.InsertGuesses(ctx, mode, attemptID, guesses)
}

// cancelAfterComplete cancels the run's context once an attempt has been
// completed on the backend.
type cancelAfterComplete struct {
	Remote
	cancel context.CancelFunc
}

func (c cancelAfterComplete) CompleteAttempt(ctx context.Context, mode models.Mode, attemptID int64, result models.Result, numGuesses int, completedAt time.Time) error {
	err := c.Remote.CompleteAttempt(ctx, mode, attemptID, result, numGuesses, completedAt)
	c.cancel()
	return err
}
