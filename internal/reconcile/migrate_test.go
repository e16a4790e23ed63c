package reconcile

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/alexjbarnes/puzzle-sync/internal/errors"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func mockMigrator(t *testing.T, local LocalStore, atomic bool) (*Migrator, *MockRemote, *MockViewInvalidator) {
	t.Helper()
	ctrl := gomock.NewController(t)
	rem := NewMockRemote(ctrl)
	views := NewMockViewInvalidator(ctrl)
	return NewMigrator(local, rem, views, testClock(), quietLogger, atomic), rem, views
}

// expectRecompute sets up the stats refresh that follows a migration or
// a completed sync for mode.
func expectRecompute(rem *MockRemote, views *MockViewInvalidator, mode models.Mode) {
	if mode == models.ModeRegion {
		rem.EXPECT().UserRegion(gomock.Any(), testUser).Return("UK", nil)
		rem.EXPECT().ListAttempts(gomock.Any(), mode, testUser, "UK").Return(nil, nil)
	} else {
		rem.EXPECT().ListAttempts(gomock.Any(), mode, testUser, "").Return(nil, nil)
	}
	rem.EXPECT().UpsertStats(gomock.Any(), gomock.Any()).Return(nil)
	views.EXPECT().Invalidate(gomock.Any(), testUser, mode).Return(nil)
}

// --- Run ---

func TestMigrate_InsertsAttemptAndGuesses(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeRegion, 5, models.ResultWon, "01011999", "02021999")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, views := mockMigrator(t, local, false)

	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeRegion, testUser, int64(5)).Return(nil, nil)
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeRegion, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Mode, a models.NewAttempt) (int64, error) {
			assert.Equal(t, testUser, a.UserID)
			assert.Equal(t, int64(5), a.PuzzleID)
			require.NotNil(t, a.Result)
			assert.Equal(t, models.ResultWon, *a.Result)
			assert.Equal(t, 2, a.NumGuesses)
			assert.True(t, a.StartedAt.Equal(rec.LastUpdated))
			require.NotNil(t, a.CompletedAt)
			assert.True(t, a.CompletedAt.Equal(rec.LastUpdated))
			assert.Equal(t, 8, a.DigitWidth)
			require.NotNil(t, a.StreakDayStatus)
			assert.Equal(t, 1, *a.StreakDayStatus)
			return 42, nil
		})
	rem.EXPECT().InsertGuesses(gomock.Any(), models.ModeRegion, int64(42), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Mode, _ int64, guesses []models.Guess) error {
			require.Len(t, guesses, 2)
			assert.Equal(t, "01011999", guesses[0].Value)
			assert.Equal(t, "02021999", guesses[1].Value)
			assert.True(t, guesses[0].GuessedAt.Equal(rec.LastUpdated))
			return nil
		})
	expectRecompute(rem, views, models.ModeRegion)

	report := m.Run(context.Background(), testUser)

	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, []models.Mode{models.ModeRegion}, report.Recomputed)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, RunMigrate, report.Kind)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, ActionMigrated, report.Outcomes[0].Action)
	assert.True(t, report.Outcomes[0].LocalDeleted)
	assert.Nil(t, report.Outcomes[0].Err)
	assert.Equal(t, 0, guestCount(t, local))
}

func TestMigrate_InProgressHasNoResultOrCompletion(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeUser, 6, models.ResultInProgress, "01011999")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, views := mockMigrator(t, local, false)

	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeUser, testUser, int64(6)).Return(nil, nil)
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeUser, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Mode, a models.NewAttempt) (int64, error) {
			assert.Nil(t, a.Result)
			assert.Nil(t, a.CompletedAt)
			assert.Nil(t, a.StreakDayStatus)
			return 1, nil
		})
	rem.EXPECT().InsertGuesses(gomock.Any(), models.ModeUser, int64(1), gomock.Any()).Return(nil)
	expectRecompute(rem, views, models.ModeUser)

	report := m.Run(context.Background(), testUser)
	assert.Equal(t, 1, report.Migrated)
}

func TestMigrate_GuessFailureStillDeletesLocal(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeRegion, 5, models.ResultWon, "a", "b")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, views := mockMigrator(t, local, false)

	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeRegion, testUser, int64(5)).Return(nil, nil)
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeRegion, gomock.Any()).Return(int64(42), nil)
	rem.EXPECT().InsertGuesses(gomock.Any(), models.ModeRegion, int64(42), gomock.Any()).Return(errBackend)
	expectRecompute(rem, views, models.ModeRegion)

	report := m.Run(context.Background(), testUser)

	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Migrated)
	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, ActionMigrated, out.Action)
	assert.True(t, out.LocalDeleted)
	require.NotNil(t, out.Err)
	assert.Equal(t, KindDependentWrite, out.Err.Kind)
	assert.ErrorIs(t, out.Err, errBackend)
	assert.Equal(t, 0, guestCount(t, local))
}

func TestMigrate_AtomicGuessFailureKeepsLocal(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeRegion, 5, models.ResultWon, "a", "b")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, _ := mockMigrator(t, local, true)

	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeRegion, testUser, int64(5)).Return(nil, nil)
	rem.EXPECT().InTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(Remote) error) error {
			return fn(rem)
		})
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeRegion, gomock.Any()).Return(int64(42), nil)
	rem.EXPECT().InsertGuesses(gomock.Any(), models.ModeRegion, int64(42), gomock.Any()).Return(errBackend)

	report := m.Run(context.Background(), testUser)

	require.NoError(t, report.Err)
	assert.Equal(t, 0, report.Migrated)
	assert.Empty(t, report.Recomputed)
	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, ActionSkipped, out.Action)
	assert.False(t, out.LocalDeleted)
	require.NotNil(t, out.Err)
	assert.Equal(t, KindDependentWrite, out.Err.Kind)
	assert.Equal(t, 1, guestCount(t, local))
}

func TestMigrate_InsertFailureKeepsRecordAndContinues(t *testing.T) {
	local := testState(t)
	first := guest(models.ModeRegion, 1, models.ResultLost, "a")
	first.PuzzleDate = datePtr(t, "2026-10-15")
	second := guest(models.ModeUser, 2, models.ResultWon, "b")
	second.PuzzleDate = datePtr(t, "2026-10-15")
	require.NoError(t, local.PutGuestRecord(first))
	require.NoError(t, local.PutGuestRecord(second))

	m, rem, views := mockMigrator(t, local, false)

	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeRegion, testUser, int64(1)).Return(nil, nil)
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeRegion, gomock.Any()).Return(int64(0), errBackend)
	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeUser, testUser, int64(2)).Return(nil, nil)
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeUser, gomock.Any()).Return(int64(9), nil)
	rem.EXPECT().InsertGuesses(gomock.Any(), models.ModeUser, int64(9), gomock.Any()).Return(nil)
	expectRecompute(rem, views, models.ModeUser)

	report := m.Run(context.Background(), testUser)

	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, []models.Mode{models.ModeUser}, report.Recomputed)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, models.ModeRegion, failures[0].Mode)
	assert.Equal(t, KindPrimaryWrite, failures[0].Err.Kind)

	entries, err := local.GuestManifest()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].PuzzleID)
}

func TestMigrate_DateFromRemoteAllocation(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeRegion, 3, models.ResultLost, "a")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, views := mockMigrator(t, local, false)

	rem.EXPECT().PuzzleDate(gomock.Any(), models.ModeRegion, int64(3)).Return(date(t, "2026-10-14"), nil)
	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeRegion, testUser, int64(3)).Return(nil, nil)
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeRegion, gomock.Any()).Return(int64(1), nil)
	rem.EXPECT().InsertGuesses(gomock.Any(), models.ModeRegion, int64(1), gomock.Any()).Return(nil)
	expectRecompute(rem, views, models.ModeRegion)

	report := m.Run(context.Background(), testUser)
	assert.Equal(t, 1, report.Migrated)
}

func TestMigrate_UnresolvedDateKeepsRecord(t *testing.T) {
	local := testState(t)
	require.NoError(t, local.PutGuestRecord(guest(models.ModeRegion, 3, models.ResultLost, "a")))

	m, rem, _ := mockMigrator(t, local, false)

	rem.EXPECT().PuzzleDate(gomock.Any(), models.ModeRegion, int64(3)).Return(models.Date{}, apperrors.ErrPuzzleNotFound)

	report := m.Run(context.Background(), testUser)

	require.NoError(t, report.Err)
	assert.Equal(t, 0, report.Migrated)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, KindUnresolved, report.Outcomes[0].Err.Kind)
	assert.True(t, errors.Is(report.Outcomes[0].Err, apperrors.ErrPuzzleNotFound))
	assert.Equal(t, 1, guestCount(t, local))
}

func TestMigrate_ExistingAttemptWins(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeUser, 8, models.ResultWon, "a")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, _ := mockMigrator(t, local, false)

	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeUser, testUser, int64(8)).
		Return(&models.AttemptSummary{ID: 77, Result: resultPtr(models.ResultLost), NumGuesses: 5}, nil)

	report := m.Run(context.Background(), testUser)

	assert.Equal(t, 0, report.Migrated)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, ActionAlreadyPresent, report.Outcomes[0].Action)
	assert.True(t, report.Outcomes[0].LocalDeleted)
	assert.Nil(t, report.Outcomes[0].Err)
	assert.Empty(t, report.Recomputed)
	assert.Equal(t, 0, guestCount(t, local))
}

func TestMigrate_ExistenceCheckFailureKeepsRecord(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeUser, 8, models.ResultWon, "a")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, _ := mockMigrator(t, local, false)
	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeUser, testUser, int64(8)).Return(nil, errBackend)

	report := m.Run(context.Background(), testUser)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, KindUnresolved, report.Outcomes[0].Err.Kind)
	assert.Equal(t, 1, guestCount(t, local))
}

func TestMigrate_MalformedRecordsSkippedWithoutRemoteCalls(t *testing.T) {
	st := testState(t)
	_, err := st.ImportLegacy(map[string]string{
		"guest_game_REGION_4": `{"result":"won"}`,
		"guest_game_USER_5":   `{"guesses":"01011999","result":"won"}`,
	})
	require.NoError(t, err)

	local := &fakeLocal{State: st, extraManifest: []state.ManifestEntry{{}}}

	// No expectations: any remote call fails the test.
	m, _, _ := mockMigrator(t, local, false)

	report := m.Run(context.Background(), testUser)

	require.NoError(t, report.Err)
	assert.Equal(t, 0, report.Migrated)
	require.Len(t, report.Outcomes, 3)
	for _, out := range report.Outcomes {
		require.NotNil(t, out.Err)
		assert.Equal(t, KindMalformed, out.Err.Kind)
		assert.Equal(t, ActionSkipped, out.Action)
		assert.False(t, out.LocalDeleted)
	}
	assert.Equal(t, 2, guestCount(t, st))
}

func TestMigrate_LocalDeleteFailureReported(t *testing.T) {
	st := testState(t)
	rec := guest(models.ModeUser, 8, models.ResultWon, "a")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, st.PutGuestRecord(rec))

	local := &fakeLocal{State: st, deleteErr: errors.New("disk full")}
	m, rem, views := mockMigrator(t, local, false)

	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeUser, testUser, int64(8)).Return(nil, nil)
	rem.EXPECT().InsertAttempt(gomock.Any(), models.ModeUser, gomock.Any()).Return(int64(3), nil)
	rem.EXPECT().InsertGuesses(gomock.Any(), models.ModeUser, int64(3), gomock.Any()).Return(nil)
	expectRecompute(rem, views, models.ModeUser)

	report := m.Run(context.Background(), testUser)

	assert.Equal(t, 1, report.Migrated)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, KindLocalStorage, report.Outcomes[0].Err.Kind)
	assert.False(t, report.Outcomes[0].LocalDeleted)
}

func TestMigrate_ManifestFailureIsOuterError(t *testing.T) {
	local := &fakeLocal{State: testState(t), manifestErr: errors.New("bolt closed")}
	m, _, _ := mockMigrator(t, local, false)

	report := m.Run(context.Background(), testUser)

	assert.Error(t, report.Err)
	assert.Equal(t, 0, report.Migrated)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestMigrate_PanicBecomesOuterError(t *testing.T) {
	local := testState(t)
	rec := guest(models.ModeUser, 8, models.ResultWon, "a")
	rec.PuzzleDate = datePtr(t, "2026-10-16")
	require.NoError(t, local.PutGuestRecord(rec))

	m, rem, _ := mockMigrator(t, local, false)
	rem.EXPECT().AttemptSummary(gomock.Any(), models.ModeUser, testUser, int64(8)).
		DoAndReturn(func(context.Context, models.Mode, string, int64) (*models.AttemptSummary, error) {
			panic("driver bug")
		})

	report := m.Run(context.Background(), testUser)

	var rerr *ReconcileError
	require.True(t, errors.As(report.Err, &rerr))
	assert.Equal(t, KindUnexpected, rerr.Kind)
	assert.Equal(t, 0, report.Migrated)
}

func TestMigrate_RequiresUser(t *testing.T) {
	m, _, _ := mockMigrator(t, testState(t), false)
	report := m.Run(context.Background(), "")
	assert.ErrorIs(t, report.Err, apperrors.ErrNoUser)
}

func TestMigrate_EmptyManifest(t *testing.T) {
	m, _, _ := mockMigrator(t, testState(t), false)
	report := m.Run(context.Background(), testUser)
	require.NoError(t, report.Err)
	assert.Equal(t, 0, report.Migrated)
	assert.Empty(t, report.Outcomes)
}

// --- Recompute ---

func TestRecompute_RegionStatsUseProfileRegion(t *testing.T) {
	m, rem, views := mockMigrator(t, testState(t), false)

	won := resultPtr(models.ResultWon)
	one := 1
	rem.EXPECT().UserRegion(gomock.Any(), testUser).Return("US", nil)
	rem.EXPECT().ListAttempts(gomock.Any(), models.ModeRegion, testUser, "US").Return([]models.Attempt{
		{PuzzleDate: date(t, "2026-10-16"), Result: won, NumGuesses: 2, StreakDayStatus: &one},
		{PuzzleDate: date(t, "2026-10-17"), Result: won, NumGuesses: 3, StreakDayStatus: &one},
	}, nil)
	rem.EXPECT().UpsertStats(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, st models.Stats) error {
		assert.Equal(t, testUser, st.UserID)
		assert.Equal(t, "US", st.Region)
		assert.Equal(t, 2, st.GamesPlayed)
		assert.Equal(t, 2, st.GamesWon)
		assert.Equal(t, 2, st.CurrentStreak)
		assert.Equal(t, 2, st.MaxStreak)
		assert.Equal(t, [models.DistributionBuckets]int{0, 1, 1, 0, 0}, st.GuessDistribution)
		assert.True(t, st.UpdatedAt.Equal(testNow))
		return nil
	})
	views.EXPECT().Invalidate(gomock.Any(), testUser, models.ModeRegion).Return(nil)

	require.NoError(t, m.Recompute(context.Background(), testUser, models.ModeRegion))
}

func TestRecompute_UpsertFailure(t *testing.T) {
	m, rem, _ := mockMigrator(t, testState(t), false)

	rem.EXPECT().ListAttempts(gomock.Any(), models.ModeUser, testUser, "").Return(nil, nil)
	rem.EXPECT().UpsertStats(gomock.Any(), gomock.Any()).Return(errBackend)

	assert.ErrorIs(t, m.Recompute(context.Background(), testUser, models.ModeUser), errBackend)
}
