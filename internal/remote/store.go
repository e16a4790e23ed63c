package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/puzzle-sync/internal/errors"
	"github.com/alexjbarnes/puzzle-sync/internal/models"
)

// modeTables names the per-mode tables and the attempt column that links
// an attempt to its allocated puzzle.
type modeTables struct {
	allocated string
	attempts  string
	guesses   string
	stats     string
	allocCol  string
}

func tablesFor(mode models.Mode) (modeTables, error) {
	switch mode {
	case models.ModeRegion:
		return modeTables{
			allocated: "questions_allocated_region",
			attempts:  "game_attempts_region",
			guesses:   "guesses_region",
			stats:     "user_stats_region",
			allocCol:  "allocated_region_id",
		}, nil
	case models.ModeUser:
		return modeTables{
			allocated: "questions_allocated_user",
			attempts:  "game_attempts_user",
			guesses:   "guesses_user",
			stats:     "user_stats_user",
			allocCol:  "allocated_user_id",
		}, nil
	}

	return modeTables{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownMode, mode)
}

// Store reads and writes attempts, guesses, allocations and stats. A Store
// returned by InTx runs every query inside that transaction.
type Store struct {
	ex executor
	db *DB
}

// NewStore creates a Store backed by db.
func NewStore(db *DB) *Store {
	return &Store{ex: db, db: db}
}

// InTx runs fn against a Store bound to a single transaction, committing
// when fn returns nil and rolling back otherwise. Calling InTx on a Store
// that is already transactional reuses the open transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&Store{ex: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	return s.db.PingContext(ctx)
}

// AllocatePuzzle records which calendar date a puzzle belongs to. scope is
// the region for region puzzles and the owning user id for user puzzles.
func (s *Store) AllocatePuzzle(ctx context.Context, mode models.Mode, puzzleID int64, date models.Date, scope string) error {
	t, err := tablesFor(mode)
	if err != nil {
		return err
	}

	scopeCol := "region"
	if mode == models.ModeUser {
		scopeCol = "user_id"
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, %s, puzzle_date) VALUES (?, ?, ?)%s",
		t.allocated, scopeCol,
		s.ex.GetDialect().UpsertClause([]string{"id"}, []string{scopeCol, "puzzle_date"}),
	)

	if _, err := s.ex.ExecContext(ctx, query, puzzleID, scope, date.Time); err != nil {
		return fmt.Errorf("allocating puzzle %d: %w", puzzleID, err)
	}

	return nil
}

// PuzzleDate looks up the calendar date of an allocated puzzle. It
// returns ErrPuzzleNotFound when the puzzle has no allocation.
func (s *Store) PuzzleDate(ctx context.Context, mode models.Mode, puzzleID int64) (models.Date, error) {
	t, err := tablesFor(mode)
	if err != nil {
		return models.Date{}, err
	}

	var d time.Time

	err = s.ex.QueryRowContext(ctx,
		"SELECT puzzle_date FROM "+t.allocated+" WHERE id = ?", puzzleID,
	).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Date{}, fmt.Errorf("%w: %s puzzle %d", apperrors.ErrPuzzleNotFound, mode, puzzleID)
	}

	if err != nil {
		return models.Date{}, fmt.Errorf("querying puzzle date: %w", err)
	}

	return models.NewDate(d), nil
}

// AttemptSummary returns the user's attempt at a puzzle, or nil when none
// exists.
func (s *Store) AttemptSummary(ctx context.Context, mode models.Mode, userID string, puzzleID int64) (*models.AttemptSummary, error) {
	t, err := tablesFor(mode)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.result, a.num_guesses, a.digits,
			(SELECT COUNT(*) FROM %s g WHERE g.game_attempt_id = a.id)
		FROM %s a
		WHERE a.user_id = ? AND a.%s = ?`,
		t.guesses, t.attempts, t.allocCol)

	var (
		summary models.AttemptSummary
		result  sql.NullString
		digits  sql.NullInt64
	)

	err = s.ex.QueryRowContext(ctx, query, userID, puzzleID).Scan(
		&summary.ID, &result, &summary.NumGuesses, &digits, &summary.GuessRows,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying attempt: %w", err)
	}

	summary.Result = nullResult(result)
	summary.DigitWidth = int(digits.Int64)

	return &summary, nil
}

// InsertAttempt creates an attempt row and returns its id. The unique
// (user, puzzle) constraint rejects a second attempt for the same puzzle.
func (s *Store) InsertAttempt(ctx context.Context, mode models.Mode, a models.NewAttempt) (int64, error) {
	t, err := tablesFor(mode)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, %s, result, num_guesses, started_at, completed_at, digits, streak_day_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.attempts, t.allocCol)

	var completedAt any
	if a.CompletedAt != nil {
		completedAt = a.CompletedAt.UTC()
	}

	var streak any
	if a.StreakDayStatus != nil {
		streak = *a.StreakDayStatus
	}

	id, err := s.ex.ExecReturningID(ctx, query,
		a.UserID, a.PuzzleID, resultArg(a.Result), a.NumGuesses,
		a.StartedAt.UTC(), completedAt, nullableInt(a.DigitWidth), streak,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting attempt: %w", err)
	}

	return id, nil
}

// InsertGuesses appends guess rows to an attempt in one statement. Rows
// keep the order given.
func (s *Store) InsertGuesses(ctx context.Context, mode models.Mode, attemptID int64, guesses []models.Guess) error {
	if len(guesses) == 0 {
		return nil
	}

	t, err := tablesFor(mode)
	if err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(t.guesses)
	b.WriteString(" (game_attempt_id, guess_value, guessed_at) VALUES ")

	args := make([]any, 0, len(guesses)*3)

	for i, g := range guesses {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString("(?, ?, ?)")

		args = append(args, attemptID, g.Value, g.GuessedAt.UTC())
	}

	if _, err := s.ex.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("inserting guesses: %w", err)
	}

	return nil
}

// AttemptGuesses returns an attempt's guess values in insertion order.
func (s *Store) AttemptGuesses(ctx context.Context, mode models.Mode, attemptID int64) ([]string, error) {
	t, err := tablesFor(mode)
	if err != nil {
		return nil, err
	}

	rows, err := s.ex.QueryContext(ctx,
		"SELECT guess_value FROM "+t.guesses+" WHERE game_attempt_id = ? ORDER BY id", attemptID)
	if err != nil {
		return nil, fmt.Errorf("querying guesses: %w", err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, rows.Err()
}

// CompleteAttempt stores the terminal result of an attempt. A win also
// marks the day as counting toward the streak.
func (s *Store) CompleteAttempt(ctx context.Context, mode models.Mode, attemptID int64, result models.Result, numGuesses int, completedAt time.Time) error {
	if !result.Terminal() {
		return fmt.Errorf("completing attempt %d with non-terminal result %q", attemptID, result)
	}

	t, err := tablesFor(mode)
	if err != nil {
		return err
	}

	query := "UPDATE " + t.attempts + " SET result = ?, num_guesses = ?, completed_at = ?"
	args := []any{string(result), numGuesses, completedAt.UTC()}

	if result == models.ResultWon {
		query += ", streak_day_status = ?"

		args = append(args, 1)
	}

	query += " WHERE id = ?"
	args = append(args, attemptID)

	res, err := s.ex.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("completing attempt: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("completing attempt: attempt %d not found", attemptID)
	}

	return nil
}

// SetUserRegion creates or updates a user's profile region.
func (s *Store) SetUserRegion(ctx context.Context, userID, region string) error {
	query := "INSERT INTO user_profiles (id, region) VALUES (?, ?)" +
		s.ex.GetDialect().UpsertClause([]string{"id"}, []string{"region"})

	if _, err := s.ex.ExecContext(ctx, query, userID, region); err != nil {
		return fmt.Errorf("setting user region: %w", err)
	}

	return nil
}

// UserRegion returns the user's profile region, or "" when the user has
// no profile.
func (s *Store) UserRegion(ctx context.Context, userID string) (string, error) {
	var region string

	err := s.ex.QueryRowContext(ctx, "SELECT region FROM user_profiles WHERE id = ?", userID).Scan(&region)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("querying user region: %w", err)
	}

	return region, nil
}

// ListAttempts returns every attempt the user has in a mode, joined with
// its puzzle date and ordered by date. For region puzzles a non-empty
// region restricts the list to puzzles allocated to that region.
func (s *Store) ListAttempts(ctx context.Context, mode models.Mode, userID, region string) ([]models.Attempt, error) {
	t, err := tablesFor(mode)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT a.id, q.id, q.puzzle_date, a.result, a.num_guesses, a.streak_day_status
		FROM %s a
		JOIN %s q ON q.id = a.%s
		WHERE a.user_id = ?`,
		t.attempts, t.allocated, t.allocCol)
	args := []any{userID}

	if mode == models.ModeRegion && region != "" {
		query += " AND q.region = ?"

		args = append(args, region)
	}

	query += " ORDER BY q.puzzle_date, a.id"

	rows, err := s.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt

	for rows.Next() {
		var (
			a      models.Attempt
			date   time.Time
			result sql.NullString
			streak sql.NullInt64
		)

		if err := rows.Scan(&a.ID, &a.PuzzleID, &date, &result, &a.NumGuesses, &streak); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}

		a.PuzzleDate = models.NewDate(date)
		a.Result = nullResult(result)

		if streak.Valid {
			v := int(streak.Int64)
			a.StreakDayStatus = &v
		}

		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

var statsColumns = []string{
	"games_played", "games_won", "current_streak", "max_streak", "guess_distribution", "updated_at",
}

// UpsertStats overwrites the stats row for (user, region) or (user).
func (s *Store) UpsertStats(ctx context.Context, st models.Stats) error {
	t, err := tablesFor(st.Mode)
	if err != nil {
		return err
	}

	dist, err := json.Marshal(st.GuessDistribution)
	if err != nil {
		return fmt.Errorf("encoding guess distribution: %w", err)
	}

	keyCols := []string{"user_id"}
	args := []any{st.UserID}

	if st.Mode == models.ModeRegion {
		keyCols = append(keyCols, "region")
		args = append(args, st.Region)
	}

	cols := append(append([]string{}, keyCols...), statsColumns...)
	args = append(args, st.GamesPlayed, st.GamesWon, st.CurrentStreak, st.MaxStreak, string(dist), st.UpdatedAt.UTC())

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s",
		t.stats, strings.Join(cols, ", "), placeholders,
		s.ex.GetDialect().UpsertClause(keyCols, statsColumns))

	if _, err := s.ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting stats: %w", err)
	}

	return nil
}

// GetStats reads a stats row. It returns ErrStatsNotFound when the user
// has none for the mode (and region).
func (s *Store) GetStats(ctx context.Context, mode models.Mode, userID, region string) (models.Stats, error) {
	t, err := tablesFor(mode)
	if err != nil {
		return models.Stats{}, err
	}

	query := "SELECT games_played, games_won, current_streak, max_streak, guess_distribution, updated_at FROM " +
		t.stats + " WHERE user_id = ?"
	args := []any{userID}

	if mode == models.ModeRegion {
		query += " AND region = ?"

		args = append(args, region)
	}

	st := models.Stats{UserID: userID, Mode: mode}
	if mode == models.ModeRegion {
		st.Region = region
	}

	var (
		dist      string
		updatedAt sql.NullTime
	)

	err = s.ex.QueryRowContext(ctx, query, args...).Scan(
		&st.GamesPlayed, &st.GamesWon, &st.CurrentStreak, &st.MaxStreak, &dist, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Stats{}, apperrors.ErrStatsNotFound
	}

	if err != nil {
		return models.Stats{}, fmt.Errorf("querying stats: %w", err)
	}

	if err := json.Unmarshal([]byte(dist), &st.GuessDistribution); err != nil {
		return models.Stats{}, fmt.Errorf("decoding guess distribution: %w", err)
	}

	if updatedAt.Valid {
		st.UpdatedAt = updatedAt.Time.UTC()
	}

	return st, nil
}

func resultArg(r *models.Result) any {
	if !models.IsTerminal(r) {
		return nil
	}

	return string(*r)
}

func nullResult(ns sql.NullString) *models.Result {
	if !ns.Valid {
		return nil
	}

	r := models.Result(ns.String)
	if !r.Terminal() {
		return nil
	}

	return &r
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}

	return v
}
