// Package models defines types shared across internal packages.
package models

import (
	"fmt"
	"time"
)

// Mode selects one of the two puzzle pools.
type Mode string

const (
	// ModeRegion is the region-wide daily puzzle.
	ModeRegion Mode = "region"
	// ModeUser is the personalised per-user puzzle set.
	ModeUser Mode = "user"
)

// Modes lists every mode in a stable order.
var Modes = []Mode{ModeRegion, ModeUser}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeRegion || m == ModeUser
}

// ParseMode converts a case-sensitive mode name. The legacy client wrote
// modes in upper case, so both spellings are accepted.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "region", "REGION":
		return ModeRegion, nil
	case "user", "USER":
		return ModeUser, nil
	}

	return "", fmt.Errorf("unknown puzzle mode %q", s)
}

// Result is the outcome of a single play.
type Result string

const (
	ResultWon        Result = "won"
	ResultLost       Result = "lost"
	ResultInProgress Result = "in_progress"
)

// Terminal reports whether the result ends the attempt.
func (r Result) Terminal() bool {
	return r == ResultWon || r == ResultLost
}

// Valid reports whether r is a known result.
func (r Result) Valid() bool {
	return r.Terminal() || r == ResultInProgress
}

// ResultPtr returns nil for non-terminal results so that callers can
// store it straight into a nullable column.
func ResultPtr(r Result) *Result {
	if !r.Terminal() {
		return nil
	}

	return &r
}

// IsTerminal reports whether a nullable result is won or lost.
func IsTerminal(r *Result) bool {
	return r != nil && r.Terminal()
}

// Date is a calendar date without a time of day. It marshals as
// YYYY-MM-DD, matching the backend's DATE columns.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate truncates t to its calendar date in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. A full RFC 3339 timestamp is also
// accepted and truncated to its date.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}

	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// DaysUntil returns the number of whole calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		return nil
	}

	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a JSON string, got %s", s)
	}

	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// GuestGameRecord is one unauthenticated play session, stored on the
// device until it is merged into an account.
type GuestGameRecord struct {
	Mode        Mode      `json:"mode"`
	PuzzleID    int64     `json:"puzzle_id"`
	Guesses     []string  `json:"guesses"`
	Result      Result    `json:"result"`
	PuzzleDate  *Date     `json:"puzzle_date,omitempty"`
	DigitWidth  int       `json:"digits"`
	LastUpdated time.Time `json:"last_updated"`
}

// PendingGameState is a game played by a signed-in user while offline.
// It is namespaced by owner so one account never sees another's games.
type PendingGameState struct {
	OwnerUserID string    `json:"owner_user_id"`
	Mode        Mode      `json:"mode"`
	PuzzleID    int64     `json:"puzzle_id"`
	Guesses     []string  `json:"guesses"`
	Result      *Result   `json:"result"`
	DigitWidth  int       `json:"digits"`
	LastUpdated time.Time `json:"last_updated"`
}

// AttemptSummary is the slice of a remote attempt that sync needs to
// decide which copy is authoritative.
type AttemptSummary struct {
	ID         int64
	Result     *Result
	NumGuesses int
	GuessRows  int
	DigitWidth int
}

// Progress returns how many guesses the remote copy already holds.
// Guesses are append-only within an attempt, so this is a monotonic
// progress marker.
func (s *AttemptSummary) Progress() int {
	return max(s.NumGuesses, s.GuessRows)
}

// NewAttempt carries the columns written when an attempt row is created.
type NewAttempt struct {
	UserID          string
	PuzzleID        int64
	Result          *Result
	NumGuesses      int
	StartedAt       time.Time
	CompletedAt     *time.Time
	DigitWidth      int
	StreakDayStatus *int
}

// Guess is a single guess row belonging to an attempt.
type Guess struct {
	Value     string
	GuessedAt time.Time
}

// Attempt is a remote attempt joined with its puzzle date, as read back
// for stats recomputation.
type Attempt struct {
	ID              int64
	PuzzleID        int64
	PuzzleDate      Date
	Result          *Result
	NumGuesses      int
	StreakDayStatus *int
}

// DistributionBuckets is the number of guess-count buckets (1..5).
const DistributionBuckets = 5

// Stats is the aggregated per-user, per-mode record. It is derived
// entirely from attempts and can be overwritten at any time.
type Stats struct {
	UserID            string                   `json:"user_id" yaml:"user_id"`
	Region            string                   `json:"region,omitempty" yaml:"region,omitempty"`
	Mode              Mode                     `json:"mode" yaml:"mode"`
	GamesPlayed       int                      `json:"games_played" yaml:"games_played"`
	GamesWon          int                      `json:"games_won" yaml:"games_won"`
	CurrentStreak     int                      `json:"current_streak" yaml:"current_streak"`
	MaxStreak         int                      `json:"max_streak" yaml:"max_streak"`
	GuessDistribution [DistributionBuckets]int `json:"guess_distribution" yaml:"guess_distribution"`
	UpdatedAt         time.Time                `json:"updated_at" yaml:"updated_at"`
}
