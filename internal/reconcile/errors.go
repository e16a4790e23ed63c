package reconcile

import (
	"fmt"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
)

// ErrorKind classifies why a single game could not be reconciled.
type ErrorKind string

const (
	// KindMalformed: the local record is unreadable. It is kept.
	KindMalformed ErrorKind = "malformed"
	// KindUnresolved: something the write depends on (puzzle date,
	// existing attempt) could not be looked up. The record is kept.
	KindUnresolved ErrorKind = "unresolved"
	// KindPrimaryWrite: the attempt row could not be written. The record
	// is kept for the next run.
	KindPrimaryWrite ErrorKind = "primary_write"
	// KindDependentWrite: guess rows could not be written after the
	// attempt was. Whether the record is kept depends on the run mode.
	KindDependentWrite ErrorKind = "dependent_write"
	// KindOwnership: a pending game belongs to another user. It is kept.
	KindOwnership ErrorKind = "ownership"
	// KindLocalStorage: device storage failed to read or delete.
	KindLocalStorage ErrorKind = "local_storage"
	// KindUnexpected: anything else, including a recovered panic.
	KindUnexpected ErrorKind = "unexpected"
)

// ReconcileError is the failure of one game.
type ReconcileError struct {
	Kind     ErrorKind
	Mode     models.Mode
	PuzzleID int64
	Err      error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("%s %s/%d: %v", e.Kind, e.Mode, e.PuzzleID, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, mode models.Mode, puzzleID int64, err error) *ReconcileError {
	return &ReconcileError{Kind: kind, Mode: mode, PuzzleID: puzzleID, Err: err}
}

// Action is what happened to one local game.
type Action string

const (
	// ActionMigrated: a new remote attempt was created from a guest game.
	ActionMigrated Action = "migrated"
	// ActionAlreadyPresent: the remote attempt existed, the local copy
	// was dropped.
	ActionAlreadyPresent Action = "already_present"
	// ActionDiscarded: the remote copy was ahead, the local copy was
	// dropped without writing.
	ActionDiscarded Action = "discarded"
	// ActionUploaded: local progress was written to the remote attempt.
	ActionUploaded Action = "uploaded"
	// ActionSkipped: nothing was written and the local copy was kept.
	ActionSkipped Action = "skipped"
)

// Outcome is the result of reconciling one local game. Err is nil on
// full success; it can be set alongside a non-skipped Action when a later
// step failed.
type Outcome struct {
	Mode         models.Mode
	PuzzleID     int64
	Action       Action
	LocalDeleted bool
	Err          *ReconcileError
}

// RunKind names a reconciliation routine.
type RunKind string

const (
	RunMigrate RunKind = "migrate"
	RunSync    RunKind = "sync"
)

// Report aggregates one reconciliation run. Err is set only when the run
// as a whole failed; per-game failures live in Outcomes. Interrupted is
// set when the context was cancelled before every game was visited; the
// games already handled keep their outcomes and their modes are still
// recomputed.
type Report struct {
	RunID       string
	Kind        RunKind
	UserID      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Migrated    int
	Outcomes    []Outcome
	Recomputed  []models.Mode
	Interrupted bool
	Err         error
}

// Complete reports whether every game was visited without an outer
// failure.
func (r Report) Complete() bool {
	return r.Err == nil && !r.Interrupted
}

// Failures returns the outcomes that carry an error.
func (r Report) Failures() []Outcome {
	var out []Outcome

	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}

	return out
}

// Count returns how many outcomes took the given action.
func (r Report) Count(a Action) int {
	n := 0

	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}

	return n
}

// fail records an outer failure. The migrated count is floored to zero.
func (r *Report) fail(err error) {
	r.Err = err
	r.Migrated = 0
}
