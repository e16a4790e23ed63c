package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/alexjbarnes/puzzle-sync/internal/reconcile"
	"github.com/alexjbarnes/puzzle-sync/internal/state"
	"gopkg.in/yaml.v3"
)

// Output formats command results as text, JSON or YAML.
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter.
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

func validFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	}

	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

// Print writes data in the configured format.
func (o *Output) Print(data any) error {
	switch o.format {
	case "json":
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")

		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(o.w)
		defer enc.Close()

		return enc.Encode(data)
	}

	o.printText(data)

	return nil
}

// PrintMessage writes a one-line message.
func (o *Output) PrintMessage(msg string) error {
	if o.format == "text" {
		_, err := fmt.Fprintln(o.w, msg)
		return err
	}

	return o.Print(map[string]string{"message": msg})
}

// RunSummary is the printable form of a reconciliation report.
type RunSummary struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	Kind        string           `json:"kind" yaml:"kind"`
	UserID      string           `json:"user_id" yaml:"user_id"`
	StartedAt   time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time        `json:"finished_at" yaml:"finished_at"`
	Migrated    int              `json:"migrated" yaml:"migrated"`
	Actions     map[string]int   `json:"actions" yaml:"actions"`
	Recomputed  []string         `json:"recomputed,omitempty" yaml:"recomputed,omitempty"`
	Failures    []FailureSummary `json:"failures,omitempty" yaml:"failures,omitempty"`
	Interrupted bool             `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// FailureSummary describes one game that was not fully reconciled.
type FailureSummary struct {
	Mode         string `json:"mode" yaml:"mode"`
	PuzzleID     int64  `json:"puzzle_id" yaml:"puzzle_id"`
	Kind         string `json:"kind" yaml:"kind"`
	LocalDeleted bool   `json:"local_deleted" yaml:"local_deleted"`
	Error        string `json:"error" yaml:"error"`
}

func summarize(r reconcile.Report) RunSummary {
	s := RunSummary{
		RunID:       r.RunID,
		Kind:        string(r.Kind),
		UserID:      r.UserID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Migrated:    r.Migrated,
		Actions:     make(map[string]int),
		Interrupted: r.Interrupted,
	}

	for _, o := range r.Outcomes {
		s.Actions[string(o.Action)]++

		if o.Err != nil {
			s.Failures = append(s.Failures, FailureSummary{
				Mode:         string(o.Mode),
				PuzzleID:     o.PuzzleID,
				Kind:         string(o.Err.Kind),
				LocalDeleted: o.LocalDeleted,
				Error:        o.Err.Err.Error(),
			})
		}
	}

	for _, m := range r.Recomputed {
		s.Recomputed = append(s.Recomputed, string(m))
	}

	if r.Err != nil {
		s.Error = r.Err.Error()
	}

	return s
}

// Status describes what the device is holding for later reconciliation.
type Status struct {
	UserID       string               `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	GuestRecords int                  `json:"guest_records" yaml:"guest_records"`
	PendingGames int                  `json:"pending_games" yaml:"pending_games"`
	LastRuns     map[string]time.Time `json:"last_runs,omitempty" yaml:"last_runs,omitempty"`
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case RunSummary:
		o.printRun(v)
	case []RunSummary:
		for _, r := range v {
			o.printRun(r)
		}
	case models.Stats:
		o.printStats(v)
	case state.ImportReport:
		o.printImport(v)
	case Status:
		o.printStatus(v)
	default:
		// Fallback to JSON for unknown types
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(data)
	}
}

func (o *Output) printRun(r RunSummary) {
	fmt.Fprintf(o.w, "%s run %s for %s\n", r.Kind, r.RunID, r.UserID)

	if r.Error != "" {
		fmt.Fprintf(o.w, "  failed: %s\n", r.Error)
	}

	if r.Interrupted {
		fmt.Fprintln(o.w, "  interrupted before every game was visited")
	}

	if r.Kind == string(reconcile.RunMigrate) {
		fmt.Fprintf(o.w, "  migrated: %d\n", r.Migrated)
	}

	actions := make([]string, 0, len(r.Actions))
	for a := range r.Actions {
		actions = append(actions, a)
	}

	sort.Strings(actions)

	for _, a := range actions {
		fmt.Fprintf(o.w, "  %s: %d\n", a, r.Actions[a])
	}

	if len(r.Recomputed) > 0 {
		fmt.Fprintf(o.w, "  stats recomputed: %s\n", strings.Join(r.Recomputed, ", "))
	}

	for _, f := range r.Failures {
		kept := "kept"
		if f.LocalDeleted {
			kept = "deleted"
		}

		fmt.Fprintf(o.w, "  ! %s/%d %s (local %s): %s\n", f.Mode, f.PuzzleID, f.Kind, kept, f.Error)
	}
}

func (o *Output) printStats(s models.Stats) {
	fmt.Fprintf(o.w, "Mode: %s\n", s.Mode)

	if s.Region != "" {
		fmt.Fprintf(o.w, "Region: %s\n", s.Region)
	}

	fmt.Fprintf(o.w, "Played: %d\n", s.GamesPlayed)
	fmt.Fprintf(o.w, "Won: %d\n", s.GamesWon)
	fmt.Fprintf(o.w, "Current streak: %d\n", s.CurrentStreak)
	fmt.Fprintf(o.w, "Max streak: %d\n", s.MaxStreak)
	fmt.Fprintln(o.w, "Guess distribution:")

	for i, n := range s.GuessDistribution {
		fmt.Fprintf(o.w, "  %d: %s %d\n", i+1, strings.Repeat("#", n), n)
	}
}

func (o *Output) printImport(r state.ImportReport) {
	fmt.Fprintf(o.w, "Imported %d guest and %d pending games (%d keys ignored)\n", r.Guest, r.Pending, r.Ignored)

	for _, s := range r.Skipped {
		fmt.Fprintf(o.w, "  skipped %s: %s\n", s.Key, s.Reason)
	}
}

func (o *Output) printStatus(s Status) {
	fmt.Fprintf(o.w, "Guest records: %d\n", s.GuestRecords)

	if s.UserID == "" {
		return
	}

	fmt.Fprintf(o.w, "Pending games for %s: %d\n", s.UserID, s.PendingGames)

	for _, kind := range []reconcile.RunKind{reconcile.RunMigrate, reconcile.RunSync} {
		at, ok := s.LastRuns[string(kind)]
		if !ok {
			fmt.Fprintf(o.w, "Last %s: never\n", kind)
			continue
		}

		fmt.Fprintf(o.w, "Last %s: %s\n", kind, at.Format(time.RFC3339))
	}
}
