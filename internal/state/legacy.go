package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
	"github.com/tidwall/gjson"
)

const (
	legacyGuestPrefix   = "guest_game_"
	legacyPendingPrefix = "pending_game_"
)

// SkippedKey is a legacy key that was not imported.
type SkippedKey struct {
	Key    string `json:"key" yaml:"key"`
	Reason string `json:"reason" yaml:"reason"`
}

// ImportReport summarises a legacy import.
type ImportReport struct {
	Guest   int          `json:"guest" yaml:"guest"`
	Pending int          `json:"pending" yaml:"pending"`
	Ignored int          `json:"ignored" yaml:"ignored"`
	Skipped []SkippedKey `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// ImportLegacy copies game entries out of a dump of the old string
// key-value store, where identifiers were encoded into the key itself:
//
//	guest_game_<mode>_<puzzleId>
//	pending_game_<userId>_<mode>_<puzzleId>
//
// Keys with neither prefix are counted as ignored. Keys with a prefix that
// do not parse, or whose value is not a JSON object, are reported as
// skipped and never imported. The dump itself is not modified.
func (s *State) ImportLegacy(kv map[string]string) (ImportReport, error) {
	var report ImportReport

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, key := range keys {
		value := kv[key]

		var err error

		switch {
		case strings.HasPrefix(key, legacyGuestPrefix):
			err = s.importLegacyGuest(key, value)
			if err == nil {
				report.Guest++
			}
		case strings.HasPrefix(key, legacyPendingPrefix):
			err = s.importLegacyPending(key, value)
			if err == nil {
				report.Pending++
			}
		default:
			report.Ignored++
			continue
		}

		if err != nil {
			report.Skipped = append(report.Skipped, SkippedKey{Key: key, Reason: err.Error()})
		}
	}

	return report, nil
}

// parseLegacyGameKey splits "<mode>_<puzzleId>" off the end of rest and
// returns whatever precedes it as the owner (empty for guest keys).
func parseLegacyGameKey(rest string) (owner string, mode models.Mode, puzzleID int64, err error) {
	parts := strings.Split(rest, "_")
	if len(parts) < 2 {
		return "", "", 0, fmt.Errorf("key does not end in <mode>_<puzzleId>")
	}

	idPart := parts[len(parts)-1]
	modePart := parts[len(parts)-2]

	puzzleID, err = strconv.ParseInt(idPart, 10, 64)
	if err != nil || puzzleID <= 0 {
		return "", "", 0, fmt.Errorf("invalid puzzle id %q", idPart)
	}

	mode, err = models.ParseMode(modePart)
	if err != nil {
		return "", "", 0, err
	}

	owner = strings.Join(parts[:len(parts)-2], "_")

	return owner, mode, puzzleID, nil
}

func (s *State) importLegacyGuest(key, value string) error {
	owner, mode, puzzleID, err := parseLegacyGameKey(strings.TrimPrefix(key, legacyGuestPrefix))
	if err != nil {
		return err
	}

	if owner != "" {
		return fmt.Errorf("unexpected segment %q in guest key", owner)
	}

	if !gjson.Valid(value) || !gjson.Parse(value).IsObject() {
		return fmt.Errorf("value is not a JSON object")
	}

	doc := gjson.Parse(value)

	rec := models.GuestGameRecord{
		Mode:        mode,
		PuzzleID:    puzzleID,
		Guesses:     legacyGuesses(doc),
		Result:      legacyResult(doc),
		DigitWidth:  int(firstOf(doc, "digits", "guessDigitWidth", "digitWidth").Int()),
		LastUpdated: legacyTime(doc),
	}

	if d := firstOf(doc, "puzzleDate", "puzzle_date", "date"); d.Exists() && d.String() != "" {
		if parsed, err := models.ParseDate(d.String()); err == nil {
			rec.PuzzleDate = &parsed
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.putGuestRaw(mode, puzzleID, data, time.Now())
}

func (s *State) importLegacyPending(key, value string) error {
	owner, mode, puzzleID, err := parseLegacyGameKey(strings.TrimPrefix(key, legacyPendingPrefix))
	if err != nil {
		return err
	}

	if owner == "" {
		return fmt.Errorf("pending key has no user segment")
	}

	if !gjson.Valid(value) || !gjson.Parse(value).IsObject() {
		return fmt.Errorf("value is not a JSON object")
	}

	doc := gjson.Parse(value)

	st := models.PendingGameState{
		OwnerUserID: owner,
		Mode:        mode,
		PuzzleID:    puzzleID,
		Guesses:     legacyGuesses(doc),
		DigitWidth:  int(firstOf(doc, "digits", "guessDigitWidth", "digitWidth").Int()),
		LastUpdated: legacyTime(doc),
	}

	if r := legacyResult(doc); r.Terminal() {
		st.Result = &r
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	return s.putPendingRaw(owner, mode, puzzleID, data)
}

func firstOf(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := doc.Get(p); r.Exists() {
			return r
		}
	}

	return gjson.Result{}
}

// legacyGuesses returns nil when the guesses field is missing or not an
// array, so that migration later treats the record as malformed.
func legacyGuesses(doc gjson.Result) []string {
	g := doc.Get("guesses")
	if !g.IsArray() {
		return nil
	}

	out := []string{}
	for _, item := range g.Array() {
		out = append(out, item.String())
	}

	return out
}

func legacyResult(doc gjson.Result) models.Result {
	r := models.Result(firstOf(doc, "result", "status").String())
	if !r.Valid() {
		return models.ResultInProgress
	}

	return r
}

func legacyTime(doc gjson.Result) time.Time {
	v := firstOf(doc, "lastUpdated", "last_updated", "updatedAt")
	switch v.Type {
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC()
	case gjson.String:
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return t
		}
	}

	return time.Time{}
}
