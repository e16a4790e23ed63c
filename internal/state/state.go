package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/alexjbarnes/puzzle-sync/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.puzzle-sync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	metaBucket          = []byte("meta")
	guestManifestBucket = []byte("guest:manifest")
	guestRecordsBucket  = []byte("guest:records")
)

func pendingBucket(userID string) []byte {
	return []byte("pending:" + userID)
}

func lastRunKey(kind, userID string) []byte {
	return []byte("lastrun:" + kind + ":" + userID)
}

// entryKey is the storage key for one (mode, puzzle) pair: the mode name,
// a zero byte, then the big-endian puzzle id. Keys are only ever built,
// never parsed; the typed manifest entry is the source of truth.
func entryKey(mode models.Mode, puzzleID int64) []byte {
	k := make([]byte, 0, len(mode)+1+8)
	k = append(k, mode...)
	k = append(k, 0)

	return binary.BigEndian.AppendUint64(k, uint64(puzzleID))
}

// ManifestEntry indexes one guest record awaiting migration.
type ManifestEntry struct {
	Mode     models.Mode `json:"mode"`
	PuzzleID int64       `json:"puzzle_id"`
	AddedAt  time.Time   `json:"added_at"`

	// key is the bucket key the entry was read from. Entries whose JSON
	// could not be decoded still carry it so they stay addressable.
	key []byte
}

// Valid reports whether the entry names a known mode and a positive id.
func (e ManifestEntry) Valid() bool {
	return e.Mode.Valid() && e.PuzzleID > 0
}

func (e ManifestEntry) storageKey() []byte {
	if e.key != nil {
		return e.key
	}

	return entryKey(e.Mode, e.PuzzleID)
}

// PendingEntry is a stored offline game for a signed-in user. DecodeErr
// is set when the stored value is not a valid PendingGameState; such
// entries are returned rather than dropped so callers can report them.
type PendingEntry struct {
	State     models.PendingGameState
	DecodeErr error

	key []byte
}

// State wraps a bbolt database holding everything the device persists
// between launches: guest records, pending offline games and run markers.
type State struct {
	db *bolt.DB
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Tests pass a path under t.TempDir().
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metaBucket, guestManifestBucket, guestRecordsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// PutGuestRecord writes or overwrites the guest record for its
// (mode, puzzle) pair. Two plays of the same puzzle keep the last one.
func (s *State) PutGuestRecord(rec models.GuestGameRecord) error {
	if !rec.Mode.Valid() {
		return fmt.Errorf("guest record has unknown mode %q", rec.Mode)
	}

	if rec.PuzzleID <= 0 {
		return fmt.Errorf("guest record has invalid puzzle id %d", rec.PuzzleID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding guest record: %w", err)
	}

	return s.putGuestRaw(rec.Mode, rec.PuzzleID, data, time.Now())
}

func (s *State) putGuestRaw(mode models.Mode, puzzleID int64, data []byte, addedAt time.Time) error {
	entry := ManifestEntry{Mode: mode, PuzzleID: puzzleID, AddedAt: addedAt.UTC()}

	meta, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding manifest entry: %w", err)
	}

	key := entryKey(mode, puzzleID)

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(guestRecordsBucket).Put(key, data); err != nil {
			return err
		}

		return tx.Bucket(guestManifestBucket).Put(key, meta)
	})
}

// GuestManifest returns every manifest entry in key order. Entries that
// fail to decode are returned with a zero Mode so callers treat them as
// malformed and leave them in place.
func (s *State) GuestManifest() ([]ManifestEntry, error) {
	var entries []ManifestEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(guestManifestBucket).ForEach(func(k, v []byte) error {
			var e ManifestEntry
			if err := json.Unmarshal(v, &e); err != nil {
				e = ManifestEntry{}
			}

			e.key = append([]byte(nil), k...)
			entries = append(entries, e)

			return nil
		})
	})

	return entries, err
}

// GuestRecordRaw returns the stored JSON for an entry, or nil when the
// record is missing.
func (s *State) GuestRecordRaw(entry ManifestEntry) ([]byte, error) {
	var raw []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(guestRecordsBucket).Get(entry.storageKey())
		if v != nil {
			raw = append([]byte(nil), v...)
		}

		return nil
	})

	return raw, err
}

// DeleteGuestRecord removes a record and its manifest entry together.
func (s *State) DeleteGuestRecord(entry ManifestEntry) error {
	key := entry.storageKey()

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(guestRecordsBucket).Delete(key); err != nil {
			return err
		}

		return tx.Bucket(guestManifestBucket).Delete(key)
	})
}

// GuestCount returns the number of guest records awaiting migration.
func (s *State) GuestCount() (int, error) {
	count := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(guestManifestBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting guest records: %w", err)
	}

	return count, nil
}

// PutPending writes or overwrites an offline game in its owner's namespace.
func (s *State) PutPending(st models.PendingGameState) error {
	if st.OwnerUserID == "" {
		return fmt.Errorf("pending game has no owner")
	}

	if !st.Mode.Valid() {
		return fmt.Errorf("pending game has unknown mode %q", st.Mode)
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding pending game: %w", err)
	}

	return s.putPendingRaw(st.OwnerUserID, st.Mode, st.PuzzleID, data)
}

func (s *State) putPendingRaw(userID string, mode models.Mode, puzzleID int64, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(pendingBucket(userID))
		if err != nil {
			return err
		}

		return b.Put(entryKey(mode, puzzleID), data)
	})
}

// PendingStates returns every offline game stored under userID.
func (s *State) PendingStates(userID string) ([]PendingEntry, error) {
	var entries []PendingEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket(userID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			pe := PendingEntry{key: append([]byte(nil), k...)}
			if err := json.Unmarshal(v, &pe.State); err != nil {
				pe.DecodeErr = err
			}

			entries = append(entries, pe)

			return nil
		})
	})

	return entries, err
}

// DeletePending removes an offline game from userID's namespace.
func (s *State) DeletePending(userID string, entry PendingEntry) error {
	key := entry.key
	if key == nil {
		key = entryKey(entry.State.Mode, entry.State.PuzzleID)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket(userID))
		if b == nil {
			return nil
		}

		return b.Delete(key)
	})
}

// LastRun returns when a reconciliation of the given kind last completed
// for userID.
func (s *State) LastRun(kind, userID string) (time.Time, bool, error) {
	var (
		at    time.Time
		found bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get(lastRunKey(kind, userID))
		if v == nil {
			return nil
		}

		found = true

		return at.UnmarshalText(v)
	})

	return at, found, err
}

// SetLastRun records a completed reconciliation run.
func (s *State) SetLastRun(kind, userID string, at time.Time) error {
	data, err := at.UTC().MarshalText()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(lastRunKey(kind, userID), data)
	})
}
