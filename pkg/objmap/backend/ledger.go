package backend

import (
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// MigrationEvent is one append-only record in the audit ledger, written
// for every migrate_object / cache_object / evict_object completion
// It exists so a crashed
// migration can be told apart, after restart, from one that completed:
// the ledger is consulted by init/repair tooling, not by the hot path.
type MigrationEvent struct {
	ID         string    `json:"id"`
	URI        string    `json:"uri"`
	FromBackend int      `json:"from_backend"`
	ToBackend  int       `json:"to_backend"`
	Reason     string    `json:"reason"` // "migrate", "cache", "evict"
	Bytes      int64     `json:"bytes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Err        string    `json:"err,omitempty"`
}

// Ledger records migration events durably. A Manager is handed one via
// SetLedger; NewManager defaults to noopLedger so unit tests don't need
// a database on disk.
type Ledger interface {
	Append(ev MigrationEvent) error
	Close() error
}

type noopLedger struct{}

func (noopLedger) Append(MigrationEvent) error { return nil }
func (noopLedger) Close() error                { return nil }

// BadgerLedger persists migration events as one key per event, keyed
// "ledger/<unix-nanos>/<uuid>" so a prefix scan replays them in time
// order: badger.Open + db.Update per write, JSON-encoded values.
type BadgerLedger struct {
	db *badgerdb.DB
}

// OpenBadgerLedger opens (creating if absent) a Badger database at dir.
func OpenBadgerLedger(dir string) (*BadgerLedger, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: open badger at %s: %w", dir, err)
	}
	return &BadgerLedger{db: db}, nil
}

func ledgerKey(ev MigrationEvent) []byte {
	return []byte(fmt.Sprintf("ledger/%020d/%s", ev.FinishedAt.UnixNano(), ev.ID))
}

// Append writes ev in its own transaction. A random ID is assigned if
// the caller left it blank.
func (l *BadgerLedger) Append(ev MigrationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	val, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ledger: encode event: %w", err)
	}
	return l.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(ledgerKey(ev), val)
	})
}

// Replay calls fn for every recorded event in ascending time order,
// stopping early if fn returns false. Used by `objmapperd migrate
// --resume` style repair tooling, not by the serving path.
func (l *BadgerLedger) Replay(fn func(MigrationEvent) bool) error {
	return l.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("ledger/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ev MigrationEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return fmt.Errorf("ledger: decode event: %w", err)
			}
			if !fn(ev) {
				return nil
			}
		}
		return nil
	})
}

// Close releases the underlying Badger database.
func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

var _ Ledger = (*BadgerLedger)(nil)
var _ Ledger = noopLedger{}
