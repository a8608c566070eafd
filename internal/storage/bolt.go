// Package storage — bolt.go
//
// BoltDB-backed persistent storage for the truck control agent.
//
// Schema (BoltDB bucket layout):
//
//	/ledger
//	    key:   UTC RFC3339 timestamp, fixed nine-digit fraction  [monotonic, sortable]
//	    value: JSON-encoded safety.Decision (hash-chained audit record)
//
//	/routes
//	    key:   "current"
//	    value: JSON-encoded hub.RouteMessage, the last mission assigned —
//	           so a restarted agent resumes the same plan rather than
//	           idling with an empty queue.
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Retention:
//   - Ledger entries older than RetentionDays are pruned on startup.
//
// Failure modes:
//   - BoltDB file corruption: bbolt detects via CRC and returns an error
//     on Open(). The agent logs a fatal event and refuses to start.
//   - Disk full: bbolt.Update() returns an error. The agent logs the error
//     and continues without persisting — the control loop never crashes
//     over a persistence failure, in-memory state is preserved.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/haulctl/truckctl/internal/hub"
	"github.com/haulctl/truckctl/internal/safety"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/truckctl/truckctl.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	// DefaultRetentionDays is the default ledger retention period.
	DefaultRetentionDays = 30

	bucketLedger = "ledger"
	bucketRoutes = "routes"
	bucketMeta   = "meta"

	routesCurrentKey = "current"
)

// DB wraps a BoltDB instance with typed accessors for the control plant's
// persisted state.
type DB struct {
	db            *bolt.DB
	retentionDays int
}

// Open opens (or creates) the BoltDB database at the given path.
// Initialises all required buckets and verifies the schema version.
func Open(path string, retentionDays int) (*DB, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb, retentionDays: retentionDays}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketLedger, bucketRoutes, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, agent requires %q. "+
					"Run migration or restore from backup.",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Audit ledger operations ──────────────────────────────────────────────────

// ledgerKeyLayout is RFC3339 with a fixed nine-digit fraction. Unlike
// RFC3339Nano, which trims trailing zeros, it gives every key the same
// width, so lexicographic sort = chronological sort.
const ledgerKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ledgerKey constructs a sortable BoltDB key for a ledger entry.
func ledgerKey(t time.Time) []byte {
	return []byte(t.UTC().Format(ledgerKeyLayout))
}

// AppendLedger persists one hash-chained audit decision.
func (d *DB) AppendLedger(decision safety.Decision) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("AppendLedger marshal: %w", err)
	}

	key := ledgerKey(decision.Timestamp)

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("AppendLedger bolt.Put: %w", err)
		}
		return nil
	})
}

// PruneOldLedgerEntries deletes ledger entries older than retentionDays.
// Called on startup. Returns the number of entries deleted.
func (d *DB) PruneOldLedgerEntries() (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -d.retentionDays)
	cutoffKey := ledgerKey(cutoff)

	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		c := b.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(cutoffKey) {
				break
			}
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("PruneOldLedgerEntries delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// ReadLedger returns all audit decisions in chronological order. Called by
// the agent at startup to seed the ledger-entries gauge; not called on the
// control-loop hot path.
func (d *DB) ReadLedger() ([]safety.Decision, error) {
	var decisions []safety.Decision
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		return b.ForEach(func(_, v []byte) error {
			var decision safety.Decision
			if err := json.Unmarshal(v, &decision); err != nil {
				return err
			}
			decisions = append(decisions, decision)
			return nil
		})
	})
	return decisions, err
}

// ─── Route persistence operations ─────────────────────────────────────────────

// PutCurrentRoute persists the planner's current mission, so a restart
// resumes it instead of idling empty.
func (d *DB) PutCurrentRoute(route hub.RouteMessage) error {
	data, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("PutCurrentRoute marshal: %w", err)
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRoutes))
		return b.Put([]byte(routesCurrentKey), data)
	})
}

// GetCurrentRoute returns the last persisted mission, or (zero, false) if
// none has ever been saved.
func (d *DB) GetCurrentRoute() (hub.RouteMessage, bool, error) {
	var route hub.RouteMessage
	found := false
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRoutes))
		data := b.Get([]byte(routesCurrentKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &route)
	})
	if err != nil {
		return hub.RouteMessage{}, false, fmt.Errorf("GetCurrentRoute: %w", err)
	}
	return route, found, nil
}
