// Package badger implements store.Store on BadgerDB, an embedded
// log-structured key-value store.
//
// This is the production persistence backend: rows survive restarts, writes
// go through Badger's WAL, and multi-row operations use ACID transactions.
//
// Storage model: entities are serialized as JSON under namespaced key
// prefixes (see keys.go). JSON keeps the database debuggable with standard
// tooling; row sizes here are small enough that binary encodings would buy
// nothing measurable.
package badger

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mrosetti/forchetta/internal/logger"
	"github.com/mrosetti/forchetta/pkg/store"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the directory holding the database files. Ignored when
	// InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory opens a non-persistent database. Used by tests and
	// available for ephemeral deployments.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites forces an fsync on every commit. Slower, but a crash
	// cannot lose acknowledged writes.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// BadgerStore implements store.Store. Badger transactions provide the
// concurrency safety the port requires; no additional locking is needed.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (creating if necessary) the database described by cfg.
func Open(cfg Config) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger store: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLoggingLevel(badger.WARNING) // reduce log noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger.Debug("Badger store opened (path=%q in_memory=%v)", cfg.Path, cfg.InMemory)
	return &BadgerStore{db: db}, nil
}

// DB exposes the underlying database for maintenance tasks such as backups.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// getJSON reads and unmarshals the value at key into out. Returns
// store.ErrNotFound when the key is absent.
func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %q: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// setJSON marshals v and writes it at key.
func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return txn.Set(key, data)
}

// exists reports whether key is present.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %q: %w", key, err)
	}
	return true, nil
}
