package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps settings in a badger key/value directory.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a store under dir. An empty dir keeps everything in memory.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("settings: open %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Load returns the saved settings merged over the defaults.
func (s *BadgerStore) Load() (Settings, error) {
	out := Defaults()
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(Key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("settings: load: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Defaults(), fmt.Errorf("settings: decode: %w", err)
	}
	return out, nil
}

// Save validates and writes s.
func (s *BadgerStore) Save(v Settings) error {
	if err := v.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(Key), raw)
	})
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	saved *Settings
}

// Load returns the saved settings or the defaults.
func (m *MemoryStore) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return Defaults(), nil
	}
	return *m.saved, nil
}

// Save validates and keeps v.
func (m *MemoryStore) Save(v Settings) error {
	if err := v.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = &v
	return nil
}
