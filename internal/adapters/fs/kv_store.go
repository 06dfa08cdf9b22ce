package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const storeFileName = "store.json"

// KVStore implements ports.KVStore as a single JSON file.
// Writes are atomic (temp file, then rename) to prevent corruption on crash.
type KVStore struct {
	mu   sync.Mutex
	dir  string
	data map[string]json.RawMessage
}

// NewKVStore creates a store persisting into the given directory, loading any
// existing contents. A missing or unreadable store file yields an empty store
// rather than an error; every value is independently re-learnable.
func NewKVStore(dir string) *KVStore {
	s := &KVStore{dir: dir, data: map[string]json.RawMessage{}}

	raw, err := os.ReadFile(s.path())
	if err == nil {
		var data map[string]json.RawMessage
		if json.Unmarshal(raw, &data) == nil && data != nil {
			s.data = data
		}
	}
	return s
}

// Get returns the value for key, (nil, nil) when absent.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	var value []byte
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// Set persists the value atomically.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return s.flush()
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

// Path returns the full path to the store file.
func (s *KVStore) Path() string {
	return s.path()
}

func (s *KVStore) path() string {
	return filepath.Join(s.dir, storeFileName)
}

func (s *KVStore) flush() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path())
}
