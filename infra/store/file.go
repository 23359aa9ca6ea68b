package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	corestore "github.com/weby-homelab/light-monitor-kyiv/core/store"
)

// FileStore persists one JSON document per key under a directory. Writes go
// through a temp file and rename, so readers never observe a torn document
// and a crash mid-write leaves the previous version intact.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &corestore.PersistenceError{Op: "init", Key: dir, Err: err}
	}
	return &FileStore{dir: dir}, nil
}

// path maps a key like "heartbeat:1.1" onto a flat filename.
func (s *FileStore) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	return filepath.Join(s.dir, name+".json")
}

func (s *FileStore) Load(key string, into any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return corestore.ErrNotFound
	}
	if err != nil {
		return &corestore.PersistenceError{Op: "load", Key: key, Err: err}
	}
	if err := json.Unmarshal(b, into); err != nil {
		return &corestore.PersistenceError{Op: "load", Key: key, Err: fmt.Errorf("decoding: %w", err)}
	}
	return nil
}

func (s *FileStore) Save(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return &corestore.PersistenceError{Op: "save", Key: key, Err: err}
	}
	tmp, err := os.CreateTemp(s.dir, ".state-*")
	if err != nil {
		return &corestore.PersistenceError{Op: "save", Key: key, Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return &corestore.PersistenceError{Op: "save", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &corestore.PersistenceError{Op: "save", Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return &corestore.PersistenceError{Op: "save", Key: key, Err: err}
	}
	return nil
}
