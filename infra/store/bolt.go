package store

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	corestore "github.com/weby-homelab/light-monitor-kyiv/core/store"
)

var stateBucket = []byte("state")

// BoltStore keeps all keys in a single bbolt file. Suited to deployments
// where one state file is easier to back up than a directory of documents.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, &corestore.PersistenceError{Op: "init", Key: path, Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &corestore.PersistenceError{Op: "init", Key: path, Err: err}
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(key string, into any) error {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(stateBucket).Get([]byte(key)); v != nil {
			raw = append(raw, v...)
		}
		return nil
	})
	if err != nil {
		return &corestore.PersistenceError{Op: "load", Key: key, Err: err}
	}
	if raw == nil {
		return corestore.ErrNotFound
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return &corestore.PersistenceError{Op: "load", Key: key, Err: err}
	}
	return nil
}

func (s *BoltStore) Save(key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return &corestore.PersistenceError{Op: "save", Key: key, Err: err}
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(key), b)
	})
	if err != nil {
		return &corestore.PersistenceError{Op: "save", Key: key, Err: err}
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error { return s.db.Close() }
