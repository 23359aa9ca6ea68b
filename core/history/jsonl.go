package history

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStore keeps one JSON record per line in a flat file.
type JSONLStore struct {
	path       string
	maxEntries int
	mu         sync.Mutex
}

// NewJSONLStore opens or creates the log file. maxEntries <= 0 selects
// DefaultMaxEntries.
func NewJSONLStore(path string, maxEntries int) (*JSONLStore, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &JSONLStore{path: path, maxEntries: maxEntries}, nil
}

// Append adds the record and trims the file back to the cap when exceeded.
func (s *JSONLStore) Append(ctx context.Context, rec EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return err
	}
	records = append(records, rec)
	if len(records) > s.maxEntries {
		records = records[len(records)-s.maxEntries:]
	}
	return s.writeAll(records)
}

// Query returns matching records in file order.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var out []EventRecord
	for _, r := range records {
		if q.matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Replace overwrites the whole log, used by backfill after merging.
func (s *JSONLStore) Replace(ctx context.Context, records []EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) > s.maxEntries {
		records = records[len(records)-s.maxEntries:]
	}
	return s.writeAll(records)
}

func (s *JSONLStore) Close() error { return nil }

func (s *JSONLStore) readAll() ([]EventRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var out []EventRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r EventRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			// A torn or hand-edited line loses one record, not the log.
			continue
		}
		out = append(out, r)
	}
	return out, scanner.Err()
}

// writeAll rewrites the file through a temp-and-rename so a crash mid-write
// cannot tear it.
func (s *JSONLStore) writeAll(records []EventRecord) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".events-*.jsonl")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
