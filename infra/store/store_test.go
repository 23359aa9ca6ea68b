package store

import (
	"errors"
	"path/filepath"
	"testing"

	corestore "github.com/weby-homelab/light-monitor-kyiv/core/store"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	key := corestore.HeartbeatKey("1.1")
	if err := s.Save(key, payload{Name: "a", Count: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	var got payload
	if err := s.Load(key, &got); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestFileStoreMissingKey(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var got payload
	if err := s.Load("schedule:1.1:2026-02-09", &got); !errors.Is(err, corestore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Save("k", payload{Count: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("k", payload{Count: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	var got payload
	if err := s.Load("k", &got); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Count != 2 {
		t.Fatalf("count = %d, want latest write", got.Count)
	}
}

func TestBoltStoreRoundTrip(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Save("notifications:tg", []string{"a", "b"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	var got []string
	if err := s.Load("notifications:tg", &got); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0] != "a" {
		t.Fatalf("got %v", got)
	}

	var missing payload
	if err := s.Load("missing", &missing); !errors.Is(err, corestore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
