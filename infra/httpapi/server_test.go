package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/store"
)

type recordingTicker struct {
	group    string
	observed model.LinkState
	at       time.Time
	calls    int
}

func (r *recordingTicker) Tick(group string, observed model.LinkState, t time.Time) (*model.StateChanged, error) {
	r.group, r.observed, r.at = group, observed, t
	r.calls++
	return nil, nil
}

func newTestServer(ticker Ticker, status StatusFunc) *Server {
	s := NewServer(Config{Group: "1.1"}, "s3cret", ticker, status, nil)
	s.clock = func() time.Time { return time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestPushTicksUp(t *testing.T) {
	ticker := &recordingTicker{}
	srv := httptest.NewServer(newTestServer(ticker, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/push/s3cret")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ticker.calls != 1 || ticker.group != "1.1" || ticker.observed != model.LinkUp {
		t.Fatalf("tick = %+v", ticker)
	}
}

func TestPushWrongSecretRejected(t *testing.T) {
	ticker := &recordingTicker{}
	srv := httptest.NewServer(newTestServer(ticker, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/push/guess")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if ticker.calls != 0 {
		t.Fatal("rejected push must not tick")
	}
}

func TestStatusEndpoint(t *testing.T) {
	status := func() []Status {
		return []Status{{Group: "1.1", State: "up", LastSeen: time.Date(2026, 2, 9, 9, 59, 0, 0, time.UTC)}}
	}
	srv := httptest.NewServer(newTestServer(&recordingTicker{}, status).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var got []Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Group != "1.1" || got[0].State != "up" {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadOrCreateSecretPersists(t *testing.T) {
	st := store.NewMemoryStore()
	first, err := LoadOrCreateSecret(st)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first == "" {
		t.Fatal("empty secret")
	}
	second, err := LoadOrCreateSecret(st)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second != first {
		t.Fatalf("secret changed across loads: %q != %q", first, second)
	}
}
