package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/config"
	"github.com/weby-homelab/light-monitor-kyiv/core/history"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/infra/httpapi"
	"github.com/weby-homelab/light-monitor-kyiv/infra/sources"
)

type capturingExecutor struct {
	calls [][]model.Intent
}

func (c *capturingExecutor) Execute(intents []model.Intent, group, fingerprint string) error {
	c.calls = append(c.calls, intents)
	return nil
}

func testService(t *testing.T) (*Service, *capturingExecutor) {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Store.Backend = "memory"
	cfg.History.Path = filepath.Join(t.TempDir(), "events.jsonl")
	cfg.Notify.Channel = "-1002003001"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	exec := &capturingExecutor{}
	svc.executor = exec
	return svc, exec
}

// hourlyPayload publishes a full-on day with hours 11 and 12 off.
func hourlyPayload(t *testing.T, group string, dayStart time.Time) []byte {
	t.Helper()
	hours := make(map[string]string, 24)
	for h := 1; h <= 24; h++ {
		hours[strconv.Itoa(h)] = "yes"
	}
	hours["11"] = "no"
	hours["12"] = "no"
	doc := map[string]any{
		"fact": map[string]any{
			"data": map[string]any{
				strconv.FormatInt(dayStart.Unix(), 10): map[string]any{group: hours},
			},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestPollPublishesDigestAndSkipsUnchanged(t *testing.T) {
	svc, exec := testService(t)
	now := time.Date(2026, time.February, 9, 12, 0, 0, 0, svc.loc)
	svc.clock = func() time.Time { return now }
	dayStart := time.Date(2026, time.February, 9, 0, 0, 0, 0, svc.loc)
	svc.fetchers = []sources.Fetcher{
		sources.NewStatic(sources.OutageDataID, hourlyPayload(t, "GPV12.1", dayStart)),
	}

	svc.pollSchedules(context.Background())
	if len(exec.calls) != 1 {
		t.Fatalf("got %d executions, want 1", len(exec.calls))
	}
	intents := exec.calls[0]
	if len(intents) != 1 || intents[0].Type != model.IntentPublish {
		t.Fatalf("unexpected intents: %+v", intents)
	}
	if !intents[0].Pin {
		t.Fatalf("schedule digest must be pinned")
	}
	if !strings.Contains(intents[0].Content, "Графік відключень") {
		t.Fatalf("digest missing header: %q", intents[0].Content)
	}
	if !strings.Contains(intents[0].Content, "10:00 - 12:00") {
		t.Fatalf("digest missing outage window: %q", intents[0].Content)
	}

	// Identical payloads mean an identical hash: no second publish.
	svc.pollSchedules(context.Background())
	if len(exec.calls) != 1 {
		t.Fatalf("unchanged sources must not republish, got %d calls", len(exec.calls))
	}

	if _, ok := svc.timeline("GPV12.1", "2026-02-09"); !ok {
		t.Fatalf("timeline not cached")
	}
}

func TestHandleTransitionNotifiesAndLogs(t *testing.T) {
	svc, exec := testService(t)
	at := time.Date(2026, time.February, 9, 14, 20, 0, 0, svc.loc)
	svc.clock = func() time.Time { return at }

	ev := model.StateChanged{
		Group:    "GPV12.1",
		From:     model.LinkDown,
		To:       model.LinkUp,
		At:       at,
		Duration: 4*time.Hour + 20*time.Minute,
	}
	svc.handleTransition(context.Background(), ev)

	if len(exec.calls) != 1 || len(exec.calls[0]) != 1 {
		t.Fatalf("expected one publish intent, got %+v", exec.calls)
	}
	if !strings.Contains(exec.calls[0][0].Content, "Світло з'явилося") {
		t.Fatalf("unexpected message: %q", exec.calls[0][0].Content)
	}

	records, err := svc.events.Query(context.Background(), history.Query{
		Start: at.Add(-time.Hour),
		End:   at.Add(time.Hour),
		Group: "GPV12.1",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 || records[0].Event != model.LinkUp {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestPushHeartbeatReachesBusAndHistory(t *testing.T) {
	svc, exec := testService(t)
	at := time.Date(2026, time.February, 9, 9, 0, 0, 0, svc.loc)
	svc.clock = func() time.Time { return at }

	sub := svc.bus.Subscribe()
	defer svc.bus.Unsubscribe(sub)

	httpCfg := svc.cfg.HTTP
	httpCfg.Group = "GPV12.1"
	srv := httpapi.NewServer(httpCfg, "s3cret", svc, svc.statusSnapshot, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/push/s3cret", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("push status = %d, want 200", rr.Code)
	}

	var ev model.StateChanged
	select {
	case ev = <-sub:
	default:
		t.Fatal("confirmed transition never reached the bus")
	}
	if ev.Group != "GPV12.1" || ev.To != model.LinkUp {
		t.Fatalf("unexpected event: %+v", ev)
	}

	svc.handleTransition(context.Background(), ev)
	if len(exec.calls) != 1 || len(exec.calls[0]) != 1 {
		t.Fatalf("expected one publish intent, got %+v", exec.calls)
	}
	records, err := svc.events.Query(context.Background(), history.Query{Group: "GPV12.1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 || records[0].Event != model.LinkUp {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestHeartbeatDrivesStatusSnapshot(t *testing.T) {
	svc, _ := testService(t)
	at := time.Date(2026, time.February, 9, 8, 0, 0, 0, svc.loc)

	svc.Heartbeat("GPV12.1", at)

	statuses := svc.statusSnapshot()
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	if statuses[0].Group != "GPV12.1" || statuses[0].State != "up" {
		t.Fatalf("unexpected status: %+v", statuses[0])
	}
	if !statuses[0].LastSeen.Equal(at) {
		t.Fatalf("last seen %v, want %v", statuses[0].LastSeen, at)
	}
}
