package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
)

// Fetcher retrieves one provider's raw schedule payload.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context) ([]byte, error)
}

const (
	// OutageDataID names the community-maintained hourly status feed.
	OutageDataID = "outage-data-ua"
	// YasnoID names the DSO's public planned-outages API.
	YasnoID = "yasno"

	outageDataURL = "https://raw.githubusercontent.com/Baskerville42/outage-data-ua/main/data/%s.json"
	yasnoURL      = "https://app.yasno.ua/api/blackout-service/public/shutdowns/regions/%s/dsos/%s/planned-outages"
)

type httpFetcher struct {
	id     string
	url    string
	client *http.Client
	log    logger.Logger
}

func (f *httpFetcher) ID() string { return f.id }

func (f *httpFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", f.id, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetching: %w", f.id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", f.id, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", f.id, err)
	}
	f.log.Debugf("sources: %s fetched %d bytes", f.id, len(body))
	return body, nil
}

func newFetcher(id, url string, timeout time.Duration, log logger.Logger) *httpFetcher {
	if log == nil {
		log = logger.Nop{}
	}
	return &httpFetcher{
		id:     id,
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// NewOutageData builds a fetcher for the hourly status feed of one region.
func NewOutageData(region string, log logger.Logger) Fetcher {
	return newFetcher(OutageDataID, fmt.Sprintf(outageDataURL, region), 10*time.Second, log)
}

// NewYasno builds a fetcher for the Yasno planned-outages endpoint.
func NewYasno(regionID, dsoID string, log logger.Logger) Fetcher {
	return newFetcher(YasnoID, fmt.Sprintf(yasnoURL, regionID, dsoID), 15*time.Second, log)
}

// NewStatic serves a fixed payload; used in tests and dry runs.
func NewStatic(id string, payload []byte) Fetcher {
	return staticFetcher{id: id, payload: payload}
}

type staticFetcher struct {
	id      string
	payload []byte
}

func (f staticFetcher) ID() string                            { return f.id }
func (f staticFetcher) Fetch(context.Context) ([]byte, error) { return f.payload, nil }

// CombinedHash digests all payloads in source order. Polling loops compare
// it against the previous cycle to skip re-normalizing unchanged upstream
// data. A missing payload hashes differently from an empty one.
func CombinedHash(payloads map[string][]byte) string {
	ids := make([]string, 0, len(payloads))
	for id := range payloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		io.WriteString(h, id)
		io.WriteString(h, ":")
		h.Write(payloads[id])
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FetchAll runs every fetcher and returns whatever succeeded. Failures are
// logged and skipped: one provider being down must not blind the other.
func FetchAll(ctx context.Context, fetchers []Fetcher, log logger.Logger) map[string][]byte {
	if log == nil {
		log = logger.Nop{}
	}
	payloads := make(map[string][]byte, len(fetchers))
	for _, f := range fetchers {
		body, err := f.Fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warnf("sources: %v", err)
			}
			continue
		}
		payloads[f.ID()] = body
	}
	return payloads
}
