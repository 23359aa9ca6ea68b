package history

import (
	"context"
	"sort"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// EventRecord is one confirmed transition kept for historical analysis.
// Together with the planned schedule it is enough to recompute every
// deviation figure after a crash.
type EventRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Group     string          `json:"group"`
	Event     model.LinkState `json:"event"`
	// Duration is the span of the state that ended with this event.
	Duration time.Duration `json:"duration"`
}

// FromTransition converts a StateChanged event into its log record.
func FromTransition(ev model.StateChanged) EventRecord {
	return EventRecord{Timestamp: ev.At, Group: ev.Group, Event: ev.To, Duration: ev.Duration}
}

// Transitions rebuilds StateChanged events from consecutive records of one
// group, for replay into the deviation analyzer.
func Transitions(records []EventRecord) []model.StateChanged {
	out := make([]model.StateChanged, 0, len(records))
	prev := model.LinkUnknown
	for _, r := range records {
		out = append(out, model.StateChanged{
			Group:    r.Group,
			From:     prev,
			To:       r.Event,
			At:       r.Timestamp,
			Duration: r.Duration,
		})
		prev = r.Event
	}
	return out
}

// Query filters log reads. Zero values match everything.
type Query struct {
	Start time.Time
	End   time.Time
	Group string
}

func (q Query) matches(r EventRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Group != "" && r.Group != q.Group {
		return false
	}
	return true
}

// LogStore persists transition records in timestamp order and supports
// range queries. Implementations cap total size by discarding the oldest
// records.
type LogStore interface {
	Append(ctx context.Context, rec EventRecord) error
	Query(ctx context.Context, q Query) ([]EventRecord, error)
	Close() error
}

// DefaultMaxEntries bounds the log at roughly a month of events.
const DefaultMaxEntries = 1000

// Merge folds manually captured records into an existing log slice,
// dropping duplicates on (second-truncated timestamp, group, event) and
// returning the union sorted by time. Used by the backfill command.
func Merge(existing, incoming []EventRecord) []EventRecord {
	type key struct {
		ts    int64
		group string
		event model.LinkState
	}
	seen := map[key]bool{}
	var out []EventRecord
	for _, batch := range [][]EventRecord{existing, incoming} {
		for _, r := range batch {
			k := key{r.Timestamp.Unix(), r.Group, r.Event}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
