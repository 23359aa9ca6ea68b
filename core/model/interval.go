package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// DayStatus qualifies a whole day's schedule beyond its intervals.
type DayStatus string

const (
	DayNormal DayStatus = "normal"
	// DayPending means the provider has not published the day yet.
	DayPending DayStatus = "pending"
	// DayEmergency means unplanned shutdowns are in effect and slots are void.
	DayEmergency DayStatus = "emergency"
)

// Interval is a maximal run of one supply state within a day.
// Start and End are minute-of-day offsets, Start < End.
type Interval struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	State PowerState `json:"state"`
}

// Minutes returns the interval length.
func (iv Interval) Minutes() int { return iv.End - iv.Start }

// IntervalTimeline is the canonical ON/OFF/UNKNOWN timeline of one group for
// one calendar date. It is immutable once built: a new normalization pass
// supersedes it rather than mutating it.
type IntervalTimeline struct {
	Group     string     `json:"group"`
	Date      string     `json:"date"`
	Intervals []Interval `json:"intervals"`
	Sources   []string   `json:"sources"`
	Status    DayStatus  `json:"status"`
}

// Validate checks the full-day invariants: ordered, contiguous,
// non-overlapping intervals spanning exactly 00:00-24:00 with adjacent
// intervals never sharing a state.
func (t IntervalTimeline) Validate() error {
	if t.Status != DayNormal {
		if len(t.Intervals) != 0 {
			return fmt.Errorf("%s day carries %d intervals", t.Status, len(t.Intervals))
		}
		return nil
	}
	if len(t.Intervals) == 0 {
		return fmt.Errorf("empty timeline for %s/%s", t.Group, t.Date)
	}
	prev := 0
	for i, iv := range t.Intervals {
		if iv.Start != prev {
			return fmt.Errorf("interval %d starts at %d, want %d", i, iv.Start, prev)
		}
		if iv.End <= iv.Start {
			return fmt.Errorf("interval %d has end %d <= start %d", i, iv.End, iv.Start)
		}
		if i > 0 && t.Intervals[i-1].State == iv.State {
			return fmt.Errorf("intervals %d and %d share state %s", i-1, i, iv.State)
		}
		prev = iv.End
	}
	if prev != MinutesPerDay {
		return fmt.Errorf("timeline ends at %d, want %d", prev, MinutesPerDay)
	}
	return nil
}

// StateAt returns the state covering minute m, or PowerUnknown outside the day.
func (t IntervalTimeline) StateAt(m int) PowerState {
	for _, iv := range t.Intervals {
		if m >= iv.Start && m < iv.End {
			return iv.State
		}
	}
	return PowerUnknown
}

// Fingerprint hashes the rendering-relevant fields. Identical payloads
// normalize to identical timelines, so repeated polls of unchanged upstream
// data yield the same fingerprint and are suppressed downstream.
func (t IntervalTimeline) Fingerprint() string {
	canon := struct {
		Group     string     `json:"group"`
		Date      string     `json:"date"`
		Intervals []Interval `json:"intervals"`
		Sources   []string   `json:"sources"`
		Status    DayStatus  `json:"status"`
	}{t.Group, t.Date, t.Intervals, append([]string(nil), t.Sources...), t.Status}
	sort.Strings(canon.Sources)
	b, err := json.Marshal(canon)
	if err != nil {
		// Marshalling plain structs of strings and ints cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// IntervalsFromSlots collapses a per-slot state array into maximal runs.
func IntervalsFromSlots(slots []PowerState) []Interval {
	if len(slots) == 0 {
		return nil
	}
	var out []Interval
	start := 0
	cur := slots[0]
	for i := 1; i < len(slots); i++ {
		if slots[i] == cur {
			continue
		}
		out = append(out, Interval{Start: start * SlotMinutes, End: i * SlotMinutes, State: cur})
		start, cur = i, slots[i]
	}
	out = append(out, Interval{Start: start * SlotMinutes, End: len(slots) * SlotMinutes, State: cur})
	return out
}
