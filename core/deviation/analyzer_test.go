package deviation

import (
	"testing"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

var dayStart = time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

func timelineWithOutage(t *testing.T, start, end int) model.IntervalTimeline {
	t.Helper()
	tl := model.IntervalTimeline{
		Group: "1.1",
		Date:  "2026-02-09",
		Intervals: []model.Interval{
			{Start: 0, End: start, State: model.PowerOn},
			{Start: start, End: end, State: model.PowerOff},
			{Start: end, End: model.MinutesPerDay, State: model.PowerOn},
		},
	}
	if err := tl.Validate(); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	return tl
}

func trans(from, to model.LinkState, minute int) model.StateChanged {
	return model.StateChanged{
		Group: "1.1",
		From:  from,
		To:    to,
		At:    dayStart.Add(time.Duration(minute) * time.Minute),
	}
}

func TestExactComplianceIsFullMatch(t *testing.T) {
	tl := timelineWithOutage(t, 600, 840)
	events := []model.StateChanged{
		trans(model.LinkUp, model.LinkDown, 600),
		trans(model.LinkDown, model.LinkUp, 840),
	}

	res := NewAnalyzer(Config{}).Analyze(tl, events, dayStart)
	if res.AdherencePct != 100.0 {
		t.Fatalf("adherence = %v, want 100.0", res.AdherencePct)
	}
	if len(res.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(res.Records))
	}
	for _, rec := range res.Records {
		if rec.Kind != model.DeviationMatch {
			t.Fatalf("interval %d-%d: kind %s, want match", rec.IntervalStart, rec.IntervalEnd, rec.Kind)
		}
	}
}

func TestLateRestoreBeyondGrace(t *testing.T) {
	// Planned off 10:00-14:00, power actually back at 14:20.
	tl := timelineWithOutage(t, 600, 840)
	events := []model.StateChanged{
		trans(model.LinkUp, model.LinkDown, 600),
		trans(model.LinkDown, model.LinkUp, 860),
	}

	res := NewAnalyzer(Config{}).Analyze(tl, events, dayStart)
	var late *model.DeviationRecord
	for i := range res.Records {
		if res.Records[i].IntervalStart == 840 {
			late = &res.Records[i]
		}
	}
	if late == nil {
		t.Fatal("no record for the evening interval")
	}
	if late.Kind != model.DeviationLate || late.DeltaMinutes != 20 {
		t.Fatalf("got %s delta=%d, want late delta=20", late.Kind, late.DeltaMinutes)
	}
	if res.AdherencePct != 98.6 {
		t.Fatalf("adherence = %v, want 98.6", res.AdherencePct)
	}
}

func TestEarlyCutWithinGraceStillMatches(t *testing.T) {
	tl := timelineWithOutage(t, 600, 840)
	events := []model.StateChanged{
		trans(model.LinkUp, model.LinkDown, 597), // 3 minutes early
		trans(model.LinkDown, model.LinkUp, 840),
	}

	res := NewAnalyzer(Config{}).Analyze(tl, events, dayStart)
	for _, rec := range res.Records {
		if rec.Kind != model.DeviationMatch {
			t.Fatalf("interval %d-%d: kind %s, want match within grace", rec.IntervalStart, rec.IntervalEnd, rec.Kind)
		}
	}
}

func TestEarlyRestoreRecordsNegativeDelta(t *testing.T) {
	tl := timelineWithOutage(t, 600, 840)
	events := []model.StateChanged{
		trans(model.LinkUp, model.LinkDown, 600),
		trans(model.LinkDown, model.LinkUp, 810), // back 30 minutes early
	}

	res := NewAnalyzer(Config{}).Analyze(tl, events, dayStart)
	var off *model.DeviationRecord
	for i := range res.Records {
		if res.Records[i].IntervalStart == 600 {
			off = &res.Records[i]
		}
	}
	if off == nil {
		t.Fatal("no record for the outage interval")
	}
	if off.Kind != model.DeviationEarly || off.DeltaMinutes != -30 {
		t.Fatalf("got %s delta=%d, want early delta=-30", off.Kind, off.DeltaMinutes)
	}
}

func TestUnknownSpansExcludedFromAdherence(t *testing.T) {
	tl := timelineWithOutage(t, 600, 840)
	// Nothing observed before 06:00: the replay starts from unknown.
	events := []model.StateChanged{
		trans(model.LinkUnknown, model.LinkUp, 360),
		trans(model.LinkUp, model.LinkDown, 600),
		trans(model.LinkDown, model.LinkUp, 840),
	}

	res := NewAnalyzer(Config{}).Analyze(tl, events, dayStart)
	if res.KnownMinutes != model.MinutesPerDay-360 {
		t.Fatalf("known minutes = %d, want %d", res.KnownMinutes, model.MinutesPerDay-360)
	}
	if res.AdherencePct != 100.0 {
		t.Fatalf("adherence = %v, want 100.0 over the observed span", res.AdherencePct)
	}
}

func TestNoObservationsNoRecords(t *testing.T) {
	tl := timelineWithOutage(t, 600, 840)

	res := NewAnalyzer(Config{}).Analyze(tl, nil, dayStart)
	if len(res.Records) != 0 {
		t.Fatalf("records = %d, want none without observations", len(res.Records))
	}
	if res.AdherencePct != 0 || res.KnownMinutes != 0 {
		t.Fatalf("adherence = %v known = %d, want zeroes", res.AdherencePct, res.KnownMinutes)
	}
}

func TestNearestSwitchDelta(t *testing.T) {
	tl := timelineWithOutage(t, 600, 840)
	a := NewAnalyzer(Config{})

	at := dayStart.Add(860 * time.Minute)
	delta, ok := a.NearestSwitchDelta(tl, at, dayStart, model.PowerOn)
	if !ok || delta != 20 {
		t.Fatalf("delta = %d ok = %v, want 20 within window", delta, ok)
	}

	// Way off any planned switch of that direction.
	at = dayStart.Add(300 * time.Minute)
	if _, ok := a.NearestSwitchDelta(tl, at, dayStart, model.PowerOff); ok {
		t.Fatal("expected no attribution far from a planned switch")
	}
}
