package deviation

import (
	"math"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// Config holds the analysis tolerances.
type Config struct {
	// GracePeriod is the boundary shift tolerated before a LATE or EARLY
	// deviation is recorded.
	GracePeriod time.Duration `json:"grace_period"`
	// MatchThreshold is the fraction of an interval that must agree with the
	// plan to count as a match; the remainder absorbs boundary jitter.
	MatchThreshold float64 `json:"match_threshold"`
	// AttributionWindow bounds how far from a planned switch an observed
	// transition may be and still be attributed to it.
	AttributionWindow time.Duration `json:"attribution_window"`
}

// SetDefaults applies the standard tolerances.
func (c *Config) SetDefaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Minute
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = 0.95
	}
	if c.AttributionWindow <= 0 {
		c.AttributionWindow = 90 * time.Minute
	}
}

// Analysis is the plan-vs-fact outcome for one (group, date).
type Analysis struct {
	Records []model.DeviationRecord
	// AdherencePct is the share of the day where plan and fact agreed,
	// rounded to one decimal. Spans where either side is unknown are
	// excluded from both numerator and denominator.
	AdherencePct   float64
	MatchedMinutes int
	KnownMinutes   int
}

// Analyzer compares a planned timeline with the fact timeline replayed from
// confirmed transitions. It reads immutable copies of both and holds no
// locks, so staleness is possible but corruption is not.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	cfg.SetDefaults()
	return &Analyzer{cfg: cfg}
}

// Analyze replays transitions into per-minute fact states for the day
// beginning at dayStart and classifies every planned interval. Transitions
// must be ordered and belong to the same date as the timeline.
func (a *Analyzer) Analyze(tl model.IntervalTimeline, transitions []model.StateChanged, dayStart time.Time) Analysis {
	fact := replay(transitions, dayStart)
	plan := planMinutes(tl)

	res := Analysis{}
	for m := 0; m < model.MinutesPerDay; m++ {
		if plan[m] == model.PowerUnknown || fact[m] == model.PowerUnknown {
			continue
		}
		res.KnownMinutes++
		if plan[m] == fact[m] {
			res.MatchedMinutes++
		}
	}
	if res.KnownMinutes > 0 {
		res.AdherencePct = math.Round(float64(res.MatchedMinutes)/float64(res.KnownMinutes)*1000) / 10
	}

	for _, iv := range tl.Intervals {
		if iv.State == model.PowerUnknown {
			continue
		}
		if rec, ok := a.classify(tl, iv, fact); ok {
			res.Records = append(res.Records, rec)
		}
	}
	return res
}

// classify grades one planned interval against the fact minutes. Intervals
// without any observed data produce no record: monitoring downtime is not a
// supply break.
func (a *Analyzer) classify(tl model.IntervalTimeline, iv model.Interval, fact []model.PowerState) (model.DeviationRecord, bool) {
	rec := model.DeviationRecord{
		Date:          tl.Date,
		Group:         tl.Group,
		Planned:       iv.State,
		IntervalStart: iv.Start,
		IntervalEnd:   iv.End,
		Kind:          model.DeviationMatch,
	}

	known, matched := 0, 0
	for m := iv.Start; m < iv.End; m++ {
		if fact[m] == model.PowerUnknown {
			continue
		}
		known++
		if fact[m] == iv.State {
			matched++
		}
	}
	if known == 0 {
		return rec, false
	}
	rec.Actual = majority(fact[iv.Start:iv.End])

	// A boundary shift beyond the grace period is a deviation even when the
	// interval is long enough for the ratio test to shrug it off.
	startDelay := startDelay(fact, iv)
	endEarly := endEarly(fact, iv)
	grace := int(a.cfg.GracePeriod / time.Minute)
	if startDelay <= grace && endEarly <= grace &&
		float64(matched) >= a.cfg.MatchThreshold*float64(known) {
		return rec, true
	}
	if startDelay >= endEarly {
		rec.Kind = model.DeviationLate
		rec.DeltaMinutes = startDelay
	} else {
		rec.Kind = model.DeviationEarly
		rec.DeltaMinutes = -endEarly
	}
	return rec, true
}

// startDelay is how many minutes into the interval the planned state first
// showed up; 0 when it was already there. Unknown minutes are not evidence
// either way.
func startDelay(fact []model.PowerState, iv model.Interval) int {
	if firstKnown(fact, iv) == iv.State {
		return 0
	}
	for m := iv.Start; m < iv.End; m++ {
		if fact[m] == iv.State {
			return m - iv.Start
		}
	}
	return iv.Minutes()
}

// endEarly is how many minutes before the planned end the state was lost.
func endEarly(fact []model.PowerState, iv model.Interval) int {
	last := model.PowerUnknown
	for m := iv.End - 1; m >= iv.Start; m-- {
		if fact[m] != model.PowerUnknown {
			last = fact[m]
			break
		}
	}
	if last == iv.State {
		return 0
	}
	for m := iv.End - 1; m >= iv.Start; m-- {
		if fact[m] == iv.State {
			return iv.End - 1 - m
		}
	}
	return iv.Minutes()
}

// NearestSwitchDelta reports how far an observed transition at `at` landed
// from the nearest planned switch into `to`, in signed minutes (positive =
// later than planned). ok is false when no planned switch of that direction
// lies within the attribution window, meaning the event cannot honestly be
// tied to the schedule.
func (a *Analyzer) NearestSwitchDelta(tl model.IntervalTimeline, at time.Time, dayStart time.Time, to model.PowerState) (int, bool) {
	minute := int(at.Sub(dayStart) / time.Minute)
	window := int(a.cfg.AttributionWindow / time.Minute)
	best, found := 0, false
	for _, iv := range tl.Intervals {
		if iv.State != to {
			continue
		}
		d := minute - iv.Start
		if abs(d) <= window && (!found || abs(d) < abs(best)) {
			best, found = d, true
		}
	}
	return best, found
}

// replay expands ordered transitions into per-minute fact states for one
// day. Minutes before the first transition take its From state; minutes
// with no evidence at all stay unknown.
func replay(transitions []model.StateChanged, dayStart time.Time) []model.PowerState {
	fact := make([]model.PowerState, model.MinutesPerDay)
	for i := range fact {
		fact[i] = model.PowerUnknown
	}
	if len(transitions) == 0 {
		return fact
	}
	cur := transitions[0].From.PowerState()
	idx := 0
	for m := 0; m < model.MinutesPerDay; m++ {
		minuteStart := dayStart.Add(time.Duration(m) * time.Minute)
		for idx < len(transitions) && !transitions[idx].At.After(minuteStart) {
			cur = transitions[idx].To.PowerState()
			idx++
		}
		fact[m] = cur
	}
	return fact
}

func planMinutes(tl model.IntervalTimeline) []model.PowerState {
	plan := make([]model.PowerState, model.MinutesPerDay)
	for i := range plan {
		plan[i] = model.PowerUnknown
	}
	for _, iv := range tl.Intervals {
		for m := iv.Start; m < iv.End && m < model.MinutesPerDay; m++ {
			plan[m] = iv.State
		}
	}
	return plan
}

func firstKnown(fact []model.PowerState, iv model.Interval) model.PowerState {
	for m := iv.Start; m < iv.End; m++ {
		if fact[m] != model.PowerUnknown {
			return fact[m]
		}
	}
	return model.PowerUnknown
}

func majority(fact []model.PowerState) model.PowerState {
	counts := map[model.PowerState]int{}
	for _, s := range fact {
		counts[s]++
	}
	best, bestN := model.PowerUnknown, 0
	for _, s := range []model.PowerState{model.PowerOn, model.PowerOff, model.PowerUnknown} {
		if counts[s] > bestN {
			best, bestN = s, counts[s]
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
