package schedule

import (
	"sort"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// Normalizer merges raw payloads from multiple schedule sources into one
// canonical IntervalTimeline per (group, date). Conflicts between sources
// are resolved by a fixed precedence order; slots no source can answer stay
// PowerUnknown rather than being guessed.
type Normalizer struct {
	precedence []string
	parsers    map[string]Parser
	log        logger.Logger
}

// NewNormalizer builds a Normalizer. precedence lists source IDs highest
// priority first; parsers maps each source ID to its payload dialect.
func NewNormalizer(precedence []string, parsers map[string]Parser, log logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Nop{}
	}
	return &Normalizer{precedence: precedence, parsers: parsers, log: log}
}

// Normalize resolves the payloads into a validated timeline. It is
// deterministic and idempotent: identical payloads produce byte-identical
// timelines, which downstream fingerprinting relies on. When no source is
// usable it returns a NormalizationError and the caller keeps its previous
// cached timeline.
func (n *Normalizer) Normalize(group, date string, payloads map[string][]byte) (model.IntervalTimeline, error) {
	type sourceDay struct {
		id  string
		day DaySchedule
	}
	var usable []sourceDay

	for _, id := range n.precedence {
		payload, ok := payloads[id]
		if !ok {
			continue
		}
		parser, ok := n.parsers[id]
		if !ok {
			n.log.Warnf("no parser registered for source %s", id)
			continue
		}
		day, warnings, err := parser.Parse(group, date, payload)
		for _, w := range warnings {
			n.log.Warnf("source %s %s/%s: %s", id, group, date, w)
		}
		if err != nil {
			n.log.Warnf("source %s unusable for %s/%s: %v", id, group, date, err)
			continue
		}
		usable = append(usable, sourceDay{id: id, day: day})
	}

	if len(usable) == 0 {
		return model.IntervalTimeline{}, &NormalizationError{Group: group, Date: date, Reason: "no usable source data"}
	}

	timeline := model.IntervalTimeline{Group: group, Date: date, Status: model.DayNormal}

	// Emergency shutdowns void any published plan regardless of precedence.
	for _, s := range usable {
		if s.day.Status == model.DayEmergency {
			timeline.Status = model.DayEmergency
			timeline.Sources = []string{s.id}
			return timeline, nil
		}
	}

	var contributors []string
	merged := make([]model.PowerState, model.SlotsPerDay)
	for i := range merged {
		merged[i] = model.PowerUnknown
	}
	for _, s := range usable {
		if s.day.Status != model.DayNormal {
			continue
		}
		contributors = append(contributors, s.id)
		for i, st := range s.day.Slots {
			// Highest-precedence answer wins; lower sources only fill gaps.
			if merged[i] == model.PowerUnknown && st != model.PowerUnknown {
				merged[i] = st
			}
		}
	}

	if len(contributors) == 0 {
		timeline.Status = model.DayPending
		for _, s := range usable {
			contributors = append(contributors, s.id)
		}
		sort.Strings(contributors)
		timeline.Sources = contributors
		return timeline, nil
	}

	sort.Strings(contributors)
	timeline.Sources = contributors
	timeline.Intervals = model.IntervalsFromSlots(merged)
	if err := timeline.Validate(); err != nil {
		return model.IntervalTimeline{}, &NormalizationError{Group: group, Date: date, Reason: err.Error()}
	}
	return timeline, nil
}
