package metrics

import (
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// Sink receives monitoring facts as they are produced. Implementations must
// be safe for concurrent use; recording failures are reported, never fatal.
type Sink interface {
	RecordPowerState(group string, st model.PowerState) error
	RecordTransition(ev model.StateChanged) error
	RecordAdherence(group, date string, pct float64) error
	RecordHeartbeatAge(group string, age time.Duration) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordPowerState(string, model.PowerState) error { return nil }
func (NopSink) RecordTransition(model.StateChanged) error       { return nil }
func (NopSink) RecordAdherence(string, string, float64) error   { return nil }
func (NopSink) RecordHeartbeatAge(string, time.Duration) error  { return nil }

// MultiSink fans every record out to all sinks, returning the first error.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordPowerState(group string, st model.PowerState) error {
	for _, s := range m.Sinks {
		if err := s.RecordPowerState(group, st); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordTransition(ev model.StateChanged) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordAdherence(group, date string, pct float64) error {
	for _, s := range m.Sinks {
		if err := s.RecordAdherence(group, date, pct); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordHeartbeatAge(group string, age time.Duration) error {
	for _, s := range m.Sinks {
		if err := s.RecordHeartbeatAge(group, age); err != nil {
			return err
		}
	}
	return nil
}

func stateValue(st model.PowerState) float64 {
	switch st {
	case model.PowerOn:
		return 1
	case model.PowerOff:
		return 0
	default:
		return -1
	}
}
