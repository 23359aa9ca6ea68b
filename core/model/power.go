package model

import (
	"fmt"
	"time"
)

// PowerState describes the planned or observed supply state for a span of time.
type PowerState string

const (
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
	PowerUnknown PowerState = "unknown"
)

// LinkState is the debounced liveness state of a monitored location.
type LinkState string

const (
	LinkUp      LinkState = "up"
	LinkDown    LinkState = "down"
	LinkUnknown LinkState = "unknown"
)

// PowerState maps a liveness observation onto the supply state it evidences.
func (s LinkState) PowerState() PowerState {
	switch s {
	case LinkUp:
		return PowerOn
	case LinkDown:
		return PowerOff
	default:
		return PowerUnknown
	}
}

const (
	// SlotsPerDay is the published schedule resolution: 48 half-hour slots.
	SlotsPerDay = 48
	// SlotMinutes is the duration of one schedule slot.
	SlotMinutes = 30
	// MinutesPerDay bounds interval offsets.
	MinutesPerDay = 24 * 60
)

// MinuteClock renders a minute-of-day offset as HH:MM. 1440 renders as 24:00.
func MinuteClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// DayStart returns midnight of the given YYYY-MM-DD date in loc.
func DayStart(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t, nil
}

// DateOf formats t as the YYYY-MM-DD key used throughout the stores.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
