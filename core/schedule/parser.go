package schedule

import "github.com/weby-homelab/light-monitor-kyiv/core/model"

// DaySchedule is one source's view of a single (group, date). Slots is nil
// unless Status is DayNormal; individual slots may be PowerUnknown where the
// source left a gap.
type DaySchedule struct {
	Slots  []model.PowerState
	Status model.DayStatus
}

// Parser extracts a DaySchedule from one source's raw payload. Malformed
// entries inside the payload are dropped and reported as warnings, never as
// errors; an error means the payload holds nothing usable for the requested
// group and date.
type Parser interface {
	Parse(group, date string, payload []byte) (DaySchedule, []string, error)
}
