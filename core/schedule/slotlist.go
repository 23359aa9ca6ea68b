package schedule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// SlotListParser reads the DSO planned-outages API: per group, a today and a
// tomorrow document listing outage slots as minute ranges. Minutes not
// covered by any listed slot are powered, per the provider's contract.
type SlotListParser struct{}

// NewSlotListParser builds a parser for the DSO feed.
func NewSlotListParser() *SlotListParser { return &SlotListParser{} }

const (
	statusEmergency = "EmergencyShutdowns"
	typeNotPlanned  = "NotPlanned"
)

type slotEntry struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
}

type slotDay struct {
	Date   string      `json:"date"`
	Status string      `json:"status"`
	Slots  []slotEntry `json:"slots"`
}

type slotGroup struct {
	Today    *slotDay `json:"today"`
	Tomorrow *slotDay `json:"tomorrow"`
}

func (p *SlotListParser) Parse(group, date string, payload []byte) (DaySchedule, []string, error) {
	var doc map[string]slotGroup
	if err := json.Unmarshal(payload, &doc); err != nil {
		return DaySchedule{}, nil, fmt.Errorf("decode slot feed: %w", err)
	}
	// The feed keys groups without the distribution prefix.
	g, ok := doc[strings.TrimPrefix(group, "GPV")]
	if !ok {
		return DaySchedule{}, nil, fmt.Errorf("no entry for group %s", group)
	}
	day := matchDay(g, date)
	if day == nil {
		return DaySchedule{}, nil, fmt.Errorf("no entry for %s on %s", group, date)
	}
	if day.Status == statusEmergency {
		return DaySchedule{Status: model.DayEmergency}, nil, nil
	}
	if len(day.Slots) == 0 {
		return DaySchedule{Status: model.DayPending}, nil, nil
	}

	slots := make([]model.PowerState, model.SlotsPerDay)
	for i := range slots {
		slots[i] = model.PowerOn
	}
	var warnings []string
	for _, s := range day.Slots {
		if s.End <= s.Start || s.Start < 0 || s.End > model.MinutesPerDay {
			warnings = append(warnings, fmt.Sprintf("dropped slot %d-%d (%s)", s.Start, s.End, s.Type))
			continue
		}
		state := model.PowerOff
		if s.Type == typeNotPlanned {
			state = model.PowerOn
		}
		if s.Start%model.SlotMinutes != 0 || s.End%model.SlotMinutes != 0 {
			warnings = append(warnings, fmt.Sprintf("slot %d-%d not aligned to %d min, widened", s.Start, s.End, model.SlotMinutes))
		}
		// End rounds up: a partially covered slot takes the range's state
		// rather than being quietly dropped.
		end := (s.End + model.SlotMinutes - 1) / model.SlotMinutes
		for i := s.Start / model.SlotMinutes; i < end && i < model.SlotsPerDay; i++ {
			slots[i] = state
		}
	}
	return DaySchedule{Slots: slots, Status: model.DayNormal}, warnings, nil
}

func matchDay(g slotGroup, date string) *slotDay {
	for _, d := range []*slotDay{g.Today, g.Tomorrow} {
		// Day dates are full ISO timestamps; compare the calendar part.
		if d != nil && len(d.Date) >= len(date) && d.Date[:len(date)] == date {
			return d
		}
	}
	return nil
}
