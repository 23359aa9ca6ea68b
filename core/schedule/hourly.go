package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// HourlyStatusParser reads the community-maintained outage feed: a document
// keyed by day timestamp, then group, then hour 1..24, with a textual status
// per hour. "first"/"second" mark which half of the hour is off.
type HourlyStatusParser struct {
	loc *time.Location
}

// NewHourlyStatusParser builds a parser resolving day timestamps in loc.
func NewHourlyStatusParser(loc *time.Location) *HourlyStatusParser {
	return &HourlyStatusParser{loc: loc}
}

type hourlyDoc struct {
	Fact struct {
		Data map[string]map[string]map[string]string `json:"data"`
	} `json:"fact"`
}

func (p *HourlyStatusParser) Parse(group, date string, payload []byte) (DaySchedule, []string, error) {
	var doc hourlyDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return DaySchedule{}, nil, fmt.Errorf("decode hourly feed: %w", err)
	}
	day := p.findDay(doc, group, date)
	if day == nil {
		return DaySchedule{}, nil, fmt.Errorf("no entry for %s on %s", group, date)
	}
	if allYes(day) {
		// A day published as fully-on means the real schedule is not out yet.
		return DaySchedule{Status: model.DayPending}, nil, nil
	}

	slots := make([]model.PowerState, model.SlotsPerDay)
	var warnings []string
	for hour := 1; hour <= 24; hour++ {
		first, second := slotPair(day[strconv.Itoa(hour)])
		if first == model.PowerUnknown {
			warnings = append(warnings, fmt.Sprintf("hour %d: status %q", hour, day[strconv.Itoa(hour)]))
		}
		slots[(hour-1)*2] = first
		slots[(hour-1)*2+1] = second
	}
	return DaySchedule{Slots: slots, Status: model.DayNormal}, warnings, nil
}

func (p *HourlyStatusParser) findDay(doc hourlyDoc, group, date string) map[string]string {
	for tsStr, groups := range doc.Fact.Data {
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		if model.DateOf(time.Unix(ts, 0).In(p.loc)) != date {
			continue
		}
		if day, ok := groups[group]; ok {
			return day
		}
	}
	return nil
}

func allYes(day map[string]string) bool {
	for hour := 1; hour <= 24; hour++ {
		if s, ok := day[strconv.Itoa(hour)]; ok && s != "yes" {
			return false
		}
	}
	return true
}

// slotPair maps an hourly status onto its two half-hour slots.
// "maybe" variants are published as possible-outage hints; the feed treats
// them as on, and so do we.
func slotPair(status string) (model.PowerState, model.PowerState) {
	switch status {
	case "yes", "maybe", "mfirst", "msecond":
		return model.PowerOn, model.PowerOn
	case "no":
		return model.PowerOff, model.PowerOff
	case "first":
		return model.PowerOff, model.PowerOn
	case "second":
		return model.PowerOn, model.PowerOff
	default:
		return model.PowerUnknown, model.PowerUnknown
	}
}
