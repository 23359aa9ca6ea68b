package report

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/weby-homelab/light-monitor-kyiv/core/deviation"
	"github.com/weby-homelab/light-monitor-kyiv/core/history"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// FactInterval is one replayed run of link state within a day.
type FactInterval struct {
	Start time.Time        `json:"start"`
	End   time.Time        `json:"end"`
	State model.PowerState `json:"state"`
}

// DayReport summarizes one group's day of observed supply against the plan.
type DayReport struct {
	Date      string         `json:"date"`
	Group     string         `json:"group"`
	Intervals []FactInterval `json:"intervals"`

	UpMinutes      int `json:"up_minutes"`
	DownMinutes    int `json:"down_minutes"`
	UnknownMinutes int `json:"unknown_minutes"`

	// Plan comparison, present only when a timeline was available.
	PlannedOffMinutes int                     `json:"planned_off_minutes,omitempty"`
	AdherencePct      float64                 `json:"adherence_pct,omitempty"`
	Deviations        []model.DeviationRecord `json:"deviations,omitempty"`
	HasPlan           bool                    `json:"has_plan"`
}

// WeekReport aggregates seven consecutive day reports.
type WeekReport struct {
	Start string      `json:"start"`
	End   string      `json:"end"`
	Group string      `json:"group"`
	Days  []DayReport `json:"days"`

	TotalUpMinutes   int    `json:"total_up_minutes"`
	TotalDownMinutes int    `json:"total_down_minutes"`
	BestDay          string `json:"best_day"`
	WorstDay         string `json:"worst_day"`

	MeanOutageHours   float64 `json:"mean_outage_hours"`
	StddevOutageHours float64 `json:"stddev_outage_hours"`
}

// Generator computes reports from the event log. Pure computation: fetching
// events and delivering the rendered report stay with the caller.
type Generator struct {
	loc      *time.Location
	analyzer *deviation.Analyzer
}

// NewGenerator builds a Generator localized to loc.
func NewGenerator(loc *time.Location, analyzer *deviation.Analyzer) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if analyzer == nil {
		analyzer = deviation.NewAnalyzer(deviation.Config{})
	}
	return &Generator{loc: loc, analyzer: analyzer}
}

// Daily replays the group's events into the day's fact intervals and, when a
// planned timeline is supplied, grades the day against it. For the current
// day the replay is clipped at now: the remainder is excluded from the
// minute buckets and treated as unknown by the grader, so planned intervals
// still in the future are never graded.
func (g *Generator) Daily(date, group string, events []history.EventRecord, planned *model.IntervalTimeline, now time.Time) (DayReport, error) {
	dayStart, err := model.DayStart(date, g.loc)
	if err != nil {
		return DayReport{}, fmt.Errorf("report: %w", err)
	}
	dayEnd := dayStart.Add(24 * time.Hour)
	calcEnd := dayEnd
	if now.After(dayStart) && now.Before(dayEnd) {
		calcEnd = now
	}

	rep := DayReport{Date: date, Group: group}

	scoped := make([]history.EventRecord, 0, len(events))
	for _, ev := range events {
		if ev.Group == group {
			scoped = append(scoped, ev)
		}
	}
	sort.Slice(scoped, func(i, j int) bool { return scoped[i].Timestamp.Before(scoped[j].Timestamp) })

	// State at midnight is whatever the last event before the day left
	// behind.
	state := model.LinkUnknown
	idx := 0
	for ; idx < len(scoped); idx++ {
		if !scoped[idx].Timestamp.Before(dayStart) {
			break
		}
		state = scoped[idx].Event
	}

	cursor := dayStart
	var transitions []model.StateChanged
	for ; idx < len(scoped); idx++ {
		ev := scoped[idx]
		if ev.Timestamp.After(calcEnd) {
			break
		}
		if ev.Timestamp.After(cursor) {
			rep.addInterval(cursor, ev.Timestamp, state.PowerState())
		}
		transitions = append(transitions, model.StateChanged{
			Group: group,
			From:  state,
			To:    ev.Event,
			At:    ev.Timestamp,
		})
		cursor = ev.Timestamp
		state = ev.Event
	}
	if cursor.Before(calcEnd) {
		rep.addInterval(cursor, calcEnd, state.PowerState())
	}

	if planned != nil && planned.Status == model.DayNormal {
		rep.HasPlan = true
		for _, iv := range planned.Intervals {
			if iv.State == model.PowerOff {
				rep.PlannedOffMinutes += iv.Minutes()
			}
		}
		if len(transitions) == 0 && state != model.LinkUnknown {
			// No switches today: a synthetic self-transition carries the
			// midnight state into the replay.
			transitions = append(transitions, model.StateChanged{Group: group, From: state, To: state, At: dayStart})
		}
		if calcEnd.Before(dayEnd) {
			// Minutes that have not elapsed yet carry no evidence; without
			// this cap the replay would extrapolate the last state to 24:00
			// and grade planned intervals still in the future.
			transitions = append(transitions, model.StateChanged{Group: group, From: state, To: model.LinkUnknown, At: calcEnd})
		}
		analysis := g.analyzer.Analyze(*planned, transitions, dayStart)
		rep.AdherencePct = analysis.AdherencePct
		rep.Deviations = analysis.Records
	}
	return rep, nil
}

func (r *DayReport) addInterval(start, end time.Time, st model.PowerState) {
	r.Intervals = append(r.Intervals, FactInterval{Start: start, End: end, State: st})
	minutes := int(end.Sub(start) / time.Minute)
	switch st {
	case model.PowerOn:
		r.UpMinutes += minutes
	case model.PowerOff:
		r.DownMinutes += minutes
	default:
		r.UnknownMinutes += minutes
	}
}

// Weekly builds day reports for the seven days ending at endDate inclusive
// and aggregates them. Plans are looked up per date through planFor, which
// may return nil for days without a cached schedule.
func (g *Generator) Weekly(endDate, group string, events []history.EventRecord, planFor func(date string) *model.IntervalTimeline, now time.Time) (WeekReport, error) {
	end, err := model.DayStart(endDate, g.loc)
	if err != nil {
		return WeekReport{}, fmt.Errorf("report: %w", err)
	}
	start := end.AddDate(0, 0, -6)

	week := WeekReport{
		Start: start.Format("2006-01-02"),
		End:   endDate,
		Group: group,
	}

	outageHours := make([]float64, 0, 7)
	for d := 0; d < 7; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		var planned *model.IntervalTimeline
		if planFor != nil {
			planned = planFor(date)
		}
		day, err := g.Daily(date, group, events, planned, now)
		if err != nil {
			return WeekReport{}, err
		}
		week.Days = append(week.Days, day)
		week.TotalUpMinutes += day.UpMinutes
		week.TotalDownMinutes += day.DownMinutes
		outageHours = append(outageHours, float64(day.DownMinutes)/60)
	}

	best, worst := 0, 0
	for i, day := range week.Days {
		if day.DownMinutes < week.Days[best].DownMinutes {
			best = i
		}
		if day.DownMinutes > week.Days[worst].DownMinutes {
			worst = i
		}
	}
	week.BestDay = week.Days[best].Date
	week.WorstDay = week.Days[worst].Date
	week.MeanOutageHours = stat.Mean(outageHours, nil)
	week.StddevOutageHours = stat.StdDev(outageHours, nil)
	return week, nil
}
