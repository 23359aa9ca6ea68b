package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

var daysUA = map[time.Weekday]string{
	time.Monday:    "Понеділок",
	time.Tuesday:   "Вівторок",
	time.Wednesday: "Середа",
	time.Thursday:  "Четвер",
	time.Friday:    "П'ятниця",
	time.Saturday:  "Субота",
	time.Sunday:    "Неділя",
}

// Renderer turns timelines and transitions into the Ukrainian channel
// messages. It is pure formatting: all decisions happen upstream.
type Renderer struct {
	loc *time.Location
}

// NewRenderer builds a Renderer localized to loc.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// ScheduleDay renders the schedule block for one group's day.
func (r *Renderer) ScheduleDay(tl model.IntervalTimeline) string {
	date, _ := time.ParseInLocation("2006-01-02", tl.Date, r.loc)
	header := fmt.Sprintf("📆 Графік відключень на %s (%s) [%s]:",
		date.Format("02.01"), daysUA[date.Weekday()], strings.Join(tl.Sources, ", "))

	lines := []string{header, ""}
	switch tl.Status {
	case model.DayEmergency:
		lines = append(lines, "🚨 АВАРІЙНЕ ВІДКЛЮЧЕННЯ!")
		return strings.Join(lines, "\n")
	case model.DayPending:
		lines = append(lines, "⏳ Очікується інформація про графік")
		return strings.Join(lines, "\n")
	}

	var totalOn, totalOff float64
	for _, iv := range tl.Intervals {
		hours := float64(iv.Minutes()) / 60
		var emoji string
		switch iv.State {
		case model.PowerOn:
			emoji = "🟩"
			totalOn += hours
		case model.PowerOff:
			emoji = "🟠"
			totalOff += hours
		default:
			emoji = "⬜"
		}
		lines = append(lines, fmt.Sprintf("%s <code>%s - %s</code> … (%s)",
			emoji, model.MinuteClock(iv.Start), model.MinuteClock(iv.End), formatHours(hours)))
	}
	lines = append(lines, "",
		fmt.Sprintf("🟩 Світло є: %s", formatHours(totalOn)),
		fmt.Sprintf("🟠 Світла нема: %s", formatHours(totalOff)))
	return strings.Join(lines, "\n")
}

// ScheduleGroup renders one group's section covering up to two days.
func (r *Renderer) ScheduleGroup(group string, days []model.IntervalTimeline) string {
	parts := make([]string, 0, len(days))
	for _, tl := range days {
		parts = append(parts, r.ScheduleDay(tl))
	}
	header := fmt.Sprintf("============ група %s ============", strings.TrimPrefix(group, "GPV"))
	return header + "\n" + strings.Join(parts, "\n\n-------------------------------------\n")
}

// ScheduleDigest renders the full multi-group message with the update
// footer.
func (r *Renderer) ScheduleDigest(sections []string, now time.Time) string {
	footer := fmt.Sprintf("\n\n🕐 Оновлено: %s (Київ)", now.In(r.loc).Format("02.01.2006 15:04"))
	return strings.Join(sections, "\n\n\n") + footer
}

// TransitionContext carries the optional enrichments for a transition
// message. Zero values render nothing.
type TransitionContext struct {
	// DeviationDelta is the signed offset in minutes from the nearest
	// planned switch, valid only when HasDeviation is set.
	DeviationDelta int
	HasDeviation   bool
	// PlannedSwitch is the schedule time the event should have happened at.
	PlannedSwitch string
	// ExpectedNext is when the opposite switch is planned.
	ExpectedNext string
}

// Transition renders a confirmed state change with its statistics block.
func (r *Renderer) Transition(ev model.StateChanged, ctx TransitionContext) string {
	at := ev.At.In(r.loc)
	up := ev.To == model.LinkUp

	var b strings.Builder
	if up {
		fmt.Fprintf(&b, "🟢 <b>%s Світло з'явилося!</b>\n\n", at.Format("15:04"))
	} else {
		fmt.Fprintf(&b, "🔴 <b>%s Світло зникло!</b>\n\n", at.Format("15:04"))
	}

	b.WriteString("📊 <b>Статистика живлення:</b>\n")
	if up {
		fmt.Fprintf(&b, "• Світла не було: <b>%s</b>\n", formatDuration(ev.Duration))
	} else {
		fmt.Fprintf(&b, "• Світло було: <b>%s</b>\n", formatDuration(ev.Duration))
	}
	if dev := deviationLine(ctx, up); dev != "" {
		b.WriteString(dev + "\n")
	}

	if ctx.PlannedSwitch != "" || ctx.ExpectedNext != "" {
		b.WriteString("\n📋 <b>Аналіз:</b>\n")
		if ctx.PlannedSwitch != "" {
			if up {
				fmt.Fprintf(&b, "• За графіком світло мало з'явитися о: <b>%s</b>\n", ctx.PlannedSwitch)
			} else {
				fmt.Fprintf(&b, "• За графіком світло мало зникнути о: <b>%s</b>\n", ctx.PlannedSwitch)
			}
		}
		if ctx.ExpectedNext != "" {
			if up {
				fmt.Fprintf(&b, "• Очікуване вимкнення: <b>%s</b>", ctx.ExpectedNext)
			} else {
				fmt.Fprintf(&b, "• Очікуване увімкнення: <b>%s</b>", ctx.ExpectedNext)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func deviationLine(ctx TransitionContext, up bool) string {
	if !ctx.HasDeviation {
		return ""
	}
	if ctx.DeviationDelta == 0 {
		return "⚡ Відхилення: 0 хв (точно за графіком)"
	}
	action := "вимкнення"
	if up {
		action = "увімкнення"
	}
	if ctx.DeviationDelta > 0 {
		return fmt.Sprintf("⚡ Відхилення: +%d хв (пізніше %s)", ctx.DeviationDelta, action)
	}
	return fmt.Sprintf("⚡ Відхилення: -%d хв (раніше %s)", -ctx.DeviationDelta, action)
}

// formatHours renders a fractional hour count with the Ukrainian
// declension rules for "година".
func formatHours(h float64) string {
	if h != float64(int(h)) {
		return strconv.FormatFloat(h, 'g', -1, 64) + " години"
	}
	n := int(h)
	switch {
	case n%10 == 1 && n%100 != 11:
		return fmt.Sprintf("%d година", n)
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return fmt.Sprintf("%d години", n)
	default:
		return fmt.Sprintf("%d годин", n)
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "невідомо"
	}
	total := int(d / time.Minute)
	return fmt.Sprintf("%d год %d хв", total/60, total%60)
}
