package report

import (
	"fmt"
	"strings"
	"time"
)

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%d год %d хв", minutes/60, minutes%60)
}

// DailyCaption renders the Telegram caption for a day report.
func DailyCaption(rep DayReport) string {
	date, _ := time.Parse("2006-01-02", rep.Date)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Звіт за %s</b> (група %s)\n\n", date.Format("02.01.2006"), rep.Group)
	fmt.Fprintf(&b, "🟢 Світло було: <b>%s</b>\n", formatMinutes(rep.UpMinutes))
	fmt.Fprintf(&b, "🔴 Світла не було: <b>%s</b>\n", formatMinutes(rep.DownMinutes))
	if rep.UnknownMinutes > 0 {
		fmt.Fprintf(&b, "⬜ Немає даних: <b>%s</b>\n", formatMinutes(rep.UnknownMinutes))
	}
	if rep.HasPlan {
		fmt.Fprintf(&b, "\n📋 За графіком без світла: <b>%s</b>\n", formatMinutes(rep.PlannedOffMinutes))
		fmt.Fprintf(&b, "⚡ Відповідність графіку: <b>%.1f%%</b>", rep.AdherencePct)
	}
	return strings.TrimRight(b.String(), "\n")
}

// WeeklyCaption renders the Telegram caption for a week report.
func WeeklyCaption(rep WeekReport) string {
	start, _ := time.Parse("2006-01-02", rep.Start)
	end, _ := time.Parse("2006-01-02", rep.End)
	best, _ := time.Parse("2006-01-02", rep.BestDay)
	worst, _ := time.Parse("2006-01-02", rep.WorstDay)

	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>Тижневий звіт %s - %s</b> (група %s)\n\n",
		start.Format("02.01"), end.Format("02.01"), rep.Group)
	fmt.Fprintf(&b, "🟢 Разом зі світлом: <b>%s</b>\n", formatMinutes(rep.TotalUpMinutes))
	fmt.Fprintf(&b, "🔴 Разом без світла: <b>%s</b>\n\n", formatMinutes(rep.TotalDownMinutes))
	fmt.Fprintf(&b, "🏆 Найкращий день: <b>%s</b>\n", best.Format("02.01"))
	fmt.Fprintf(&b, "💀 Найгірший день: <b>%s</b>\n", worst.Format("02.01"))
	fmt.Fprintf(&b, "📉 Відключення на день: <b>%.1f ± %.1f год</b>", rep.MeanOutageHours, rep.StddevOutageHours)
	return b.String()
}
