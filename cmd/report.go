package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weby-homelab/light-monitor-kyiv/app"
	"github.com/weby-homelab/light-monitor-kyiv/config"
	"github.com/weby-homelab/light-monitor-kyiv/core/deviation"
	"github.com/weby-homelab/light-monitor-kyiv/core/history"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/notify"
	"github.com/weby-homelab/light-monitor-kyiv/core/report"
	corestore "github.com/weby-homelab/light-monitor-kyiv/core/store"
	"github.com/weby-homelab/light-monitor-kyiv/infra/logger"
	"github.com/weby-homelab/light-monitor-kyiv/infra/telegram"
)

var (
	reportDate  string
	reportGroup string
	reportSend  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate power availability reports from the event log",
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Report one day of power availability",
	RunE:  runDaily,
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Report the week ending on the given date",
	RunE:  runWeekly,
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportDate, "date", "", "report date YYYY-MM-DD (default yesterday)")
	reportCmd.PersistentFlags().StringVar(&reportGroup, "group", "", "outage group (default first configured)")
	reportCmd.PersistentFlags().BoolVar(&reportSend, "send", false, "deliver the report to the configured channel")
	reportCmd.AddCommand(dailyCmd, weeklyCmd)
	rootCmd.AddCommand(reportCmd)
}

type reportEnv struct {
	cfg    *config.Config
	loc    *time.Location
	store  corestore.Store
	events history.LogStore
	gen    *report.Generator
	group  string
	date   string
}

func newReportEnv() (*reportEnv, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loc := cfg.Monitor.Location()
	st, err := app.OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	events, err := app.OpenHistory(cfg.History)
	if err != nil {
		return nil, err
	}

	env := &reportEnv{
		cfg:    cfg,
		loc:    loc,
		store:  st,
		events: events,
		gen:    report.NewGenerator(loc, deviation.NewAnalyzer(deviation.Config{})),
		group:  reportGroup,
		date:   reportDate,
	}
	if env.group == "" {
		env.group = cfg.Monitor.Groups[0]
	}
	if env.date == "" {
		env.date = model.DateOf(time.Now().In(loc).AddDate(0, 0, -1))
	} else if _, err := time.ParseInLocation("2006-01-02", env.date, loc); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", env.date, err)
	}
	return env, nil
}

func (e *reportEnv) close() {
	if err := e.events.Close(); err != nil {
		logger.New("report").Errorf("closing event log: %v", err)
	}
}

// plan loads the persisted timeline for a date, nil when none was stored.
func (e *reportEnv) plan(date string) *model.IntervalTimeline {
	var tl model.IntervalTimeline
	if err := e.store.Load(corestore.ScheduleKey(e.group, date), &tl); err != nil {
		if !errors.Is(err, corestore.ErrNotFound) {
			logger.New("report").Warnf("loading plan for %s: %v", date, err)
		}
		return nil
	}
	return &tl
}

func (e *reportEnv) records(ctx context.Context, from, to time.Time) ([]history.EventRecord, error) {
	return e.events.Query(ctx, history.Query{Start: from, End: to, Group: e.group})
}

func runDaily(cmd *cobra.Command, args []string) error {
	env, err := newReportEnv()
	if err != nil {
		return err
	}
	defer env.close()

	dayStart, err := model.DayStart(env.date, env.loc)
	if err != nil {
		return err
	}
	records, err := env.records(cmd.Context(), dayStart.AddDate(0, 0, -7), dayStart.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	rep, err := env.gen.Daily(env.date, env.group, records, env.plan(env.date), time.Now().In(env.loc))
	if err != nil {
		return err
	}
	return emit(env, report.DailyCaption(rep))
}

func runWeekly(cmd *cobra.Command, args []string) error {
	env, err := newReportEnv()
	if err != nil {
		return err
	}
	defer env.close()

	dayStart, err := model.DayStart(env.date, env.loc)
	if err != nil {
		return err
	}
	records, err := env.records(cmd.Context(), dayStart.AddDate(0, 0, -14), dayStart.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	rep, err := env.gen.Weekly(env.date, env.group, records, env.plan, time.Now().In(env.loc))
	if err != nil {
		return err
	}
	return emit(env, report.WeeklyCaption(rep))
}

// emit prints the caption, and posts it to the channel when --send is set.
func emit(env *reportEnv, caption string) error {
	fmt.Println(caption)
	if !reportSend {
		return nil
	}
	if !env.cfg.Telegram.Enabled {
		return fmt.Errorf("--send requires telegram to be configured")
	}
	mgr := notify.NewManager(env.cfg.Notify.ManagerConfig(), env.store, logger.New("notify"))
	notifier, err := telegram.New(env.cfg.Telegram.Token, mgr, logger.New("telegram"))
	if err != nil {
		return err
	}
	intents, err := mgr.PublishEvent(env.cfg.Notify.Channel, caption)
	if err != nil {
		return err
	}
	return notifier.Execute(intents, env.group, "")
}
