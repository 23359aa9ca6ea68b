package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/config"
	"github.com/weby-homelab/light-monitor-kyiv/core/deviation"
	"github.com/weby-homelab/light-monitor-kyiv/core/heartbeat"
	"github.com/weby-homelab/light-monitor-kyiv/core/history"
	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/notify"
	"github.com/weby-homelab/light-monitor-kyiv/core/report"
	"github.com/weby-homelab/light-monitor-kyiv/core/schedule"
	corestore "github.com/weby-homelab/light-monitor-kyiv/core/store"
	"github.com/weby-homelab/light-monitor-kyiv/infra/httpapi"
	infralogger "github.com/weby-homelab/light-monitor-kyiv/infra/logger"
	"github.com/weby-homelab/light-monitor-kyiv/infra/metrics"
	"github.com/weby-homelab/light-monitor-kyiv/infra/mqtt"
	"github.com/weby-homelab/light-monitor-kyiv/infra/sources"
	"github.com/weby-homelab/light-monitor-kyiv/infra/store"
	"github.com/weby-homelab/light-monitor-kyiv/infra/telegram"
	"github.com/weby-homelab/light-monitor-kyiv/internal/eventbus"
)

const lastHashKey = "sources_hash"

// Executor delivers intents to the outside world. The Telegram notifier
// implements it; a nil executor means notifications are computed and
// dropped, which keeps the engine testable offline.
type Executor interface {
	Execute(intents []model.Intent, group, fingerprint string) error
}

// Service wires the monitoring engine: schedule polling, heartbeat
// detection, deviation-aware notifications and history.
type Service struct {
	cfg *config.Config
	log logger.Logger
	loc *time.Location

	store      corestore.Store
	events     history.LogStore
	registry   *heartbeat.Registry
	normalizer *schedule.Normalizer
	analyzer   *deviation.Analyzer
	manager    *notify.Manager
	renderer   *notify.Renderer
	reports    *report.Generator
	executor   Executor
	sink       metrics.Sink
	bus        *eventbus.Bus[model.StateChanged]
	fetchers   []sources.Fetcher
	mqttL      *mqtt.Listener

	mu        sync.RWMutex
	timelines map[string]model.IntervalTimeline // keyed by ScheduleKey
	lastHash  string

	clock func() time.Time
}

// New builds the service from configuration.
func New(cfg *config.Config) (*Service, error) {
	log := infralogger.New("service")
	loc := cfg.Monitor.Location()

	st, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	events, err := OpenHistory(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}

	analyzer := deviation.NewAnalyzer(deviation.Config{})
	svc := &Service{
		cfg:      cfg,
		log:      log,
		loc:      loc,
		store:    st,
		events:   events,
		registry: heartbeat.NewRegistry(cfg.Monitor.HeartbeatConfig(), st, infralogger.New("heartbeat")),
		normalizer: schedule.NewNormalizer(cfg.Sources.Precedence, map[string]schedule.Parser{
			sources.OutageDataID: schedule.NewHourlyStatusParser(loc),
			sources.YasnoID:      schedule.NewSlotListParser(),
		}, infralogger.New("normalizer")),
		analyzer:  analyzer,
		manager:   notify.NewManager(cfg.Notify.ManagerConfig(), st, infralogger.New("notify")),
		renderer:  notify.NewRenderer(loc),
		reports:   report.NewGenerator(loc, analyzer),
		sink:      buildSink(cfg.Metrics, log),
		bus:       eventbus.New[model.StateChanged](),
		timelines: make(map[string]model.IntervalTimeline),
		clock:     time.Now,
	}
	svc.fetchers = []sources.Fetcher{
		sources.NewOutageData(cfg.Sources.Region, infralogger.New("outage-data")),
		sources.NewYasno(cfg.Sources.YasnoRegionID, cfg.Sources.YasnoDSOID, infralogger.New("yasno")),
	}

	if cfg.Telegram.Enabled {
		notifier, err := telegram.New(cfg.Telegram.Token, svc.manager, infralogger.New("telegram"))
		if err != nil {
			return nil, err
		}
		svc.executor = notifier
	}
	if err := st.Load(lastHashKey, &svc.lastHash); err != nil && !errors.Is(err, corestore.ErrNotFound) {
		log.Warnf("loading source hash: %v", err)
	}
	return svc, nil
}

// OpenStore builds the configured state store backend.
func OpenStore(cfg config.StoreConfig) (corestore.Store, error) {
	switch cfg.Backend {
	case "bolt":
		return store.OpenBolt(cfg.Path)
	case "memory":
		return corestore.NewMemoryStore(), nil
	default:
		return store.NewFileStore(cfg.Dir)
	}
}

// OpenHistory builds the configured event log backend.
func OpenHistory(cfg config.HistoryConfig) (history.LogStore, error) {
	if cfg.Backend == "sqlite" {
		return history.NewSQLiteStore(cfg.Path, cfg.MaxEntries)
	}
	return history.NewJSONLStore(cfg.Path, cfg.MaxEntries)
}

func buildSink(cfg config.MetricsConfig, log logger.Logger) metrics.Sink {
	var sinks []metrics.Sink
	if cfg.Prometheus {
		sink, err := metrics.NewPromSink()
		if err != nil {
			log.Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.InfluxURL != "" {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, log))
	}
	switch len(sinks) {
	case 0:
		return metrics.NopSink{}
	case 1:
		return sinks[0]
	default:
		return metrics.NewMultiSink(sinks...)
	}
}

// Run starts all loops and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	sub := s.bus.Subscribe()
	go s.consumeTransitions(ctx, sub)

	if s.cfg.MQTT.Enabled {
		l, err := mqtt.NewListener(s.cfg.MQTT, s.Heartbeat, infralogger.New("mqtt"))
		if err != nil {
			return err
		}
		s.mqttL = l
	}
	if s.cfg.HTTP.Enabled {
		secret, err := httpapi.LoadOrCreateSecret(s.store)
		if err != nil {
			return fmt.Errorf("push secret: %w", err)
		}
		httpCfg := s.cfg.HTTP
		if httpCfg.Group == "" {
			httpCfg.Group = s.cfg.Monitor.Groups[0]
		}
		srv := httpapi.NewServer(httpCfg, secret, s, s.statusSnapshot, infralogger.New("httpapi"))
		s.log.Infof("push URL path: /api/push/%s", secret)
		go func() {
			if err := srv.Run(ctx); err != nil {
				s.log.Errorf("httpapi: %v", err)
			}
		}()
	}
	if s.cfg.Metrics.Prometheus {
		go func() {
			if err := metrics.StartServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("metrics server: %v", err)
			}
		}()
	}

	go s.silenceLoop(ctx)
	go s.pollLoop(ctx)

	<-ctx.Done()
	s.bus.Close()
	return nil
}

// Close releases held resources.
func (s *Service) Close() error {
	if s.mqttL != nil {
		s.mqttL.Close()
	}
	return s.events.Close()
}

// Tick feeds one observation into the group's state machine and fans any
// confirmed transition out to the bus. Every transport (HTTP push, MQTT,
// silence sweep) must come through here or the bus consumer never sees the
// event.
func (s *Service) Tick(group string, observed model.LinkState, t time.Time) (*model.StateChanged, error) {
	ev, err := s.registry.Tick(group, observed, t)
	if ev != nil {
		s.bus.Publish(*ev)
	}
	return ev, err
}

// Heartbeat feeds one liveness ping for a group.
func (s *Service) Heartbeat(group string, at time.Time) {
	if _, err := s.Tick(group, model.LinkUp, at); err != nil {
		s.log.Errorf("tick %s: %v", group, err)
	}
}

func (s *Service) silenceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Monitor.SilenceCheckInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evs, err := s.registry.CheckSilence(now)
			if err != nil {
				s.log.Errorf("silence check: %v", err)
			}
			for _, ev := range evs {
				s.bus.Publish(ev)
			}
			s.gauge(now)
		}
	}
}

// gauge refreshes per-group gauges that are not event-driven.
func (s *Service) gauge(now time.Time) {
	for _, g := range s.cfg.Monitor.Groups {
		m, err := s.registry.Machine(g)
		if err != nil {
			continue
		}
		st := m.State()
		if err := s.sink.RecordPowerState(g, st.Current.PowerState()); err != nil {
			s.log.Warnf("metrics: %v", err)
		}
		if !st.LastHeartbeat.IsZero() {
			if err := s.sink.RecordHeartbeatAge(g, now.Sub(st.LastHeartbeat)); err != nil {
				s.log.Warnf("metrics: %v", err)
			}
		}
	}
}

func (s *Service) pollLoop(ctx context.Context) {
	s.pollSchedules(ctx)
	ticker := time.NewTicker(s.cfg.Monitor.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollSchedules(ctx)
		}
	}
}

// pollSchedules fetches both providers, skips the cycle when nothing
// changed upstream, and otherwise re-normalizes today and tomorrow for
// every group and reconciles the channel digest.
func (s *Service) pollSchedules(ctx context.Context) {
	payloads := sources.FetchAll(ctx, s.fetchers, s.log)
	if len(payloads) == 0 {
		s.log.Warnf("no schedule source reachable")
		return
	}
	hash := sources.CombinedHash(payloads)
	if hash == s.lastHash {
		s.log.Debugf("schedule sources unchanged")
		return
	}

	now := s.clock().In(s.loc)
	dates := []string{model.DateOf(now), model.DateOf(now.AddDate(0, 0, 1))}

	var all []model.IntervalTimeline
	sections := make([]string, 0, len(s.cfg.Monitor.Groups))
	for _, group := range s.cfg.Monitor.Groups {
		var days []model.IntervalTimeline
		for _, date := range dates {
			tl, err := s.normalizer.Normalize(group, date, payloads)
			if err != nil {
				// Keep the previous cached timeline for this day.
				s.log.Warnf("normalize %s/%s: %v", group, date, err)
				if prev, ok := s.timeline(group, date); ok {
					days = append(days, prev)
					all = append(all, prev)
				}
				continue
			}
			s.storeTimeline(tl)
			days = append(days, tl)
			all = append(all, tl)
		}
		if len(days) > 0 {
			sections = append(sections, s.renderer.ScheduleGroup(group, days))
		}
	}
	if len(sections) == 0 {
		return
	}

	fingerprint := notify.CombinedFingerprint(all)
	content := s.renderer.ScheduleDigest(sections, now)
	intents, err := s.manager.PublishSchedule(s.cfg.Notify.Channel, fingerprint, content)
	if err != nil {
		// Deliver anyway: a duplicate message later beats silence now.
		s.log.Errorf("persisting notification window: %v", err)
	}
	s.deliver(intents, "", fingerprint)

	s.lastHash = hash
	if err := s.store.Save(lastHashKey, hash); err != nil {
		s.log.Errorf("saving source hash: %v", err)
	}
}

func (s *Service) consumeTransitions(ctx context.Context, sub <-chan model.StateChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.handleTransition(ctx, ev)
		}
	}
}

func (s *Service) handleTransition(ctx context.Context, ev model.StateChanged) {
	if err := s.events.Append(ctx, history.FromTransition(ev)); err != nil {
		s.log.Errorf("appending event: %v", err)
	}
	if err := s.sink.RecordTransition(ev); err != nil {
		s.log.Warnf("metrics: %v", err)
	}

	content := s.renderer.Transition(ev, s.transitionContext(ev))
	intents, err := s.manager.PublishEvent(s.cfg.Notify.Channel, content)
	if err != nil {
		s.log.Errorf("persisting notification window: %v", err)
	}
	s.deliver(intents, ev.Group, "")

	s.recordAdherence(ctx, ev)
}

// transitionContext enriches a transition with the schedule view: how far
// off plan it landed and when the next switch is expected.
func (s *Service) transitionContext(ev model.StateChanged) notify.TransitionContext {
	date := model.DateOf(ev.At.In(s.loc))
	tl, ok := s.timeline(ev.Group, date)
	if !ok || tl.Status != model.DayNormal {
		return notify.TransitionContext{}
	}
	dayStart, err := model.DayStart(date, s.loc)
	if err != nil {
		return notify.TransitionContext{}
	}

	tc := notify.TransitionContext{}
	minute := int(ev.At.Sub(dayStart) / time.Minute)
	if delta, ok := s.analyzer.NearestSwitchDelta(tl, ev.At, dayStart, ev.To.PowerState()); ok {
		tc.HasDeviation = true
		tc.DeviationDelta = delta
		tc.PlannedSwitch = model.MinuteClock(minute - delta)
	}
	if next, ok := nextSwitch(tl, minute); ok {
		tc.ExpectedNext = model.MinuteClock(next)
	}
	return tc
}

// nextSwitch finds the first planned state boundary after the given minute.
func nextSwitch(tl model.IntervalTimeline, minute int) (int, bool) {
	for _, iv := range tl.Intervals {
		if iv.End > minute && iv.End < model.MinutesPerDay {
			return iv.End, true
		}
	}
	return 0, false
}

func (s *Service) recordAdherence(ctx context.Context, ev model.StateChanged) {
	date := model.DateOf(ev.At.In(s.loc))
	tl, ok := s.timeline(ev.Group, date)
	if !ok || tl.Status != model.DayNormal {
		return
	}
	dayStart, err := model.DayStart(date, s.loc)
	if err != nil {
		return
	}
	records, err := s.events.Query(ctx, history.Query{
		Start: dayStart.Add(-7 * 24 * time.Hour),
		End:   dayStart.Add(24 * time.Hour),
		Group: ev.Group,
	})
	if err != nil {
		s.log.Warnf("querying events: %v", err)
		return
	}
	rep, err := s.reports.Daily(date, ev.Group, records, &tl, s.clock().In(s.loc))
	if err != nil {
		s.log.Warnf("daily report: %v", err)
		return
	}
	if err := s.sink.RecordAdherence(ev.Group, date, rep.AdherencePct); err != nil {
		s.log.Warnf("metrics: %v", err)
	}
}

// deliver runs intents through the executor, if one is configured.
func (s *Service) deliver(intents []model.Intent, group, fingerprint string) {
	if len(intents) == 0 {
		return
	}
	if s.executor == nil {
		s.log.Infof("no notifier configured, dropping %d intents", len(intents))
		return
	}
	if err := s.executor.Execute(intents, group, fingerprint); err != nil {
		s.log.Errorf("delivering intents: %v", err)
	}
}

// timeline returns the cached timeline for (group, date), falling back to
// the persisted copy.
func (s *Service) timeline(group, date string) (model.IntervalTimeline, bool) {
	key := corestore.ScheduleKey(group, date)
	s.mu.RLock()
	tl, ok := s.timelines[key]
	s.mu.RUnlock()
	if ok {
		return tl, true
	}
	if err := s.store.Load(key, &tl); err != nil {
		return model.IntervalTimeline{}, false
	}
	s.mu.Lock()
	s.timelines[key] = tl
	s.mu.Unlock()
	return tl, true
}

func (s *Service) storeTimeline(tl model.IntervalTimeline) {
	key := corestore.ScheduleKey(tl.Group, tl.Date)
	s.mu.Lock()
	s.timelines[key] = tl
	s.mu.Unlock()
	if err := s.store.Save(key, tl); err != nil {
		s.log.Errorf("saving timeline %s: %v", key, err)
	}
}

// statusSnapshot serves the HTTP status endpoint.
func (s *Service) statusSnapshot() []httpapi.Status {
	groups := append([]string(nil), s.cfg.Monitor.Groups...)
	sort.Strings(groups)
	out := make([]httpapi.Status, 0, len(groups))
	for _, g := range groups {
		m, err := s.registry.Machine(g)
		if err != nil {
			continue
		}
		st := m.State()
		out = append(out, httpapi.Status{
			Group:     g,
			State:     string(st.Current),
			Since:     st.Since,
			LastSeen:  st.LastHeartbeat,
			Adherence: s.todayAdherence(g),
		})
	}
	return out
}

// todayAdherence grades today against the cached plan, nil when no plan is
// published or no events are logged yet.
func (s *Service) todayAdherence(group string) *float64 {
	now := s.clock().In(s.loc)
	date := model.DateOf(now)
	tl, ok := s.timeline(group, date)
	if !ok || tl.Status != model.DayNormal {
		return nil
	}
	dayStart, err := model.DayStart(date, s.loc)
	if err != nil {
		return nil
	}
	records, err := s.events.Query(context.Background(), history.Query{
		Start: dayStart.Add(-7 * 24 * time.Hour),
		End:   dayStart.Add(24 * time.Hour),
		Group: group,
	})
	if err != nil || len(records) == 0 {
		return nil
	}
	rep, err := s.reports.Daily(date, group, records, &tl, now)
	if err != nil {
		return nil
	}
	return &rep.AdherencePct
}
