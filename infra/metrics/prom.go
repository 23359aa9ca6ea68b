package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// PromSink exposes monitoring facts as Prometheus metrics.
type PromSink struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	adherence   *prometheus.GaugeVec
	hbAge       *prometheus.GaugeVec
}

// NewPromSink registers metrics on the default Prometheus registerer. The
// scrape server is started separately with StartServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "power_state",
		Help: "Confirmed power state per group: 1 on, 0 off, -1 unknown",
	}, []string{"group"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "power_transitions_total",
		Help: "Confirmed power state transitions",
	}, []string{"group", "to"})
	adherence := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "schedule_adherence_percent",
		Help: "Share of the day where observed supply matched the schedule",
	}, []string{"group"})
	hbAge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "heartbeat_age_seconds",
		Help: "Time since the last heartbeat per group",
	}, []string{"group"})

	collectors := []prometheus.Collector{state, transitions, adherence, hbAge}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	state = collectors[0].(*prometheus.GaugeVec)
	transitions = collectors[1].(*prometheus.CounterVec)
	adherence = collectors[2].(*prometheus.GaugeVec)
	hbAge = collectors[3].(*prometheus.GaugeVec)

	return &PromSink{state: state, transitions: transitions, adherence: adherence, hbAge: hbAge}, nil
}

func (s *PromSink) RecordPowerState(group string, st model.PowerState) error {
	s.state.WithLabelValues(group).Set(stateValue(st))
	return nil
}

func (s *PromSink) RecordTransition(ev model.StateChanged) error {
	s.transitions.WithLabelValues(ev.Group, string(ev.To)).Inc()
	s.state.WithLabelValues(ev.Group).Set(stateValue(ev.To.PowerState()))
	return nil
}

func (s *PromSink) RecordAdherence(group, _ string, pct float64) error {
	s.adherence.WithLabelValues(group).Set(pct)
	return nil
}

func (s *PromSink) RecordHeartbeatAge(group string, age time.Duration) error {
	s.hbAge.WithLabelValues(group).Set(age.Seconds())
	return nil
}

// StartServer serves /metrics until ctx is done.
func StartServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
