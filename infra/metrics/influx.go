package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
)

// InfluxSink writes monitoring facts to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string, log logger.Logger) *InfluxSink {
	if log == nil {
		log = logger.Nop{}
	}
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      log,
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails, so a dead metrics backend never blocks
// monitoring.
func NewInfluxSinkWithFallback(url, token, org, bucket string, log logger.Logger) Sink {
	sink := NewInfluxSink(url, token, org, bucket, log)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return NopSink{}
	}
	return sink
}

func (s *InfluxSink) RecordPowerState(group string, st model.PowerState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("power_state").
		AddTag("group", group).
		AddField("state", stateValue(st)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordTransition(ev model.StateChanged) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("power_transition").
		AddTag("group", ev.Group).
		AddTag("to", string(ev.To)).
		AddField("duration_sec", ev.Duration.Seconds()).
		SetTime(ev.At)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordAdherence(group, date string, pct float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_adherence").
		AddTag("group", group).
		AddTag("date", date).
		AddField("percent", pct).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordHeartbeatAge(group string, age time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("heartbeat_age").
		AddTag("group", group).
		AddField("seconds", age.Seconds()).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and releases the client.
func (s *InfluxSink) Close() { s.client.Close() }
