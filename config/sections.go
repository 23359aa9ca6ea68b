package config

import (
	"fmt"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/heartbeat"
	"github.com/weby-homelab/light-monitor-kyiv/core/history"
	"github.com/weby-homelab/light-monitor-kyiv/core/notify"
	"github.com/weby-homelab/light-monitor-kyiv/infra/sources"
)

// MonitorConfig holds the detection timings and the monitored groups.
// Durations are expressed in seconds so they read naturally from JSON and
// environment overrides.
type MonitorConfig struct {
	Groups   []string `json:"groups"`
	Timezone string   `json:"timezone"`

	PollIntervalSec     int `json:"poll_interval_sec"`
	SilenceCheckSec     int `json:"silence_check_sec"`
	DebounceSec         int `json:"debounce_sec"`
	SilenceThresholdSec int `json:"silence_threshold_sec"`
	DownBackdateSec     int `json:"down_backdate_sec"`
}

func (c *MonitorConfig) SetDefaults() {
	if len(c.Groups) == 0 {
		c.Groups = []string{"GPV12.1"}
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Kyiv"
	}
	if c.PollIntervalSec <= 0 {
		c.PollIntervalSec = 3600
	}
	if c.SilenceCheckSec <= 0 {
		c.SilenceCheckSec = 60
	}
	if c.DebounceSec <= 0 {
		c.DebounceSec = 120
	}
	if c.SilenceThresholdSec <= 0 {
		c.SilenceThresholdSec = 180
	}
	if c.DownBackdateSec <= 0 {
		c.DownBackdateSec = 60
	}
}

func (c *MonitorConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("monitor: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone.
func (c MonitorConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HeartbeatConfig converts the second-based knobs into the detector config.
func (c MonitorConfig) HeartbeatConfig() heartbeat.Config {
	return heartbeat.Config{
		DebounceWindow:   time.Duration(c.DebounceSec) * time.Second,
		SilenceThreshold: time.Duration(c.SilenceThresholdSec) * time.Second,
		DownBackdate:     time.Duration(c.DownBackdateSec) * time.Second,
	}
}

// PollInterval returns the schedule polling period.
func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// SilenceCheckInterval returns the silence sweep period.
func (c MonitorConfig) SilenceCheckInterval() time.Duration {
	return time.Duration(c.SilenceCheckSec) * time.Second
}

// SourcesConfig identifies the upstream schedule providers.
type SourcesConfig struct {
	Region        string   `json:"region"`
	YasnoRegionID string   `json:"yasno_region_id"`
	YasnoDSOID    string   `json:"yasno_dso_id"`
	Precedence    []string `json:"precedence"`
}

func (c *SourcesConfig) SetDefaults() {
	if c.Region == "" {
		c.Region = "kyiv"
	}
	if c.YasnoRegionID == "" {
		c.YasnoRegionID = "25"
	}
	if c.YasnoDSOID == "" {
		c.YasnoDSOID = "902"
	}
	if len(c.Precedence) == 0 {
		c.Precedence = []string{sources.YasnoID, sources.OutageDataID}
	}
}

func (c *SourcesConfig) Validate() error {
	for _, id := range c.Precedence {
		if id != sources.YasnoID && id != sources.OutageDataID {
			return fmt.Errorf("sources: unknown provider %q", id)
		}
	}
	return nil
}

// NotifyConfig holds the channel and message window settings.
type NotifyConfig struct {
	// Channel is the Telegram chat the digest and transitions go to.
	Channel     string `json:"channel"`
	MaxMessages int    `json:"max_messages"`
}

func (c *NotifyConfig) SetDefaults() {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 3
	}
}

// ManagerConfig converts to the history manager's config.
func (c NotifyConfig) ManagerConfig() notify.Config {
	return notify.Config{MaxMessages: c.MaxMessages}
}

// TelegramConfig carries the bot credentials.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

func (c *TelegramConfig) Validate(n NotifyConfig) error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}
	if n.Channel == "" {
		return fmt.Errorf("telegram: notify.channel is required")
	}
	return nil
}

// StoreConfig selects the state persistence backend.
type StoreConfig struct {
	// Backend is one of file, bolt, memory.
	Backend string `json:"backend"`
	Dir     string `json:"dir"`
	Path    string `json:"path"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "file"
	}
	if c.Dir == "" {
		c.Dir = "state"
	}
	if c.Path == "" {
		c.Path = "state.db"
	}
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "file", "bolt", "memory":
		return nil
	default:
		return fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}

// HistoryConfig selects the event log backend.
type HistoryConfig struct {
	// Backend is one of jsonl, sqlite.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxEntries int    `json:"max_entries"`
}

func (c *HistoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "event_log.jsonl"
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = history.DefaultMaxEntries
	}
}

func (c *HistoryConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite":
		return nil
	default:
		return fmt.Errorf("history: unknown backend %q", c.Backend)
	}
}

// MetricsConfig enables the optional sinks.
type MetricsConfig struct {
	Prometheus     bool   `json:"prometheus"`
	PrometheusPort int    `json:"prometheus_port"`
	InfluxURL      string `json:"influx_url"`
	InfluxToken    string `json:"influx_token"`
	InfluxOrg      string `json:"influx_org"`
	InfluxBucket   string `json:"influx_bucket"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort <= 0 {
		c.PrometheusPort = 9090
	}
}
