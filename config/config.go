package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/weby-homelab/light-monitor-kyiv/infra/httpapi"
	"github.com/weby-homelab/light-monitor-kyiv/infra/mqtt"
)

// Config is the full service configuration.
type Config struct {
	Monitor  MonitorConfig  `json:"monitor"`
	Sources  SourcesConfig  `json:"sources"`
	Notify   NotifyConfig   `json:"notify"`
	Telegram TelegramConfig `json:"telegram"`
	Store    StoreConfig    `json:"store"`
	History  HistoryConfig  `json:"history"`
	MQTT     mqtt.Config    `json:"mqtt"`
	HTTP     httpapi.Config `json:"http"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// Load reads the configuration file, applies LM_-prefixed environment
// overrides (double underscore as the section separator), defaults and
// validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("LM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "lm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Monitor.SetDefaults()
	c.Sources.SetDefaults()
	c.Notify.SetDefaults()
	c.Store.SetDefaults()
	c.History.SetDefaults()
	c.MQTT.SetDefaults()
	c.HTTP.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	if err := c.Sources.Validate(); err != nil {
		return err
	}
	if err := c.Telegram.Validate(c.Notify); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	return c.MQTT.Validate()
}
