package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadJSONWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"monitor": {"groups": ["GPV12.1", "GPV18.1"]},
		"notify": {"channel": "-100200300"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Monitor.Groups) != 2 {
		t.Fatalf("groups = %v", cfg.Monitor.Groups)
	}
	if cfg.Monitor.Timezone != "Europe/Kyiv" {
		t.Fatalf("timezone = %q, want default", cfg.Monitor.Timezone)
	}
	if cfg.Monitor.HeartbeatConfig().DebounceWindow != 2*time.Minute {
		t.Fatalf("debounce = %v, want 2m", cfg.Monitor.HeartbeatConfig().DebounceWindow)
	}
	if cfg.Notify.MaxMessages != 3 {
		t.Fatalf("max messages = %d, want 3", cfg.Notify.MaxMessages)
	}
	if cfg.Sources.Precedence[0] != "yasno" {
		t.Fatalf("precedence = %v", cfg.Sources.Precedence)
	}
	if cfg.History.Backend != "jsonl" || cfg.Store.Backend != "file" {
		t.Fatalf("backends = %s/%s", cfg.History.Backend, cfg.Store.Backend)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
monitor:
  groups: [GPV12.1]
  debounce_sec: 300
store:
  backend: bolt
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Monitor.DebounceSec != 300 {
		t.Fatalf("debounce = %d", cfg.Monitor.DebounceSec)
	}
	if cfg.Store.Backend != "bolt" {
		t.Fatalf("store backend = %q", cfg.Store.Backend)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LM_MONITOR__TIMEZONE", "UTC")
	path := writeConfig(t, "config.json", `{"monitor": {"groups": ["GPV12.1"]}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Monitor.Timezone != "UTC" {
		t.Fatalf("timezone = %q, want env override", cfg.Monitor.Timezone)
	}
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]string{
		"bad timezone":     `{"monitor": {"timezone": "Mars/Olympus"}}`,
		"bad provider":     `{"sources": {"precedence": ["nope"]}}`,
		"bad store":        `{"store": {"backend": "redis"}}`,
		"bad history":      `{"history": {"backend": "csv"}}`,
		"telegram no chat": `{"telegram": {"enabled": true, "token": "t"}}`,
	}
	for name, content := range cases {
		path := writeConfig(t, "config.json", content)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestUnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	if _, err := Load(path); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
