package mqtt

import (
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestOnMessageExtractsGroup(t *testing.T) {
	var gotGroup string
	var gotAt time.Time
	now := time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)

	l := &Listener{
		cfg:    Config{TopicPrefix: "power/heartbeat"},
		log:    logger.Nop{},
		clock:  func() time.Time { return now },
		onBeat: func(group string, at time.Time) { gotGroup, gotAt = group, at },
	}

	l.onMessage(nil, fakeMessage{topic: "power/heartbeat/1.1", payload: []byte("ping")})
	if gotGroup != "1.1" || !gotAt.Equal(now) {
		t.Fatalf("group = %q at = %v", gotGroup, gotAt)
	}
}

func TestOnMessageIgnoresDeepTopics(t *testing.T) {
	called := false
	l := &Listener{
		cfg:    Config{TopicPrefix: "power/heartbeat"},
		log:    logger.Nop{},
		clock:  time.Now,
		onBeat: func(string, time.Time) { called = true },
	}
	l.onMessage(nil, fakeMessage{topic: "power/heartbeat/1.1/extra"})
	if called {
		t.Fatal("nested topic must not tick")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled listener without broker must fail validation")
	}
	cfg.Broker = "tcp://localhost:1883"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.SetDefaults()
	if cfg.TopicPrefix != "power/heartbeat" || cfg.ClientID == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

var _ paho.Message = fakeMessage{}
