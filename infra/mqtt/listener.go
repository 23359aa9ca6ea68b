package mqtt

import (
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
)

// Config defines the connection parameters for the heartbeat listener.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults fills the optional fields.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "light-monitor-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "power/heartbeat"
	}
}

// Validate checks required fields when the listener is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	return nil
}

// HeartbeatFunc receives one heartbeat for a group.
type HeartbeatFunc func(group string, at time.Time)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Listener turns MQTT messages on {prefix}/{group} into heartbeat ticks.
// Any payload counts: the message arriving is the heartbeat.
type Listener struct {
	cli    pahoClient
	cfg    Config
	onBeat HeartbeatFunc
	log    logger.Logger
	clock  func() time.Time
}

// NewListener connects to the broker and subscribes to the heartbeat topics.
func NewListener(cfg Config, onBeat HeartbeatFunc, log logger.Logger) (*Listener, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}

	l := &Listener{cfg: cfg, onBeat: onBeat, log: log, clock: time.Now}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("mqtt: connected to %s", cfg.Broker)
		topic := cfg.TopicPrefix + "/+"
		if token := c.Subscribe(topic, cfg.QoS, l.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("mqtt: subscribing %s: %v", topic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("mqtt: connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("mqtt: reconnecting")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connecting: %w", token.Error())
	}
	l.cli = cli
	return l, nil
}

func (l *Listener) onMessage(_ paho.Client, msg paho.Message) {
	group := strings.TrimPrefix(msg.Topic(), l.cfg.TopicPrefix+"/")
	if group == "" || strings.Contains(group, "/") {
		l.log.Warnf("mqtt: ignoring topic %s", msg.Topic())
		return
	}
	l.onBeat(group, l.clock())
}

// Close disconnects from the broker.
func (l *Listener) Close() {
	if l.cli != nil && l.cli.IsConnected() {
		l.cli.Disconnect(250)
	}
}
