package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/store"
)

// Config bounds the live message window per channel.
type Config struct {
	MaxMessages int `json:"max_messages"`
}

// SetDefaults applies the standard window size.
func (c *Config) SetDefaults() {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 3
	}
}

// Manager decides what a notifier should publish or delete. It never talks
// to any delivery transport itself: it emits Intents and learns about
// successful publishes through RecordPublished. Per-channel state is
// serialized so concurrent reconciles cannot interleave evictions.
type Manager struct {
	cfg   Config
	store store.Store
	log   logger.Logger

	mu       sync.Mutex
	channels map[string]*channelState
}

type channelState struct {
	mu      sync.Mutex
	records []model.NotificationRecord
}

// NewManager builds a Manager backed by st for crash-safe handle tracking.
func NewManager(cfg Config, st store.Store, log logger.Logger) *Manager {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Manager{
		cfg:      cfg,
		store:    st,
		log:      log,
		channels: make(map[string]*channelState),
	}
}

// channel returns the state for one channel, loading persisted records the
// first time it is touched.
func (m *Manager) channel(name string) *channelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs, ok := m.channels[name]; ok {
		return cs
	}
	cs := &channelState{}
	var records []model.NotificationRecord
	err := m.store.Load(store.NotificationsKey(name), &records)
	switch {
	case err == nil:
		cs.records = records
	case errors.Is(err, store.ErrNotFound):
	default:
		m.log.Warnf("notify: loading channel %s: %v", name, err)
	}
	m.channels[name] = cs
	return cs
}

// PublishSchedule asks for a pinned schedule message. A fingerprint already
// live on the channel means nothing changed and no intents are produced.
// Intents are ordered deletions first, publish last. A non-nil error means
// the evicted window could not be persisted; the intents are still valid
// and the caller decides whether to deliver anyway and retry the write.
func (m *Manager) PublishSchedule(channel, fingerprint, content string) ([]model.Intent, error) {
	cs := m.channel(channel)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, rec := range cs.records {
		if rec.Fingerprint == fingerprint {
			m.log.Debugf("notify: channel %s already carries %s", channel, fingerprint[:8])
			return nil, nil
		}
	}
	intents, err := m.evictLocked(channel, cs)
	return append(intents, model.Intent{
		Type:    model.IntentPublish,
		Channel: channel,
		Content: content,
		Pin:     true,
	}), err
}

// PublishEvent asks for a transition message. Transitions are facts, never
// deduplicated.
func (m *Manager) PublishEvent(channel, content string) ([]model.Intent, error) {
	cs := m.channel(channel)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	intents, err := m.evictLocked(channel, cs)
	return append(intents, model.Intent{
		Type:    model.IntentPublish,
		Channel: channel,
		Content: content,
	}), err
}

// evictLocked emits deletes for the oldest records until one slot is free.
// Evicted records leave the tracked set immediately: a delete that fails
// downstream only orphans a stale message, it cannot corrupt the window.
// The persistence error is returned so a failed write is not silently lost.
func (m *Manager) evictLocked(channel string, cs *channelState) ([]model.Intent, error) {
	var intents []model.Intent
	for len(cs.records) >= m.cfg.MaxMessages {
		oldest := cs.records[0]
		cs.records = cs.records[1:]
		intents = append(intents, model.Intent{
			Type:    model.IntentDelete,
			Channel: channel,
			Handle:  oldest.MessageHandle,
		})
	}
	if len(intents) == 0 {
		return nil, nil
	}
	return intents, m.persistLocked(channel, cs)
}

// RecordPublished feeds a delivered message handle back so the window and
// the persisted state reflect it.
func (m *Manager) RecordPublished(channel, handle, group, fingerprint string, at time.Time) error {
	cs := m.channel(channel)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.records = append(cs.records, model.NotificationRecord{
		MessageHandle: handle,
		Group:         group,
		PublishedAt:   at,
		Fingerprint:   fingerprint,
	})
	return m.persistLocked(channel, cs)
}

// Records returns a copy of the live window for one channel.
func (m *Manager) Records(channel string) []model.NotificationRecord {
	cs := m.channel(channel)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]model.NotificationRecord, len(cs.records))
	copy(out, cs.records)
	return out
}

func (m *Manager) persistLocked(channel string, cs *channelState) error {
	if err := m.store.Save(store.NotificationsKey(channel), cs.records); err != nil {
		m.log.Errorf("notify: persisting channel %s: %v", channel, err)
		return err
	}
	return nil
}

// CombinedFingerprint folds several timeline fingerprints into one digest,
// so a multi-group digest message dedups as a unit.
func CombinedFingerprint(timelines []model.IntervalTimeline) string {
	parts := make([]string, 0, len(timelines))
	for _, tl := range timelines {
		parts = append(parts, tl.Fingerprint())
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
