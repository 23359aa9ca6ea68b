package heartbeat

import (
	"errors"
	"sync"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/store"
)

// Config holds the detection timing knobs. Values are operator-configurable,
// not invariants.
type Config struct {
	// DebounceWindow is the sustained disagreement required before a flip is
	// treated as a genuine transition.
	DebounceWindow time.Duration `json:"debounce_window"`
	// SilenceThreshold is how long the link may stay quiet while UP before
	// silence itself counts as a DOWN observation.
	SilenceThreshold time.Duration `json:"silence_threshold"`
	// DownBackdate shifts a silence-inferred outage start back towards the
	// last received heartbeat, since the power was lost before the silence
	// was noticed.
	DownBackdate time.Duration `json:"down_backdate"`
}

// SetDefaults applies the standard detection windows.
func (c *Config) SetDefaults() {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 2 * time.Minute
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 3 * time.Minute
	}
	if c.DownBackdate <= 0 {
		c.DownBackdate = time.Minute
	}
}

// Machine is the debounced UP/DOWN detector for one monitored group. It is
// purely reactive: time only advances through Tick and CheckSilence, the
// machine never sleeps. All methods serialize on an internal mutex, so
// concurrent ticks for the same group cannot interleave.
type Machine struct {
	mu    sync.Mutex
	cfg   Config
	st    model.HeartbeatState
	store store.Store
	log   logger.Logger
}

// NewMachine restores the group's persisted state from st, or starts from
// LinkUnknown when none exists.
func NewMachine(group string, cfg Config, st store.Store, log logger.Logger) (*Machine, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	m := &Machine{cfg: cfg, store: st, log: log}
	err := st.Load(store.HeartbeatKey(group), &m.st)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.st = model.HeartbeatState{Group: group, Current: model.LinkUnknown}
	case err != nil:
		return nil, err
	}
	m.st.Group = group
	if m.st.Current == "" {
		m.st.Current = model.LinkUnknown
	}
	return m, nil
}

// State returns a copy of the current liveness record.
func (m *Machine) State() model.HeartbeatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Tick feeds one explicit liveness observation at time t. It returns the
// confirmed transition, if any. A non-nil error means the durable write
// failed; the in-memory state already reflects the tick and the caller may
// retry persistence on the next cycle.
func (m *Machine) Tick(observed model.LinkState, t time.Time) (*model.StateChanged, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.LastHeartbeat = t
	ev := m.apply(observed, t, t)
	return ev, m.persist()
}

// CheckSilence inspects the time since the last heartbeat. Silence beyond
// the threshold while UP is an implicit DOWN observation: the monitored node
// has no way to say "I lost power" other than going quiet. The silence has
// already outlasted the debounce window, so the transition confirms
// immediately, backdated to shortly after the last heartbeat.
func (m *Machine) CheckSilence(t time.Time) (*model.StateChanged, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.st.Current != model.LinkUp || m.st.LastHeartbeat.IsZero() {
		return nil, nil
	}
	if t.Sub(m.st.LastHeartbeat) <= m.cfg.SilenceThreshold {
		return nil, nil
	}
	at := m.st.LastHeartbeat.Add(m.cfg.DownBackdate)
	ev := m.confirm(model.LinkDown, at)
	return ev, m.persist()
}

// apply runs the debounce transition rule for one observation at time t.
func (m *Machine) apply(observed model.LinkState, t, at time.Time) *model.StateChanged {
	if m.st.Current == model.LinkUnknown {
		// First ever observation: adopt it without debounce.
		return m.confirm(observed, at)
	}
	if observed == m.st.Current {
		// Agreement, or a reversal mid-debounce: the blip is absorbed.
		m.st.Pending = ""
		m.st.PendingSince = time.Time{}
		return nil
	}
	if m.st.Pending != observed {
		m.st.Pending = observed
		m.st.PendingSince = t
		return nil
	}
	if t.Sub(m.st.PendingSince) >= m.cfg.DebounceWindow {
		return m.confirm(observed, at)
	}
	return nil
}

func (m *Machine) confirm(to model.LinkState, at time.Time) *model.StateChanged {
	ev := &model.StateChanged{
		Group: m.st.Group,
		From:  m.st.Current,
		To:    to,
		At:    at,
	}
	if !m.st.Since.IsZero() {
		ev.Duration = at.Sub(m.st.Since)
	}
	m.st.Current = to
	m.st.Since = at
	m.st.Pending = ""
	m.st.PendingSince = time.Time{}
	m.log.Infof("group %s: %s -> %s at %s", m.st.Group, ev.From, ev.To, at.Format(time.RFC3339))
	return ev
}

// persist writes the state after every tick so LastHeartbeat survives
// restarts. Failures are reported, never fatal.
func (m *Machine) persist() error {
	if err := m.store.Save(store.HeartbeatKey(m.st.Group), m.st); err != nil {
		return &store.PersistenceError{Op: "save", Key: store.HeartbeatKey(m.st.Group), Err: err}
	}
	return nil
}
