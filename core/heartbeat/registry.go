package heartbeat

import (
	"sort"
	"sync"
	"time"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/store"
)

// Registry owns one Machine per monitored group. Ticks for the same group
// serialize inside the machine; ticks for different groups proceed
// independently.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	store    store.Store
	log      logger.Logger
	machines map[string]*Machine
}

// NewRegistry builds an empty registry; machines are created lazily on
// first tick and restored from st.
func NewRegistry(cfg Config, st store.Store, log logger.Logger) *Registry {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Registry{cfg: cfg, store: st, log: log, machines: map[string]*Machine{}}
}

// Machine returns the detector for group, creating it on first use.
func (r *Registry) Machine(group string) (*Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.machines[group]; ok {
		return m, nil
	}
	m, err := NewMachine(group, r.cfg, r.store, r.log)
	if err != nil {
		return nil, err
	}
	r.machines[group] = m
	return m, nil
}

// Tick routes one observation to the group's machine.
func (r *Registry) Tick(group string, observed model.LinkState, t time.Time) (*model.StateChanged, error) {
	m, err := r.Machine(group)
	if err != nil {
		return nil, err
	}
	return m.Tick(observed, t)
}

// CheckSilence sweeps every known machine and collects the transitions that
// silence produced.
func (r *Registry) CheckSilence(t time.Time) ([]model.StateChanged, error) {
	r.mu.Lock()
	groups := make([]string, 0, len(r.machines))
	for g := range r.machines {
		groups = append(groups, g)
	}
	r.mu.Unlock()
	sort.Strings(groups)

	var events []model.StateChanged
	var firstErr error
	for _, g := range groups {
		m, err := r.Machine(g)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ev, err := m.CheckSilence(t)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events, firstErr
}
