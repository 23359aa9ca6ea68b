package model

import "time"

// HeartbeatState is the durable liveness record of one monitored group.
// Pending holds an unconfirmed transition during the debounce window and is
// empty otherwise.
type HeartbeatState struct {
	Group         string    `json:"group"`
	Current       LinkState `json:"current"`
	Since         time.Time `json:"since"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Pending       LinkState `json:"pending,omitempty"`
	PendingSince  time.Time `json:"pending_since,omitempty"`
}

// StateChanged is emitted for every confirmed UP/DOWN transition.
// Duration is the exact wall-clock span of the state that just ended.
type StateChanged struct {
	Group    string        `json:"group"`
	From     LinkState     `json:"from"`
	To       LinkState     `json:"to"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
}
