package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no value exists for the key.
var ErrNotFound = errors.New("key not found")

// PersistenceError wraps a failed durable read or write. The in-memory state
// that triggered the write is retained by the caller, which retries on the
// next cycle.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the durable key-value storage backing every stateful component.
// Save must replace atomically: a crash mid-write never leaves a torn value
// observable to readers. Values are JSON documents; unknown fields are
// ignored on load and missing fields default, so old processes can read
// records written by newer ones.
type Store interface {
	Load(key string, into any) error
	Save(key string, value any) error
}

// Key layout shared by all components.

// ScheduleKey addresses the last known timeline of a group for a date.
func ScheduleKey(group, date string) string {
	return fmt.Sprintf("schedule:%s:%s", group, date)
}

// HeartbeatKey addresses the liveness record of a group.
func HeartbeatKey(group string) string {
	return fmt.Sprintf("heartbeat:%s", group)
}

// NotificationsKey addresses the live-message window of a channel.
func NotificationsKey(channel string) string {
	return fmt.Sprintf("notifications:%s", channel)
}
