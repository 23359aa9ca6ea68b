package model

import "time"

// NotificationRecord tracks one live published message.
type NotificationRecord struct {
	MessageHandle string    `json:"message_handle"`
	Group         string    `json:"group"`
	PublishedAt   time.Time `json:"published_at"`
	Fingerprint   string    `json:"fingerprint"`
}

// IntentType distinguishes the two actions a notifier can be asked to take.
type IntentType string

const (
	IntentPublish IntentType = "publish"
	IntentDelete  IntentType = "delete"
)

// Intent is a delivery instruction for the external notifier. The engine
// never delivers anything itself. For a publish, Content carries the
// rendered message and Pin asks the notifier to pin it; for a delete,
// Handle names the message to remove.
type Intent struct {
	Type    IntentType `json:"type"`
	Channel string     `json:"channel"`
	Content string     `json:"content,omitempty"`
	Pin     bool       `json:"pin,omitempty"`
	Handle  string     `json:"handle,omitempty"`
}
