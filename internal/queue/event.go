// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationCreatedEvent is published after a notification row is
// written (message received, invoice issued). It carries enough for
// downstream consumers to log or fan out to push/email without querying
// the primary database.
type NotificationCreatedEvent struct {
	NotificationID uint64 `json:"notification_id"`
	SchoolID       uint64 `json:"school_id"`
	UserID         uint64 `json:"user_id"`
	Kind           string `json:"kind"` // "message" | "invoice"
	Title          string `json:"title"`
	CreatedAt      string `json:"created_at"`
}
