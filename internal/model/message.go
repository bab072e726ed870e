package model

import "time"

// Message is a direct message between two users of the same school.
type Message struct {
	ID          uint64     // messages.id
	SchoolID    uint64     // messages.school_id
	SenderID    uint64     // messages.sender_id
	RecipientID uint64     // messages.recipient_id
	Subject     string     // messages.subject
	Body        string     // messages.body
	ReadAt      *time.Time // messages.read_at (nullable)
	CreatedAt   time.Time  // messages.created_at
}

// Notification is a per-user feed entry written server-side when
// something relevant happens (message received, invoice issued).
type Notification struct {
	ID        uint64     // notifications.id
	SchoolID  uint64     // notifications.school_id
	UserID    uint64     // notifications.user_id
	Title     string     // notifications.title
	Body      string     // notifications.body
	ReadAt    *time.Time // notifications.read_at (nullable)
	CreatedAt time.Time  // notifications.created_at
}
