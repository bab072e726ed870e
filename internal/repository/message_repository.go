package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/edvora/school-management-api/internal/model"
)

type MessageRepo struct{ DB *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

// Create inserts a message between two users of the same school.
func (r *MessageRepo) Create(ctx context.Context, schoolID, senderID, recipientID uint64, subject, body string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO messages (school_id, sender_id, recipient_id, subject, body) VALUES (?,?,?,?,?)",
		schoolID, senderID, recipientID, subject, body)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Inbox returns the messages addressed to a user, newest first.
func (r *MessageRepo) Inbox(ctx context.Context, recipientID uint64) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, school_id, sender_id, recipient_id, subject, body, read_at, created_at FROM messages WHERE recipient_id=? ORDER BY created_at DESC",
		recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var (
			m      model.Message
			readAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.SchoolID, &m.SenderID, &m.RecipientID,
			&m.Subject, &m.Body, &readAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkRead stamps a message as read, but only for its recipient; the
// recipient check keeps one user from touching another's inbox.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, recipientID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE messages SET read_at=? WHERE id=? AND recipient_id=? AND read_at IS NULL",
		time.Now().UTC(), messageID, recipientID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
