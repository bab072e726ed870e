package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/edvora/school-management-api/internal/model"
)

type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// Create inserts a per-user notification row.
func (r *NotificationRepo) Create(ctx context.Context, schoolID, userID uint64, title, body string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO notifications (school_id, user_id, title, body) VALUES (?,?,?,?)",
		schoolID, userID, title, body)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListForUser returns a user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, school_id, user_id, title, body, read_at, created_at FROM notifications WHERE user_id=? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		var (
			n      model.Notification
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.SchoolID, &n.UserID, &n.Title, &n.Body,
			&readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkRead stamps one of the user's notifications as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notifications SET read_at=? WHERE id=? AND user_id=? AND read_at IS NULL",
		time.Now().UTC(), notificationID, userID)
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
