package repository

import (
	"context"
	"database/sql"
	"time"
)

// ResetTokenRepo persists password reset tokens (hashed, single-use).
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Store inserts a reset token hash row.
func (r *ResetTokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// Consume marks an unused, unexpired token as used and returns its
// owner. The UPDATE-then-check makes the token single-use even under
// concurrent submissions: only one caller sees an affected row.
func (r *ResetTokenRepo) Consume(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		usedAt    sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, used_at FROM password_reset_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &usedAt)
	if err != nil {
		return 0, err
	}
	if usedAt.Valid || time.Now().UTC().After(expiresAt) {
		return 0, sql.ErrNoRows
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at=? WHERE token_hash=? AND used_at IS NULL",
		time.Now().UTC(), tokenHash)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}

// DeleteStale purges tokens that expired, or were used more than the
// grace window ago. Used rows are kept briefly so support can see that a
// reset happened.
func (r *ResetTokenRepo) DeleteStale(ctx context.Context, usedGrace time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-usedGrace)
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE expires_at < UTC_TIMESTAMP() OR (used_at IS NOT NULL AND used_at < ?)",
		cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
