package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/edvora/school-management-api/internal/model"
)

// SessionRepo persists issued-token records (single 'token_hash' column,
// never the raw token). A row is the server-side source of truth for
// whether a token is still honored; revocation flips is_active and is
// terminal.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Store inserts an active session row for a freshly issued token.
func (r *SessionRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token_hash, is_active, expires_at) VALUES (?,?,1,?)",
		userID, tokenHash, exp)
	return err
}

// FindActiveByHash returns the session for a token hash only if it is
// still active and unexpired. A miss in any of those senses is
// sql.ErrNoRows: callers treat it as a normal unauthenticated result.
func (r *SessionRepo) FindActiveByHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, is_active, expires_at, created_at FROM sessions WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IsActive, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return model.Session{}, err
	}
	if !s.IsActive {
		return model.Session{}, sql.ErrNoRows
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		return model.Session{}, sql.ErrNoRows
	}
	return s, nil
}

// Rotate replaces the token hash and expiry on an existing session row.
// Used by refresh: the row keeps its identity across rotations, so the
// old and new tokens can never both be honored. The single UPDATE makes
// concurrent rotations last-write-wins without torn state.
func (r *SessionRepo) Rotate(ctx context.Context, sessionID uint64, newHash string, newExp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET token_hash=?, expires_at=? WHERE id=? AND is_active=1",
		newHash, newExp, sessionID)
	return err
}

// RevokeByUserAndHash marks one session as revoked (logout of a single
// device). Idempotent: revoking an already-revoked session is a no-op.
func (r *SessionRepo) RevokeByUserAndHash(ctx context.Context, userID uint64, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE user_id=? AND token_hash=? AND is_active=1",
		userID, tokenHash)
	return err
}

// RevokeAllForUser revokes every active session of a user. Used by
// password change and account deactivation to force re-login everywhere.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET is_active=0 WHERE user_id=? AND is_active=1",
		userID)
	return err
}

// DeleteExpired purges rows whose expiry has passed. Called by the
// maintenance sweep; revoked-but-unexpired rows are kept until expiry so
// the registry keeps answering "revoked" rather than "unknown".
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
