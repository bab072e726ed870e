package model

import "time"

// Session models an entry in the `sessions` table. One row per issued
// token; only the SHA-256 hash of the raw token is stored. The row is the
// source of truth for revocation: a cryptographically valid token whose
// hash has no active row is rejected.
//
// A session is usable only while IsActive is true AND ExpiresAt is in the
// future. Revocation (IsActive=false) is terminal; expired rows are
// purged by the maintenance sweep.
type Session struct {
	ID        uint64    // sessions.id
	UserID    uint64    // sessions.user_id
	TokenHash string    // sessions.token_hash (SHA-256 hex of the raw token)
	IsActive  bool      // sessions.is_active
	ExpiresAt time.Time // sessions.expires_at
	CreatedAt time.Time // sessions.created_at
}

// PasswordResetToken models an entry in the `password_reset_tokens`
// table. Single-use: UsedAt is set when consumed. Rows past ExpiresAt, or
// used more than 24 hours ago, are eligible for purge.
type PasswordResetToken struct {
	ID        uint64     // password_reset_tokens.id
	UserID    uint64     // password_reset_tokens.user_id
	TokenHash string     // password_reset_tokens.token_hash
	ExpiresAt time.Time  // password_reset_tokens.expires_at
	UsedAt    *time.Time // password_reset_tokens.used_at (nullable)
	CreatedAt time.Time  // password_reset_tokens.created_at
}
