// Package auth implements the per-request authentication gate: token
// verification, server-side session confirmation, user loading and role
// checks. Failures are reported through two typed sentinels rather than
// message text so callers can map them to 401/403 without string
// matching.
package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/repository"
	"github.com/edvora/school-management-api/internal/utils"
)

// ErrUnauthenticated covers every way a request can fail to prove who it
// is: no token, malformed or tampered token, expired token, revoked or
// missing session, unknown or deactivated user. The caller is told
// nothing more specific.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden means the session is valid but the user's role is not in
// the route's allowed set.
var ErrForbidden = errors.New("forbidden")

// Gate validates raw tokens against the codec and the session registry
// and loads the current user. It is constructed once at startup with its
// dependencies injected; it holds no mutable state of its own.
type Gate struct {
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
	Secret   string
}

func NewGate(users *repository.UserRepo, sessions *repository.SessionRepo, secret string) *Gate {
	return &Gate{Users: users, Sessions: sessions, Secret: secret}
}

// Authenticate runs the full gate pipeline over a raw token:
//
//	verify signature+expiry -> hash -> active session row -> load user
//	-> user active -> role in allowed set (when allowed is non-empty)
//
// The session lookup is what makes logout and password change effective
// while a token is still cryptographically valid; both the token's
// embedded expiry and the session row's expiry are enforced, and the
// stricter one wins. On success the freshly loaded user is returned, not
// the token claims, so callers always see current role/school/active
// state.
func (g *Gate) Authenticate(ctx context.Context, rawToken string, allowed ...model.Role) (model.User, error) {
	if rawToken == "" {
		return model.User{}, ErrUnauthenticated
	}
	claims, err := utils.ParseAuthToken(g.Secret, rawToken)
	if err != nil {
		return model.User{}, ErrUnauthenticated
	}

	session, err := g.Sessions.FindActiveByHash(ctx, utils.HashTokenRaw(rawToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUnauthenticated
		}
		return model.User{}, err
	}
	// The hash matched a row owned by someone else only if two distinct
	// raw tokens collided, which SHA-256 rules out; the check costs one
	// comparison.
	if session.UserID != claims.UserID {
		return model.User{}, ErrUnauthenticated
	}

	u, err := g.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUnauthenticated
		}
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, ErrUnauthenticated
	}

	if len(allowed) > 0 && !roleAllowed(u.Role, allowed) {
		return model.User{}, ErrForbidden
	}
	return u, nil
}

// LocateSession finds the session row for a raw token without requiring
// the token to verify. Logout uses it: clearing a session must work even
// when the token itself is already invalid.
func (g *Gate) LocateSession(ctx context.Context, rawToken string) (model.Session, error) {
	if rawToken == "" {
		return model.Session{}, ErrUnauthenticated
	}
	session, err := g.Sessions.FindActiveByHash(ctx, utils.HashTokenRaw(rawToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrUnauthenticated
		}
		return model.Session{}, err
	}
	return session, nil
}

func roleAllowed(role model.Role, allowed []model.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
