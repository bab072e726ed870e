package utils // package utils provides helpers for token creation, verification and hashing

import (
	"crypto/rand"   // secure random generation for reset tokens
	"crypto/sha256" // SHA-256 hashing of raw tokens before storage
	"encoding/hex"  // hex encoding of digests and random tokens
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/edvora/school-management-api/internal/model"
)

// AuthTokenTTL is the fixed lifetime of an issued auth token. Both the
// embedded JWT expiry and the session row expiry derive from it.
const AuthTokenTTL = 24 * time.Hour

// ErrInvalidToken is returned by ParseAuthToken for any token that does
// not verify: bad format, wrong signature, unexpected algorithm, expired,
// or claims that do not match the expected shape. Callers never learn
// which of those failed.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the identity bundle embedded in a signed token. SchoolID
// is nil for headadmin tokens.
type TokenClaims struct {
	UserID     uint64
	Role       model.Role
	SchoolID   *uint64
	SchoolSlug string
	Email      string
	Username   string
}

// AuthToken pairs the serialized JWT with its expiration time.
type AuthToken struct {
	Raw string    // the serialized JWT string
	Exp time.Time // the UTC expiration time
}

// NewAuthToken builds and signs an HS256 JWT carrying the identity
// claims, expiring at now+ttl. The claim names mirror the wire shape:
// sub, role, school_id, school_slug, email, username, iat, exp.
func NewAuthToken(secret string, tc TokenClaims, ttl time.Duration) (AuthToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":         tc.UserID,
		"role":        string(tc.Role),
		"school_slug": tc.SchoolSlug,
		"email":       tc.Email,
		"username":    tc.Username,
		"iat":         now.Unix(),
		"exp":         exp.Unix(),
	}
	if tc.SchoolID != nil {
		claims["school_id"] = *tc.SchoolID
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AuthToken{}, err
	}
	return AuthToken{Raw: signed, Exp: exp}, nil
}

// ParseAuthToken verifies the signature and embedded expiry of a token
// and returns its claims. It fails closed: every decoding problem
// collapses into ErrInvalidToken.
func ParseAuthToken(secret, raw string) (TokenClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC; "alg":"none" and
		// downgraded algorithms must not verify.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}

	var tc TokenClaims
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return TokenClaims{}, ErrInvalidToken
	}
	tc.UserID = uint64(sub)

	roleStr, _ := claims["role"].(string)
	role, ok := model.ParseRole(roleStr)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	tc.Role = role

	if v, ok := claims["school_id"].(float64); ok {
		id := uint64(v)
		tc.SchoolID = &id
	}
	tc.SchoolSlug, _ = claims["school_slug"].(string)
	tc.Email, _ = claims["email"].(string)
	tc.Username, _ = claims["username"].(string)
	return tc, nil
}

// HashTokenRaw returns the SHA-256 hash of a raw token as a hex string.
// Only this digest is persisted, so a leaked sessions table never yields
// a usable credential.
func HashTokenRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewResetToken returns a cryptographically secure random token for the
// password reset flow. The raw value goes to the user; only its hash is
// stored.
func NewResetToken() (string, error) {
	return randomHex(32) // 32 bytes -> 64 hex chars
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
