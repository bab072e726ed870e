package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvora/school-management-api/internal/auth"
	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/repository"
	"github.com/edvora/school-management-api/internal/utils"
)

const testSecret = "middleware-test-secret"

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestExtractToken(t *testing.T) {
	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "from-cookie"})
		c, _ := newContext(req)
		assert.Equal(t, "from-cookie", ExtractToken(c))
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer from-header")
		c, _ := newContext(req)
		assert.Equal(t, "from-header", ExtractToken(c))
	})

	t.Run("bearer scheme is case-insensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer from-header")
		c, _ := newContext(req)
		assert.Equal(t, "from-header", ExtractToken(c))
	})

	t.Run("cookie wins over header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "from-cookie"})
		req.Header.Set("Authorization", "Bearer from-header")
		c, _ := newContext(req)
		assert.Equal(t, "from-cookie", ExtractToken(c))
	})

	t.Run("basic scheme is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		c, _ := newContext(req)
		assert.Equal(t, "", ExtractToken(c))
	})

	t.Run("no credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c, _ := newContext(req)
		assert.Equal(t, "", ExtractToken(c))
	})
}

func newTestGate(t *testing.T) (*auth.Gate, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return auth.NewGate(repository.NewUserRepo(db), repository.NewSessionRepo(db), testSecret), mock
}

func signedToken(t *testing.T, userID uint64, role model.Role) (string, string) {
	t.Helper()
	tok, err := utils.NewAuthToken(testSecret, utils.TokenClaims{
		UserID: userID, Role: role, Email: "u@example.com", Username: "u",
	}, utils.AuthTokenTTL)
	require.NoError(t, err)
	return tok.Raw, utils.HashTokenRaw(tok.Raw)
}

func expectGateHit(mock sqlmock.Sqlmock, hash string, userID uint64, role model.Role) {
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, user_id, token_hash, is_active, expires_at, created_at FROM sessions WHERE token_hash=? LIMIT 1").
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "is_active", "expires_at", "created_at"}).
			AddRow(1, userID, hash, true, now.Add(time.Hour), now))
	mock.ExpectQuery("SELECT id, school_id, email, username, password_hash, role, is_active, created_at, updated_at FROM users WHERE id=? LIMIT 1").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "email", "username", "password_hash", "role", "is_active", "created_at", "updated_at"}).
			AddRow(userID, int64(3), "u@example.com", "u", "$2a$04$hash", string(role), true, now, now))
}

func runAuthenticated(t *testing.T, g *auth.Gate, req *http.Request, roles ...model.Role) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	c, rec := newContext(req)
	reachedNext := false
	h := Authenticate(g, roles...)(func(c echo.Context) error {
		reachedNext = true
		u, ok := CurrentUser(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, echo.Map{"id": u.ID})
	})
	require.NoError(t, h(c))
	return rec, reachedNext
}

func TestAuthenticate_AllowsValidSession(t *testing.T) {
	g, mock := newTestGate(t)
	raw, hash := signedToken(t, 42, model.RoleAdmin)
	expectGateHit(mock, hash, 42, model.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: raw})

	rec, reachedNext := runAuthenticated(t, g, req, model.RoleAdmin, model.RoleHeadAdmin)
	assert.True(t, reachedNext)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_MissingCredential(t *testing.T) {
	g, _ := newTestGate(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, reachedNext := runAuthenticated(t, g, req, model.RoleAdmin)
	assert.False(t, reachedNext)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestAuthenticate_RevokedSession(t *testing.T) {
	g, mock := newTestGate(t)
	raw, hash := signedToken(t, 42, model.RoleAdmin)
	mock.ExpectQuery("SELECT id, user_id, token_hash, is_active, expires_at, created_at FROM sessions WHERE token_hash=? LIMIT 1").
		WithArgs(hash).
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: raw})

	rec, reachedNext := runAuthenticated(t, g, req, model.RoleAdmin)
	assert.False(t, reachedNext)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_WrongRole(t *testing.T) {
	g, mock := newTestGate(t)
	raw, hash := signedToken(t, 42, model.RoleStudent)
	expectGateHit(mock, hash, 42, model.RoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: raw})

	rec, reachedNext := runAuthenticated(t, g, req, model.RoleAdmin, model.RoleHeadAdmin)
	assert.False(t, reachedNext)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}

func TestCurrentUser_AbsentWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, _ := newContext(req)
	_, ok := CurrentUser(c)
	assert.False(t, ok)
}
