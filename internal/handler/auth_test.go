package handler

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvora/school-management-api/internal/auth"
	"github.com/edvora/school-management-api/internal/config"
	"github.com/edvora/school-management-api/internal/middleware"
	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/repository"
	"github.com/edvora/school-management-api/internal/utils"
)

const (
	testSecret       = "handler-test-secret"
	testPassword     = "longenough"
	sessionByHashSQL = "SELECT id, user_id, token_hash, is_active, expires_at, created_at FROM sessions WHERE token_hash=? LIMIT 1"
	userByEmailSQL   = "SELECT id, school_id, email, username, password_hash, role, is_active, created_at, updated_at FROM users WHERE email=? LIMIT 1"
	userByIDSQL      = "SELECT id, school_id, email, username, password_hash, role, is_active, created_at, updated_at FROM users WHERE id=? LIMIT 1"
)

func testConfig() config.Config {
	return config.Config{Env: "development", JWTSecret: testSecret, BcryptCost: 4}
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewUserRepo(db)
	schools := repository.NewSchoolRepo(db)
	sessions := repository.NewSessionRepo(db)
	resetTokens := repository.NewResetTokenRepo(db)
	gate := auth.NewGate(users, sessions, testSecret)
	return NewAuthHandler(testConfig(), gate, users, schools, sessions, resetTokens), mock
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func newEchoContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func authCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.AuthCookieName {
			return ck
		}
	}
	t.Fatal("auth cookie not set")
	return nil
}

// bcryptOf hashes the test password once per call; cost 4 keeps this
// fast enough for unit tests.
func bcryptOf(t *testing.T, password string) string {
	t.Helper()
	h, err := utils.HashPassword(password, 4)
	require.NoError(t, err)
	return h
}

func headAdminRow(hash string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "school_id", "email", "username", "password_hash", "role", "is_active", "created_at", "updated_at"}).
		AddRow(1, nil, "head@example.com", "head", hash, "headadmin", true, now, now)
}

func TestLogin_Success(t *testing.T) {
	h, mock := newAuthHandler(t)
	pwHash := bcryptOf(t, testPassword)

	mock.ExpectQuery(userByEmailSQL).WithArgs("head@example.com").WillReturnRows(headAdminRow(pwHash))
	mock.ExpectExec("INSERT INTO sessions (user_id, token_hash, is_active, expires_at) VALUES (?,?,1,?)").
		WithArgs(uint64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/login",
		`{"email":" Head@Example.com ","password":"`+testPassword+`"}`))
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
	assert.Contains(t, rec.Body.String(), `"head@example.com"`)

	ck := authCookie(t, rec)
	assert.NotEmpty(t, ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, int(utils.AuthTokenTTL.Seconds()), ck.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.False(t, ck.Secure, "secure flag stays off outside production")

	// The cookie value must verify against the same secret and carry the
	// account's identity.
	claims, err := utils.ParseAuthToken(testSecret, ck.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), claims.UserID)
	assert.Equal(t, model.RoleHeadAdmin, claims.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	h, mock := newAuthHandler(t)
	pwHash := bcryptOf(t, testPassword)

	mock.ExpectQuery(userByEmailSQL).WithArgs("head@example.com").WillReturnRows(headAdminRow(pwHash))

	c, rec := newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/login",
		`{"email":"head@example.com","password":"wrong-password"}`))
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
}

func TestLogin_UnknownEmail(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectQuery(userByEmailSQL).WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)

	c, rec := newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/login",
		`{"email":"nobody@example.com","password":"whatever123"}`))
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
}

func TestLogin_DeactivatedAccountLooksLikeBadPassword(t *testing.T) {
	h, mock := newAuthHandler(t)
	pwHash := bcryptOf(t, testPassword)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "school_id", "email", "username", "password_hash", "role", "is_active", "created_at", "updated_at"}).
		AddRow(1, nil, "head@example.com", "head", pwHash, "headadmin", false, now, now)
	mock.ExpectQuery(userByEmailSQL).WithArgs("head@example.com").WillReturnRows(rows)

	c, rec := newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/login",
		`{"email":"head@example.com","password":"`+testPassword+`"}`))
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
}

func TestLogin_MissingFields(t *testing.T) {
	h, _ := newAuthHandler(t)

	c, rec := newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/login", `{"email":"","password":""}`))
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	h, mock := newAuthHandler(t)

	// Garbage token: the session lookup misses, the response is still OK
	// and the cookie is cleared.
	mock.ExpectQuery(sessionByHashSQL).
		WithArgs(utils.HashTokenRaw("garbage")).
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: "garbage"})
	c, rec := newEchoContext(req)
	require.NoError(t, h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	ck := authCookie(t, rec)
	assert.Empty(t, ck.Value)
	assert.Equal(t, -1, ck.MaxAge)
}

func TestLogout_RevokesActiveSession(t *testing.T) {
	h, mock := newAuthHandler(t)

	hash := utils.HashTokenRaw("some-live-token")
	now := time.Now().UTC()
	mock.ExpectQuery(sessionByHashSQL).WithArgs(hash).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "token_hash", "is_active", "expires_at", "created_at"}).
			AddRow(5, 1, hash, true, now.Add(time.Hour), now))
	mock.ExpectExec("UPDATE sessions SET is_active=0 WHERE user_id=? AND token_hash=? AND is_active=1").
		WithArgs(uint64(1), hash).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: "some-live-token"})
	c, rec := newEchoContext(req)
	require.NoError(t, h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_RotatesAndRedirects(t *testing.T) {
	h, mock := newAuthHandler(t)

	tok, err := utils.NewAuthToken(testSecret, utils.TokenClaims{
		UserID: 1, Role: model.RoleHeadAdmin, Email: "head@example.com", Username: "head",
	}, utils.AuthTokenTTL)
	require.NoError(t, err)
	hash := utils.HashTokenRaw(tok.Raw)
	now := time.Now().UTC()

	sessionRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "user_id", "token_hash", "is_active", "expires_at", "created_at"}).
			AddRow(5, 1, hash, true, now.Add(time.Hour), now)
	}
	// Authenticate looks up the session and the user, then the rotation
	// locates the row again before swapping its hash in place.
	mock.ExpectQuery(sessionByHashSQL).WithArgs(hash).WillReturnRows(sessionRows())
	mock.ExpectQuery(userByIDSQL).WithArgs(uint64(1)).WillReturnRows(headAdminRow("$2a$04$hash"))
	mock.ExpectQuery(sessionByHashSQL).WithArgs(hash).WillReturnRows(sessionRows())
	mock.ExpectExec("UPDATE sessions SET token_hash=?, expires_at=? WHERE id=? AND is_active=1").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: tok.Raw})
	c, rec := newEchoContext(req)
	require.NoError(t, h.Refresh(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/protected/headadmin", rec.Header().Get(echo.HeaderLocation))

	ck := authCookie(t, rec)
	assert.NotEmpty(t, ck.Value)
	assert.NotEqual(t, tok.Raw, ck.Value, "refresh must issue a new token")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_FailureRedirectsToLogin(t *testing.T) {
	h, mock := newAuthHandler(t)

	tok, err := utils.NewAuthToken(testSecret, utils.TokenClaims{
		UserID: 1, Role: model.RoleHeadAdmin, Email: "head@example.com", Username: "head",
	}, utils.AuthTokenTTL)
	require.NoError(t, err)

	// Session already revoked: refresh clears the cookie and bounces to
	// the login page instead of returning an error status.
	mock.ExpectQuery(sessionByHashSQL).
		WithArgs(utils.HashTokenRaw(tok.Raw)).
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: tok.Raw})
	c, rec := newEchoContext(req)
	require.NoError(t, h.Refresh(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, loginPath, rec.Header().Get(echo.HeaderLocation))
	ck := authCookie(t, rec)
	assert.Empty(t, ck.Value)
}

func TestRefresh_NoTokenRedirectsToLogin(t *testing.T) {
	h, _ := newAuthHandler(t)

	c, rec := newEchoContext(httptest.NewRequest(http.MethodGet, "/v1/auth/refresh", nil))
	require.NoError(t, h.Refresh(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, loginPath, rec.Header().Get(echo.HeaderLocation))
}

func TestMe(t *testing.T) {
	h, _ := newAuthHandler(t)

	c, rec := newEchoContext(httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	c.Set("user", model.User{ID: 7, Email: "a@example.com", Username: "a", Role: model.RoleAdmin})
	require.NoError(t, h.Me(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"a@example.com"`)
	assert.NotContains(t, rec.Body.String(), "password", "hashes never leave the API")
}

func TestChangePassword_RevokesEverySession(t *testing.T) {
	h, mock := newAuthHandler(t)
	pwHash := bcryptOf(t, testPassword)

	mock.ExpectExec("UPDATE users SET password_hash=?, updated_at=? WHERE id=?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE sessions SET is_active=0 WHERE user_id=? AND is_active=1").
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	c, rec := newEchoContext(jsonRequest(http.MethodPut, "/v1/auth/password",
		`{"current_password":"`+testPassword+`","new_password":"brand-new-pass"}`))
	c.Set("user", model.User{ID: 7, PasswordHash: pwHash, Role: model.RoleTeacher, IsActive: true})
	require.NoError(t, h.ChangePassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	ck := authCookie(t, rec)
	assert.Empty(t, ck.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	h, _ := newAuthHandler(t)
	pwHash := bcryptOf(t, testPassword)

	c, rec := newEchoContext(jsonRequest(http.MethodPut, "/v1/auth/password",
		`{"current_password":"not-it","new_password":"brand-new-pass"}`))
	c.Set("user", model.User{ID: 7, PasswordHash: pwHash, Role: model.RoleTeacher, IsActive: true})
	require.NoError(t, h.ChangePassword(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword_TooShort(t *testing.T) {
	h, _ := newAuthHandler(t)

	c, rec := newEchoContext(jsonRequest(http.MethodPut, "/v1/auth/password",
		`{"current_password":"`+testPassword+`","new_password":"short"}`))
	c.Set("user", model.User{ID: 7, Role: model.RoleTeacher, IsActive: true})
	require.NoError(t, h.ChangePassword(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForgotPassword_UniformResponse(t *testing.T) {
	h, mock := newAuthHandler(t)

	// Unknown address: no token row, same body.
	mock.ExpectQuery(userByEmailSQL).WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)

	c, rec := newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/forgot-password",
		`{"email":"nobody@example.com"}`))
	require.NoError(t, h.ForgotPassword(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	// Known active address: a hashed token is stored, body identical.
	mock.ExpectQuery(userByEmailSQL).WithArgs("head@example.com").WillReturnRows(headAdminRow("$2a$04$hash"))
	mock.ExpectExec("INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)").
		WithArgs(uint64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec = newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/forgot-password",
		`{"email":"head@example.com"}`))
	require.NoError(t, h.ForgotPassword(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword_InvalidToken(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectQuery("SELECT user_id, expires_at, used_at FROM password_reset_tokens WHERE token_hash=? LIMIT 1").
		WithArgs(utils.HashTokenRaw("bogus")).
		WillReturnError(sql.ErrNoRows)

	c, rec := newEchoContext(jsonRequest(http.MethodPost, "/v1/auth/reset-password",
		`{"token":"bogus","new_password":"brand-new-pass"}`))
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid or expired token"}`, rec.Body.String())
}
