package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edvora/school-management-api/internal/auth"
	"github.com/edvora/school-management-api/internal/config"
	"github.com/edvora/school-management-api/internal/middleware"
	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/repository"
	"github.com/edvora/school-management-api/internal/utils"
)

// resetTokenTTL bounds how long a password reset link stays valid.
const resetTokenTTL = time.Hour

// loginPath is where failed refreshes land instead of an error page.
const loginPath = "/login"

// AuthHandler bundles dependencies for the session lifecycle endpoints:
// login, logout, refresh, password change and password reset.
type AuthHandler struct {
	Cfg         config.Config
	Gate        *auth.Gate
	Users       *repository.UserRepo
	Schools     *repository.SchoolRepo
	Sessions    *repository.SessionRepo
	ResetTokens *repository.ResetTokenRepo
}

func NewAuthHandler(cfg config.Config, g *auth.Gate, u *repository.UserRepo, s *repository.SchoolRepo, sess *repository.SessionRepo, rt *repository.ResetTokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Gate: g, Users: u, Schools: s, Sessions: sess, ResetTokens: rt}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
type forgotPasswordReq struct {
	Email string `json:"email"`
}
type resetPasswordReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type userPart struct {
	ID       uint64     `json:"id"`
	SchoolID *uint64    `json:"school_id,omitempty"`
	Email    string     `json:"email"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}
type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type loginResp struct {
	User  userPart  `json:"user"`
	Token tokenPart `json:"token"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, SchoolID: u.SchoolID, Email: u.Email, Username: u.Username, Role: u.Role}
}

// ----- cookie helpers -----

// setAuthCookie writes the raw token into the HTTP-only auth cookie:
// SameSite=Strict, path /, max-age matching the 24h token TTL, secure in
// production.
func setAuthCookie(c echo.Context, cfg config.Config, raw string) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(utils.AuthTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProd(),
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookie expires the auth cookie immediately.
func clearAuthCookie(c echo.Context, cfg config.Config) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.IsProd(),
		SameSite: http.SameSiteStrictMode,
	})
}

// issueSessionToken signs a fresh 24h token for the user and returns it
// along with its hash and expiry. The school slug claim is resolved here
// so tokens always carry the current slug.
func (h *AuthHandler) issueSessionToken(ctx context.Context, u model.User) (utils.AuthToken, string, error) {
	claims := utils.TokenClaims{
		UserID:   u.ID,
		Role:     u.Role,
		SchoolID: u.SchoolID,
		Email:    u.Email,
		Username: u.Username,
	}
	if u.SchoolID != nil {
		school, err := h.Schools.GetByID(ctx, *u.SchoolID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return utils.AuthToken{}, "", err
		}
		claims.SchoolSlug = school.Slug
	}
	tok, err := utils.NewAuthToken(h.Cfg.JWTSecret, claims, utils.AuthTokenTTL)
	if err != nil {
		return utils.AuthToken{}, "", err
	}
	return tok, utils.HashTokenRaw(tok.Raw), nil
}

// Login verifies credentials, issues a token, records the session and
// sets the auth cookie. Multiple concurrent sessions per user are
// allowed; each login creates its own row.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// Deactivated accounts fail exactly like wrong passwords.
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, hash, err := h.issueSessionToken(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	if err := h.Sessions.Store(ctx, u.ID, hash, tok.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save session failed"})
	}

	setAuthCookie(c, h.Cfg, tok.Raw)
	return c.JSON(http.StatusOK, loginResp{
		User:  toUserPart(u),
		Token: tokenPart{Token: tok.Raw, Expires: tok.Exp},
	})
}

// Logout revokes the request's session and clears the cookie. It must
// succeed even when the token is invalid or already revoked: the goal is
// clearing the client credential, and the server-side revoke is best
// effort on top.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := middleware.ExtractToken(c)
	if raw != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if session, err := h.Gate.LocateSession(ctx, raw); err == nil {
			_ = h.Sessions.RevokeByUserAndHash(ctx, session.UserID, session.TokenHash)
		}
	}
	clearAuthCookie(c, h.Cfg)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Refresh rotates the caller's session: a new token with the same
// identity claims and a fresh 24h expiry replaces the old hash on the
// SAME session row, so the pre-rotation token stops working and no
// second active row appears. Success redirects to the role's landing
// path; any failure redirects to the login page instead of erroring.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := middleware.ExtractToken(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Gate.Authenticate(ctx, raw)
	if err != nil {
		clearAuthCookie(c, h.Cfg)
		return c.Redirect(http.StatusFound, loginPath)
	}
	session, err := h.Gate.LocateSession(ctx, raw)
	if err != nil {
		clearAuthCookie(c, h.Cfg)
		return c.Redirect(http.StatusFound, loginPath)
	}

	tok, hash, err := h.issueSessionToken(ctx, u)
	if err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}
	if err := h.Sessions.Rotate(ctx, session.ID, hash, tok.Exp); err != nil {
		return c.Redirect(http.StatusFound, loginPath)
	}

	setAuthCookie(c, h.Cfg, tok.Raw)
	return c.Redirect(http.StatusFound, u.Role.LandingPath())
}

// Me returns the authenticated user (protected).
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// ChangePassword verifies the current password, writes the new hash and
// revokes every session of the user, forcing re-login on all devices
// (protected).
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.NewPassword) < utils.MinPasswordLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password incorrect"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := h.Sessions.RevokeAllForUser(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}

	clearAuthCookie(c, h.Cfg)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ForgotPassword issues a single-use reset token for the account. The
// response is identical whether or not the email exists, so the endpoint
// cannot be used to probe for accounts. Delivery of the token is the
// mail provider's job, outside this API.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if u, err := h.Users.GetByEmail(ctx, req.Email); err == nil && u.IsActive {
		if raw, err := utils.NewResetToken(); err == nil {
			_ = h.ResetTokens.Store(ctx, u.ID, utils.HashTokenRaw(raw),
				time.Now().UTC().Add(resetTokenTTL))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ResetPassword consumes a reset token, writes the new hash and revokes
// all sessions of the account.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	if len(req.NewPassword) < utils.MinPasswordLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.ResetTokens.Consume(ctx, utils.HashTokenRaw(strings.TrimSpace(req.Token)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	if err := h.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := h.Sessions.RevokeAllForUser(ctx, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
