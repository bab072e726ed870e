package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edvora/school-management-api/internal/config"
	"github.com/edvora/school-management-api/internal/middleware"
	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/repository"
	"github.com/edvora/school-management-api/internal/utils"
)

// UserHandler implements the admin-facing account operations: listing,
// creation, deactivation and guarded deletion. Tenant scope is enforced
// here, not in the auth gate: an admin only ever touches accounts of
// their own school, and a foreign account looks like a 404.
type UserHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
}

func NewUserHandler(cfg config.Config, u *repository.UserRepo, s *repository.SessionRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: u, Sessions: s}
}

type createUserReq struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	SchoolID *uint64 `json:"school_id,omitempty"` // headadmin only; admins create within their school
}

// List returns the users of one school. Admins see their own school;
// headadmin picks one via ?school_id.
func (h *UserHandler) List(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	var schoolID uint64
	switch {
	case actor.Role == model.RoleHeadAdmin:
		n, err := strconv.ParseUint(c.QueryParam("school_id"), 10, 64)
		if err != nil || n == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "school_id required"})
		}
		schoolID = n
	case actor.SchoolID != nil:
		schoolID = *actor.SchoolID
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.ListBySchool(ctx, schoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, toUserPart(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// Create adds an account. Admins create non-headadmin accounts inside
// their own school; headadmin can create accounts anywhere, including
// other headadmins (which carry no school).
func (h *UserHandler) Create(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/username required"})
	}
	if len(req.Password) < utils.MinPasswordLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}

	var schoolID *uint64
	switch actor.Role {
	case model.RoleHeadAdmin:
		if role != model.RoleHeadAdmin {
			if req.SchoolID == nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "school_id required"})
			}
			schoolID = req.SchoolID
		}
	default: // admin
		if role == model.RoleHeadAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		schoolID = actor.SchoolID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Users.Create(ctx, schoolID, req.Email, req.Username, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// loadScopedTarget fetches the target account and applies tenant scope:
// an account outside the actor's school is reported as not found, per
// the error taxonomy.
func (h *UserHandler) loadScopedTarget(ctx context.Context, c echo.Context, actor model.User) (model.User, bool) {
	id, err := paramID(c, "id")
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		return model.User{}, false
	}
	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return model.User{}, false
	}
	if actor.Role != model.RoleHeadAdmin {
		if target.SchoolID == nil || actor.SchoolID == nil || *target.SchoolID != *actor.SchoolID {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
			return model.User{}, false
		}
	}
	return target, true
}

// Deactivate flips an account inactive and revokes all of its sessions,
// so every outstanding token stops authenticating immediately. Actors
// cannot deactivate themselves.
func (h *UserHandler) Deactivate(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, ok := h.loadScopedTarget(ctx, c, actor)
	if !ok {
		return nil
	}
	if target.ID == actor.ID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot deactivate own account"})
	}

	if err := h.Users.SetActive(ctx, target.ID, false); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := h.Sessions.RevokeAllForUser(ctx, target.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Delete removes an account. Guards: no self-deletion; the last active
// admin of a school can only be deleted by headadmin; a cascade the
// store refuses surfaces as a conflict.
func (h *UserHandler) Delete(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	target, ok := h.loadScopedTarget(ctx, c, actor)
	if !ok {
		return nil
	}
	if target.ID == actor.ID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete own account"})
	}

	if target.Role == model.RoleAdmin && target.IsActive && target.SchoolID != nil &&
		actor.Role != model.RoleHeadAdmin {
		n, err := h.Users.CountActiveAdmins(ctx, *target.SchoolID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if n <= 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete the last active admin"})
		}
	}

	if err := h.Sessions.RevokeAllForUser(ctx, target.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	if err := h.Users.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "user still has dependent records"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
