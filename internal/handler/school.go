package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edvora/school-management-api/internal/middleware"
	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/repository"
)

// SchoolHandler manages tenants. Creation and listing are headadmin
// operations; reading and renaming are additionally open to the
// school's own admins.
type SchoolHandler struct {
	Schools *repository.SchoolRepo
}

func NewSchoolHandler(s *repository.SchoolRepo) *SchoolHandler {
	return &SchoolHandler{Schools: s}
}

type createSchoolReq struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}
type renameSchoolReq struct {
	Name string `json:"name"`
}

type schoolPart struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Create registers a new school (headadmin).
func (h *SchoolHandler) Create(c echo.Context) error {
	var req createSchoolReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" || req.Slug == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/slug required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Schools.Create(ctx, req.Name, req.Slug)
	if err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slug already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create school failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// List returns all schools (headadmin).
func (h *SchoolHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	schools, err := h.Schools.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]schoolPart, 0, len(schools))
	for _, s := range schools {
		out = append(out, schoolPart{ID: s.ID, Name: s.Name, Slug: s.Slug})
	}
	return c.JSON(http.StatusOK, echo.Map{"schools": out})
}

// Get returns one school. Admins can only read their own.
func (h *SchoolHandler) Get(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if actor.Role != model.RoleHeadAdmin && !sameSchool(actor, id) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "school not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Schools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "school not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, schoolPart{ID: s.ID, Name: s.Name, Slug: s.Slug})
}

// Rename updates the display name. The slug never changes because
// issued tokens embed it.
func (h *SchoolHandler) Rename(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if actor.Role != model.RoleHeadAdmin && !sameSchool(actor, id) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "school not found"})
	}

	var req renameSchoolReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Schools.Rename(ctx, id, strings.TrimSpace(req.Name)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
