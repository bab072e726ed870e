package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/edvora/school-management-api/internal/model"
)

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, errors.New("invalid id")
	}
	return n, nil
}

// sameSchool reports whether a user belongs to the given school. Handlers
// use it for tenant scoping; headadmin (nil SchoolID) never matches and
// is handled by explicit role checks instead.
func sameSchool(u model.User, schoolID uint64) bool {
	return u.SchoolID != nil && *u.SchoolID == schoolID
}
