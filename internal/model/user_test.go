package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"headadmin", RoleHeadAdmin, true},
		{"admin", RoleAdmin, true},
		{"teacher", RoleTeacher, true},
		{"classteacher", RoleClassTeacher, true},
		{"student", RoleStudent, true},
		{"ADMIN", "", false},
		{"superuser", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseRole(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseRole(%q)", tt.in)
	}
}

func TestLandingPath(t *testing.T) {
	assert.Equal(t, "/protected/headadmin", RoleHeadAdmin.LandingPath())
	assert.Equal(t, "/protected/admin", RoleAdmin.LandingPath())
	assert.Equal(t, "/protected/teachers", RoleTeacher.LandingPath())
	assert.Equal(t, "/protected/teachers", RoleClassTeacher.LandingPath())
	assert.Equal(t, "/protected/students", RoleStudent.LandingPath())
	assert.Equal(t, "/login", Role("unknown").LandingPath())
}

func TestIsTeaching(t *testing.T) {
	assert.True(t, RoleTeacher.IsTeaching())
	assert.True(t, RoleClassTeacher.IsTeaching())
	assert.False(t, RoleAdmin.IsTeaching())
	assert.False(t, RoleStudent.IsTeaching())
}
