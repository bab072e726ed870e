package model

import "time"

// Role is the closed set of account roles. Authorization is a flat
// set-membership check per route; no role inherits another.
type Role string

const (
	RoleHeadAdmin    Role = "headadmin"
	RoleAdmin        Role = "admin"
	RoleTeacher      Role = "teacher"
	RoleClassTeacher Role = "classteacher" // teacher sub-role, same landing path
	RoleStudent      Role = "student"
)

// ParseRole maps a stored string onto the closed enumeration. Unknown
// values are rejected so a tampered or stale role claim never passes a
// role check by accident.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleHeadAdmin, RoleAdmin, RoleTeacher, RoleClassTeacher, RoleStudent:
		return Role(s), true
	}
	return "", false
}

// IsTeaching reports whether the role is teacher or one of its sub-roles.
func (r Role) IsTeaching() bool {
	return r == RoleTeacher || r == RoleClassTeacher
}

// LandingPath returns the role's post-refresh redirect target.
func (r Role) LandingPath() string {
	switch r {
	case RoleHeadAdmin:
		return "/protected/headadmin"
	case RoleAdmin:
		return "/protected/admin"
	case RoleTeacher, RoleClassTeacher:
		return "/protected/teachers"
	case RoleStudent:
		return "/protected/students"
	}
	return "/login"
}

// User mirrors the 'users' table. SchoolID is nil only for headadmin
// accounts, which operate across tenants.
type User struct {
	ID           uint64    // users.id
	SchoolID     *uint64   // users.school_id (NULL for headadmin)
	Email        string    // users.email
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// School mirrors the 'schools' table. The slug appears in token claims
// and public URLs.
type School struct {
	ID        uint64    // schools.id
	Name      string    // schools.name
	Slug      string    // schools.slug
	CreatedAt time.Time // schools.created_at
	UpdatedAt time.Time // schools.updated_at
}
