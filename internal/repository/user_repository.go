package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/utils"
)

const userColumns = "id, school_id, email, username, password_hash, role, is_active, created_at, updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u        model.User
		schoolID sql.NullInt64
	)
	err := row.Scan(&u.ID, &schoolID, &u.Email, &u.Username, &u.PasswordHash,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if schoolID.Valid {
		id := uint64(schoolID.Int64)
		u.SchoolID = &id
	}
	return u, nil
}

// Create inserts a user and returns its ID. schoolID must be nil exactly
// when the role is headadmin.
func (r *UserRepo) Create(ctx context.Context, schoolID *uint64, email, username, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var sid interface{}
	if schoolID != nil {
		sid = *schoolID
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (school_id, email, username, password_hash, role) VALUES (?,?,?,?,?)",
		sid, email, username, hash, string(role))
	if err != nil {
		// MySQL 1062 = duplicate key (unique email)
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// ListBySchool returns the users of one school ordered by username.
func (r *UserRepo) ListBySchool(ctx context.Context, schoolID uint64) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE school_id=? ORDER BY username", schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var (
			u   model.User
			sid sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &sid, &u.Email, &u.Username, &u.PasswordHash,
			&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if sid.Valid {
			id := uint64(sid.Int64)
			u.SchoolID = &id
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdatePassword writes a new bcrypt hash for a user.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID uint64, newHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?",
		newHash, time.Now().UTC(), userID)
	return err
}

// SetActive flips the account's is_active flag. Callers revoke the
// user's sessions alongside a deactivation.
func (r *UserRepo) SetActive(ctx context.Context, userID uint64, active bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=?, updated_at=? WHERE id=?",
		active, time.Now().UTC(), userID)
	return err
}

// CountActiveAdmins returns how many active admin accounts a school has.
// The deletion guard refuses to remove the last one.
func (r *UserRepo) CountActiveAdmins(ctx context.Context, schoolID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE school_id=? AND role=? AND is_active=1",
		schoolID, string(model.RoleAdmin)).Scan(&n)
	return n, err
}

// Delete removes a user row. The store cascades to dependent rows where
// the schema allows it; a refused cascade surfaces as ErrConflict.
func (r *UserRepo) Delete(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", userID)
	if err != nil {
		// MySQL 1451 = row is still referenced by a foreign key
		if strings.Contains(strings.ToLower(err.Error()), "1451") {
			return ErrConflict
		}
		return err
	}
	return nil
}
