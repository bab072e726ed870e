package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/edvora/school-management-api/internal/model"
)

type SchoolRepo struct{ DB *sql.DB }

func NewSchoolRepo(db *sql.DB) *SchoolRepo { return &SchoolRepo{DB: db} }

// Create inserts a school and returns its ID. Slugs are unique.
func (r *SchoolRepo) Create(ctx context.Context, name, slug string) (uint64, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO schools (name, slug) VALUES (?,?)", name, slug)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrSlugExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a school by id.
func (r *SchoolRepo) GetByID(ctx context.Context, id uint64) (model.School, error) {
	var s model.School
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, slug, created_at, updated_at FROM schools WHERE id=? LIMIT 1",
		id).Scan(&s.ID, &s.Name, &s.Slug, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// List returns all schools ordered by name.
func (r *SchoolRepo) List(ctx context.Context) ([]model.School, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, name, slug, created_at, updated_at FROM schools ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		var s model.School
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		schools = append(schools, s)
	}
	return schools, rows.Err()
}

// Rename updates a school's display name. The slug is immutable because
// it is embedded in issued tokens.
func (r *SchoolRepo) Rename(ctx context.Context, id uint64, name string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE schools SET name=?, updated_at=? WHERE id=?", name, time.Now().UTC(), id)
	return err
}
