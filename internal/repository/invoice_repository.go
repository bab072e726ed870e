package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/edvora/school-management-api/internal/model"
)

const invoiceColumns = "id, school_id, student_id, reference, amount_cents, status, due_date, created_at, updated_at"

type InvoiceRepo struct{ DB *sql.DB }

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{DB: db} }

// Create inserts a PENDING invoice and returns its id and reference. The
// reference is the value handed to payers and payment providers.
func (r *InvoiceRepo) Create(ctx context.Context, schoolID, studentID uint64, amountCents uint32, dueDate time.Time) (uint64, string, error) {
	ref := uuid.NewString()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO invoices (school_id, student_id, reference, amount_cents, status, due_date) VALUES (?,?,?,?,?,?)",
		schoolID, studentID, ref, amountCents, model.InvoicePending, dueDate)
	if err != nil {
		return 0, "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}
	return uint64(id), ref, nil
}

func scanInvoice(row *sql.Row) (model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.SchoolID, &inv.StudentID, &inv.Reference,
		&inv.AmountCents, &inv.Status, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

// GetByID fetches an invoice by id.
func (r *InvoiceRepo) GetByID(ctx context.Context, id uint64) (model.Invoice, error) {
	return scanInvoice(r.DB.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id=? LIMIT 1", id))
}

// ListBySchool returns every invoice of a school, newest first.
func (r *InvoiceRepo) ListBySchool(ctx context.Context, schoolID uint64) ([]model.Invoice, error) {
	return r.list(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE school_id=? ORDER BY created_at DESC", schoolID)
}

// ListByStudent returns one student's invoices, newest first.
func (r *InvoiceRepo) ListByStudent(ctx context.Context, studentID uint64) ([]model.Invoice, error) {
	return r.list(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE student_id=? ORDER BY created_at DESC", studentID)
}

func (r *InvoiceRepo) list(ctx context.Context, query string, arg interface{}) ([]model.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.SchoolID, &inv.StudentID, &inv.Reference,
			&inv.AmountCents, &inv.Status, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// SetStatus moves a PENDING invoice to PAID or CANCELLED. The WHERE
// clause enforces the state machine: a non-pending invoice matches no
// rows and the caller gets ErrConflict.
func (r *InvoiceRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE invoices SET status=?, updated_at=? WHERE id=? AND status=?",
		status, time.Now().UTC(), id, model.InvoicePending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
