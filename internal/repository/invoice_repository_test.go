package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvora/school-management-api/internal/model"
)

func TestInvoiceRepo_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInvoiceRepo(db)

	due := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO invoices (school_id, student_id, reference, amount_cents, status, due_date) VALUES (?,?,?,?,?,?)").
		WithArgs(uint64(3), uint64(9), sqlmock.AnyArg(), uint32(125000), model.InvoicePending, due).
		WillReturnResult(sqlmock.NewResult(21, 1))

	id, ref, err := repo.Create(context.Background(), 3, 9, 125000, due)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), id)

	_, err = uuid.Parse(ref)
	assert.NoError(t, err, "reference must be a uuid")
}

func TestInvoiceRepo_SetStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInvoiceRepo(db)

	mock.ExpectExec("UPDATE invoices SET status=?, updated_at=? WHERE id=? AND status=?").
		WithArgs(model.InvoicePaid, sqlmock.AnyArg(), uint64(21), model.InvoicePending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetStatus(context.Background(), 21, model.InvoicePaid))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepo_SetStatus_NotPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInvoiceRepo(db)

	// An invoice already paid or cancelled matches no rows; the state
	// machine refuses the transition.
	mock.ExpectExec("UPDATE invoices SET status=?, updated_at=? WHERE id=? AND status=?").
		WithArgs(model.InvoiceCancelled, sqlmock.AnyArg(), uint64(21), model.InvoicePending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), 21, model.InvoiceCancelled)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInvoiceRepo_ListByStudent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInvoiceRepo(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "school_id", "student_id", "reference", "amount_cents", "status", "due_date", "created_at", "updated_at"}).
		AddRow(2, 3, 9, uuid.NewString(), 50000, model.InvoicePending, now, now, now).
		AddRow(1, 3, 9, uuid.NewString(), 75000, model.InvoicePaid, now, now, now)

	mock.ExpectQuery("SELECT " + invoiceColumns + " FROM invoices WHERE student_id=? ORDER BY created_at DESC").
		WithArgs(uint64(9)).
		WillReturnRows(rows)

	invs, err := repo.ListByStudent(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, model.InvoicePending, invs[0].Status)
	assert.Equal(t, model.InvoicePaid, invs[1].Status)
}
