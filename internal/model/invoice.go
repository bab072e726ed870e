package model

import "time"

// Invoice statuses. PENDING is the only state that accepts a payment or
// a cancellation; both PAID and CANCELLED are terminal.
const (
	InvoicePending   = "PENDING"
	InvoicePaid      = "PAID"
	InvoiceCancelled = "CANCELLED"
)

// Invoice mirrors the 'invoices' table. Reference is a UUID handed to
// the payer; amounts are stored in cents to avoid float drift.
type Invoice struct {
	ID          uint64    // invoices.id
	SchoolID    uint64    // invoices.school_id
	StudentID   uint64    // invoices.student_id
	Reference   string    // invoices.reference (uuid)
	AmountCents uint32    // invoices.amount_cents
	Status      string    // invoices.status
	DueDate     time.Time // invoices.due_date
	CreatedAt   time.Time // invoices.created_at
	UpdatedAt   time.Time // invoices.updated_at
}
