package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edvora/school-management-api/internal/middleware"
	"github.com/edvora/school-management-api/internal/model"
	"github.com/edvora/school-management-api/internal/queue"
	"github.com/edvora/school-management-api/internal/repository"
	notifier "github.com/edvora/school-management-api/internal/service"
)

// InvoiceHandler implements school fee invoicing. Admins issue and
// cancel within their school; students see and pay their own. Payment
// provider integration sits behind the PENDING->PAID transition and is
// out of scope here.
type InvoiceHandler struct {
	Users         *repository.UserRepo
	Invoices      *repository.InvoiceRepo
	Notifications *repository.NotificationRepo
}

func NewInvoiceHandler(u *repository.UserRepo, i *repository.InvoiceRepo, n *repository.NotificationRepo) *InvoiceHandler {
	return &InvoiceHandler{Users: u, Invoices: i, Notifications: n}
}

type createInvoiceReq struct {
	StudentID   uint64 `json:"student_id"`
	AmountCents uint32 `json:"amount_cents"`
	DueDate     string `json:"due_date"` // YYYY-MM-DD
}

type invoicePart struct {
	ID          uint64    `json:"id"`
	StudentID   uint64    `json:"student_id"`
	Reference   string    `json:"reference"`
	AmountCents uint32    `json:"amount_cents"`
	Status      string    `json:"status"`
	DueDate     time.Time `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
}

func toInvoicePart(inv model.Invoice) invoicePart {
	return invoicePart{
		ID: inv.ID, StudentID: inv.StudentID, Reference: inv.Reference,
		AmountCents: inv.AmountCents, Status: inv.Status,
		DueDate: inv.DueDate, CreatedAt: inv.CreatedAt,
	}
}

// Create issues a PENDING invoice to a student of the admin's school and
// notifies the student.
func (h *InvoiceHandler) Create(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)
	if actor.SchoolID == nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req createInvoiceReq
	if err := c.Bind(&req); err != nil || req.StudentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "student_id required"})
	}
	if req.AmountCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be positive"})
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "due_date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	student, err := h.Users.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if student.Role != model.RoleStudent || !sameSchool(student, *actor.SchoolID) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
	}

	id, ref, err := h.Invoices.Create(ctx, *actor.SchoolID, student.ID, req.AmountCents, dueDate)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create invoice failed"})
	}

	title := "New invoice " + ref
	if nid, err := h.Notifications.Create(ctx, *actor.SchoolID, student.ID, title, "An invoice has been issued to you"); err == nil {
		_ = notifier.PublishNotificationCreated(ctx, queue.NotificationCreatedEvent{
			NotificationID: nid,
			SchoolID:       *actor.SchoolID,
			UserID:         student.ID,
			Kind:           "invoice",
			Title:          title,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusCreated, echo.Map{"id": id, "reference": ref})
}

// List returns invoices in the caller's scope: the whole school for
// admins, their own for students.
func (h *InvoiceHandler) List(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var (
		invs []model.Invoice
		err  error
	)
	switch actor.Role {
	case model.RoleStudent:
		invs, err = h.Invoices.ListByStudent(ctx, actor.ID)
	default: // admin
		if actor.SchoolID == nil {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		invs, err = h.Invoices.ListBySchool(ctx, *actor.SchoolID)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	out := make([]invoicePart, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvoicePart(inv))
	}
	return c.JSON(http.StatusOK, echo.Map{"invoices": out})
}

// loadScopedInvoice applies tenant scope: students only reach their own
// invoices, admins only their school's; anything else is a 404.
func (h *InvoiceHandler) loadScopedInvoice(ctx context.Context, c echo.Context, actor model.User) (model.Invoice, bool) {
	id, err := paramID(c, "id")
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		return model.Invoice{}, false
	}
	inv, err := h.Invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return model.Invoice{}, false
	}
	inScope := false
	switch actor.Role {
	case model.RoleStudent:
		inScope = inv.StudentID == actor.ID
	default:
		inScope = actor.SchoolID != nil && inv.SchoolID == *actor.SchoolID
	}
	if !inScope {
		_ = c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		return model.Invoice{}, false
	}
	return inv, true
}

// Pay settles one of the caller's PENDING invoices. Paying an invoice
// that is already paid or cancelled is a conflict.
func (h *InvoiceHandler) Pay(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, ok := h.loadScopedInvoice(ctx, c, actor)
	if !ok {
		return nil
	}
	if err := h.Invoices.SetStatus(ctx, inv.ID, model.InvoicePaid); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice is not payable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Cancel voids a PENDING invoice of the admin's school.
func (h *InvoiceHandler) Cancel(c echo.Context) error {
	actor, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, ok := h.loadScopedInvoice(ctx, c, actor)
	if !ok {
		return nil
	}
	if err := h.Invoices.SetStatus(ctx, inv.ID, model.InvoiceCancelled); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice is not cancellable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
