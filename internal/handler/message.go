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
	"github.com/edvora/school-management-api/internal/queue"
	"github.com/edvora/school-management-api/internal/repository"
	notifier "github.com/edvora/school-management-api/internal/service"
)

// MessageHandler implements direct messaging between members of the
// same school. The auth middleware has already authenticated and
// role-checked the caller; this layer adds tenant scoping and delegates
// to storage.
type MessageHandler struct {
	Users         *repository.UserRepo
	Messages      *repository.MessageRepo
	Notifications *repository.NotificationRepo
}

func NewMessageHandler(u *repository.UserRepo, m *repository.MessageRepo, n *repository.NotificationRepo) *MessageHandler {
	return &MessageHandler{Users: u, Messages: m, Notifications: n}
}

type sendMessageReq struct {
	RecipientID uint64 `json:"recipient_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

type messagePart struct {
	ID          uint64     `json:"id"`
	SenderID    uint64     `json:"sender_id"`
	RecipientID uint64     `json:"recipient_id"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Send delivers a message to another member of the sender's school. A
// recipient outside that school is indistinguishable from a missing one.
// The recipient also gets a notification row and a best-effort broker
// event.
func (h *MessageHandler) Send(c echo.Context) error {
	sender, _ := middleware.CurrentUser(c)
	if sender.SchoolID == nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req sendMessageReq
	if err := c.Bind(&req); err != nil || req.RecipientID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "recipient_id required"})
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" || strings.TrimSpace(req.Body) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subject/body required"})
	}
	if req.RecipientID == sender.ID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot message yourself"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recipient, err := h.Users.GetByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "recipient not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !sameSchool(recipient, *sender.SchoolID) || !recipient.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recipient not found"})
	}

	id, err := h.Messages.Create(ctx, *sender.SchoolID, sender.ID, recipient.ID, req.Subject, req.Body)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "send failed"})
	}

	title := "New message from " + sender.Username
	if nid, err := h.Notifications.Create(ctx, *sender.SchoolID, recipient.ID, title, req.Subject); err == nil {
		_ = notifier.PublishNotificationCreated(ctx, queue.NotificationCreatedEvent{
			NotificationID: nid,
			SchoolID:       *sender.SchoolID,
			UserID:         recipient.ID,
			Kind:           "message",
			Title:          title,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Inbox lists the caller's received messages, newest first.
func (h *MessageHandler) Inbox(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	msgs, err := h.Messages.Inbox(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]messagePart, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messagePart{
			ID: m.ID, SenderID: m.SenderID, RecipientID: m.RecipientID,
			Subject: m.Subject, Body: m.Body, ReadAt: m.ReadAt, CreatedAt: m.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": out})
}

// MarkRead stamps one of the caller's received messages as read.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	u, _ := middleware.CurrentUser(c)

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Messages.MarkRead(ctx, id, u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
