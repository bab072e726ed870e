// Package router wires HTTP routes to handlers. Each protected group
// declares its allowed-role set once; the auth middleware evaluates it
// so no handler re-implements role checks.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/edvora/school-management-api/internal/auth"
	"github.com/edvora/school-management-api/internal/config"
	"github.com/edvora/school-management-api/internal/handler"
	"github.com/edvora/school-management-api/internal/middleware"
	"github.com/edvora/school-management-api/internal/model"
)

// Handlers carries every handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Schools       *handler.SchoolHandler
	Messages      *handler.MessageHandler
	Notifications *handler.NotificationHandler
	Invoices      *handler.InvoiceHandler
}

var anyRole = []model.Role{
	model.RoleHeadAdmin, model.RoleAdmin, model.RoleTeacher,
	model.RoleClassTeacher, model.RoleStudent,
}

// Register mounts all routes on the Echo instance. The rate limiter
// wraps the credential endpoints; rdb may be nil, which disables it.
func Register(e *echo.Echo, g *auth.Gate, h Handlers, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Credential endpoints: no session required, rate limited.
	authGroup := e.Group("/v1/auth", middleware.NewTokenBucket(rlCfg, rdb))
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/logout", h.Auth.Logout)
	authGroup.GET("/refresh", h.Auth.Refresh)
	authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
	authGroup.POST("/reset-password", h.Auth.ResetPassword)

	// Any authenticated role.
	me := e.Group("/v1", middleware.Authenticate(g, anyRole...))
	me.GET("/me", h.Auth.Me)
	me.POST("/auth/password", h.Auth.ChangePassword)
	me.GET("/notifications", h.Notifications.List)
	me.PATCH("/notifications/:id/read", h.Notifications.MarkRead)

	// Messaging: school members only (headadmin has no tenant scope).
	msgs := e.Group("/v1/messages", middleware.Authenticate(g,
		model.RoleAdmin, model.RoleTeacher, model.RoleClassTeacher, model.RoleStudent))
	msgs.POST("", h.Messages.Send)
	msgs.GET("", h.Messages.Inbox)
	msgs.PATCH("/:id/read", h.Messages.MarkRead)

	// Account administration.
	users := e.Group("/v1/users", middleware.Authenticate(g,
		model.RoleHeadAdmin, model.RoleAdmin))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.PATCH("/:id/deactivate", h.Users.Deactivate)
	users.DELETE("/:id", h.Users.Delete)

	// Tenants. Creation/listing is headadmin-only; a school's own admin
	// may read and rename it.
	schoolsRW := e.Group("/v1/schools", middleware.Authenticate(g, model.RoleHeadAdmin))
	schoolsRW.POST("", h.Schools.Create)
	schoolsRW.GET("", h.Schools.List)
	schoolRO := e.Group("/v1/schools/:id", middleware.Authenticate(g,
		model.RoleHeadAdmin, model.RoleAdmin))
	schoolRO.GET("", h.Schools.Get)
	schoolRO.PATCH("", h.Schools.Rename)

	// Invoicing.
	invAdmin := e.Group("/v1/invoices", middleware.Authenticate(g,
		model.RoleAdmin, model.RoleStudent))
	invAdmin.GET("", h.Invoices.List)
	invAdmin.POST("/:id/pay", h.Invoices.Pay)
	invoiceIssue := e.Group("/v1/invoices", middleware.Authenticate(g, model.RoleAdmin))
	invoiceIssue.POST("", h.Invoices.Create)
	invoiceIssue.POST("/:id/cancel", h.Invoices.Cancel)
}
