package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/edvora/school-management-api/internal/auth"
	"github.com/edvora/school-management-api/internal/config"
	"github.com/edvora/school-management-api/internal/database"
	"github.com/edvora/school-management-api/internal/handler"
	"github.com/edvora/school-management-api/internal/maintenance"
	"github.com/edvora/school-management-api/internal/queue"
	"github.com/edvora/school-management-api/internal/repository"
	"github.com/edvora/school-management-api/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	schools := repository.NewSchoolRepo(db)
	sessions := repository.NewSessionRepo(db)
	resetTokens := repository.NewResetTokenRepo(db)
	messages := repository.NewMessageRepo(db)
	notifications := repository.NewNotificationRepo(db)
	invoices := repository.NewInvoiceRepo(db)

	gate := auth.NewGate(users, sessions, cfg.JWTSecret)

	h := router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, gate, users, schools, sessions, resetTokens),
		Users:         handler.NewUserHandler(cfg, users, sessions),
		Schools:       handler.NewSchoolHandler(schools),
		Messages:      handler.NewMessageHandler(users, messages, notifications),
		Notifications: handler.NewNotificationHandler(notifications),
		Invoices:      handler.NewInvoiceHandler(users, invoices, notifications),
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, gate, h, config.LoadRateLimitConfig(), config.NewRedisClient())

	// Background workers stop when the shutdown context is cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := maintenance.NewSweeper(sessions, resetTokens, time.Hour)
	go sweeper.Run(ctx)
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
