// Package maintenance runs the periodic cleanup of rows the auth layer
// no longer needs: expired session records and stale password reset
// tokens. Revocation never deletes rows, so without this sweep both
// tables grow forever.
package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/edvora/school-management-api/internal/repository"
)

// usedResetGrace is how long a consumed reset token row is kept before
// it becomes purge-eligible.
const usedResetGrace = 24 * time.Hour

// Sweeper owns the cleanup loop.
type Sweeper struct {
	Sessions    *repository.SessionRepo
	ResetTokens *repository.ResetTokenRepo
	Interval    time.Duration
}

func NewSweeper(sessions *repository.SessionRepo, resetTokens *repository.ResetTokenRepo, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{Sessions: sessions, ResetTokens: resetTokens, Interval: interval}
}

// Run sweeps once immediately and then on every tick until the context
// is cancelled. Intended to be started as a goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sessions, err := s.Sessions.DeleteExpired(cctx)
	if err != nil {
		log.Printf("sweep: delete expired sessions failed: %v", err)
	}
	resets, err := s.ResetTokens.DeleteStale(cctx, usedResetGrace)
	if err != nil {
		log.Printf("sweep: delete stale reset tokens failed: %v", err)
	}
	if sessions > 0 || resets > 0 {
		log.Printf("sweep: purged %d sessions, %d reset tokens", sessions, resets)
	}
}
