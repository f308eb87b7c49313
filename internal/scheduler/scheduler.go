package scheduler

import (
	"context"
	"time"

	"resourcehub/pkg/logger"
)

// bookingCompleter moves approved bookings whose end time has passed into
// the completed status.
type bookingCompleter interface {
	CompletePast(ctx context.Context) (int64, error)
}

// waitlistExpirer sweeps waitlist entries untouched beyond the expiry age.
type waitlistExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Scheduler drives the two background mutations: completing past bookings
// and expiring stale waitlist entries. Both sweeps are idempotent, so a
// missed or doubled tick is harmless.
type Scheduler struct {
	bookings bookingCompleter
	waitlist waitlistExpirer
	interval time.Duration
	log      *logger.Logger
}

func New(bookings bookingCompleter, waitlist waitlistExpirer, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		bookings: bookings,
		waitlist: waitlist,
		interval: interval,
		log:      log,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.bookings.CompletePast(ctx); err != nil {
		s.log.Error("Booking completion sweep failed", "error", err)
	}
	if _, err := s.waitlist.ExpireStale(ctx); err != nil {
		s.log.Error("Waitlist expiry sweep failed", "error", err)
	}
}
