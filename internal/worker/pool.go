// Package worker runs background jobs: the bounded pool sync jobs execute
// on, and the periodic sweep that reclaims expired reservations.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"go-stocksync/internal/service"
)

// Pool runs job bodies with bounded concurrency. Wait blocks until every
// accepted job has finished, for shutdown.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
	log  zerolog.Logger
}

func NewPool(size int, log zerolog.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size), log: log}
}

func (p *Pool) Go(fn func()) {
	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
}

// Wait blocks until all running jobs finish or ctx expires.
func (p *Pool) Wait(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	return nil
}

// Inline runs jobs synchronously. Used by tooling and tests.
type Inline struct{}

func (Inline) Go(fn func()) { fn() }

// Sweeper periodically releases expired reservations. The lease keeps
// concurrent instances from sweeping the same window at once; the release
// path itself is race-safe regardless, so the lease only avoids wasted work.
type Sweeper struct {
	reservations service.ReservationService
	locker       service.Locker
	interval     time.Duration
	log          zerolog.Logger
}

func NewSweeper(reservations service.ReservationService, locker service.Locker, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{reservations: reservations, locker: locker, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	release, ok, err := s.locker.Acquire(ctx, "sweep:reservations", s.interval)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep lease failed")
		return
	}
	if !ok {
		return
	}
	defer release()

	if _, err := s.reservations.CleanupExpiredReservations(ctx); err != nil {
		s.log.Error().Err(err).Msg("reservation sweep failed")
	}
}
