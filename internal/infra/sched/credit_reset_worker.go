package sched

import (
	"context"
	"errors"
	"time"

	"research-orchestrator/internal/domain/ports/adapter"
	"research-orchestrator/internal/usecase"

	"github.com/rs/zerolog"
)

const resetLockKey = "lock:credits:reset"

// CreditResetWorker zeroes credit consumption at every local midnight.
// With several instances the lock lets only one of them run the reset.
type CreditResetWorker struct {
	credits usecase.CreditUseCase
	locker  adapter.Locker
	loc     *time.Location
	lockTTL time.Duration
	timeout time.Duration

	// attempts bounds ResetAll calls per tick; backoff doubles between them.
	attempts int
	backoff  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewCreditResetWorker(credits usecase.CreditUseCase, locker adapter.Locker, loc *time.Location, lockTTL time.Duration, logger *zerolog.Logger) *CreditResetWorker {
	if loc == nil {
		loc = time.UTC
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	l := logger.With().Str("component", "CreditResetWorker").Logger()
	return &CreditResetWorker{
		credits:  credits,
		locker:   locker,
		loc:      loc,
		lockTTL:  lockTTL,
		timeout:  time.Minute,
		attempts: 3,
		backoff:  5 * time.Second,
		now:      time.Now,
		log:      &l,
	}
}

func (w *CreditResetWorker) Run(ctx context.Context) error {
	w.log.Info().Str("timezone", w.loc.String()).Msg("Starting credit reset worker")
	for {
		next := nextReset(w.now(), w.loc)
		timer := time.NewTimer(time.Until(next))
		w.log.Debug().Time("next_reset", next).Msg("credit reset scheduled")

		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("Stopping credit reset worker")
			return ctx.Err()
		case <-timer.C:
			w.tick(ctx)
		}
	}
}

// tick runs one reset, retrying transient failures while the lock is held.
// On success the lock is left to expire so that instances firing a little
// later skip instead of resetting again.
func (w *CreditResetWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, resetLockKey, w.lockTTL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.log.Info().Err(err).Msg("credit reset skipped, lock not acquired")
		return
	}

	if err := w.resetWithRetry(ctx); err != nil {
		w.log.Error().Err(err).Int("attempts", w.attempts).Msg("credit reset failed")
		if uerr := w.locker.Unlock(context.WithoutCancel(ctx), resetLockKey, token); uerr != nil {
			w.log.Warn().Err(uerr).Msg("release reset lock")
		}
	}
}

func (w *CreditResetWorker) resetWithRetry(ctx context.Context) error {
	backoff := w.backoff
	for attempt := 1; ; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, w.timeout)
		_, err := w.credits.ResetAll(rctx)
		cancel()
		if err == nil || attempt >= w.attempts {
			return err
		}

		w.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("credit reset attempt failed, retrying")
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		backoff *= 2
	}
}

// nextReset is the first midnight in loc strictly after now.
func nextReset(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
