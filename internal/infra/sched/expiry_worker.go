package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/metrics"
	red "github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/redis"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

const sweepLockKey = "academia:lock:subscription-sweep"

// ExpiryWorker periodically sweeps past-due subscriptions. Only the replica
// holding the sweep lock runs a given tick.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	locker   red.Locker
	lockTTL  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, locker red.Locker, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	ttl := interval / 2
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		locker:   locker,
		lockTTL:  ttl,
		now:      time.Now,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			_, _ = w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. A busy lock is not an error.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (int, error) {
	if w.locker != nil {
		unlock, err := w.locker.TryLock(ctx, sweepLockKey, w.lockTTL)
		if err != nil {
			if errors.Is(err, red.ErrLockBusy) {
				metrics.IncSchedulerRun("sweep", "skipped")
				w.log.Debug().Err(err).Msg("sweep lock held elsewhere")
				return 0, nil
			}
			metrics.IncSchedulerRun("sweep", "error")
			return 0, err
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				w.log.Warn().Err(err).Msg("sweep unlock failed")
			}
		}()
	}

	n, err := w.subUC.SweepExpired(ctx, w.now())
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
		w.log.Info().Int("count", n).Msg("expired subscriptions finished")
	}
	if err != nil {
		metrics.IncSchedulerRun("sweep", "error")
		w.log.Error().Err(err).Int("count", n).Msg("expiry worker error")
		return n, err
	}
	metrics.IncSchedulerRun("sweep", "ok")
	return n, nil
}
