package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/infra/metrics"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

// ActivationReconciler retries activation for memberships whose payment
// succeeded but whose subscription is still pending_payment, for instance
// after a crash between the two steps of a confirmation. Each tick also
// refreshes the subscription gauges.
type ActivationReconciler struct {
	uc         usecase.ConfirmationUseCase
	stats      usecase.StatsUseCase
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a paid payment must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewActivationReconciler(uc usecase.ConfirmationUseCase, stats usecase.StatsUseCase, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *ActivationReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "ActivationReconciler").Logger()
	return &ActivationReconciler{uc: uc, stats: stats, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *ActivationReconciler) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Starting activation reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *ActivationReconciler) tick(ctx context.Context) {
	n, err := w.uc.ReconcileActivations(ctx, time.Now().Add(-w.staleAfter), w.batch)
	if n > 0 {
		metrics.IncSubscriptionsActivated("reconciler", n)
		w.log.Info().Int("count", n).Msg("reconciled pending activations")
	}
	if err != nil {
		metrics.IncSchedulerRun("reconcile", "error")
		w.log.Error().Err(err).Msg("activation reconcile failed")
	} else {
		metrics.IncSchedulerRun("reconcile", "ok")
	}

	if w.stats == nil {
		return
	}
	counts, err := w.stats.SubscriptionsByState(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("subscription stats refresh failed")
		return
	}
	metrics.SetSubscriptionsTotal(counts)
}
