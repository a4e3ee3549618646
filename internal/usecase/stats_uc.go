package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	SubscriptionsByState(ctx context.Context) (map[model.SubscriptionState]int, error)
	Revenue(ctx context.Context) (week int64, month int64, year int64, err error)
}

type statsUC struct {
	subs     repository.SubscriptionRepository
	payments repository.PaymentRecordStore

	log *zerolog.Logger
}

func NewStatsUseCase(subs repository.SubscriptionRepository, payments repository.PaymentRecordStore, logger *zerolog.Logger) *statsUC {
	return &statsUC{subs: subs, payments: payments, log: logger}
}

func (s *statsUC) SubscriptionsByState(ctx context.Context) (map[model.SubscriptionState]int, error) {
	return s.subs.CountByState(ctx, repository.NoTX)
}

// Revenue sums successful payments since the start of the current week, month and year.
func (s *statsUC) Revenue(ctx context.Context) (int64, int64, int64, error) {
	w, err := s.payments.SumByPeriod(ctx, repository.NoTX, "week")
	if err != nil {
		return 0, 0, 0, err
	}
	m, err := s.payments.SumByPeriod(ctx, repository.NoTX, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := s.payments.SumByPeriod(ctx, repository.NoTX, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	return w, m, y, nil
}
