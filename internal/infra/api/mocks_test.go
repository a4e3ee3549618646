//go:build !integration

package api

import (
	"context"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

type MockPurchaseUseCase struct {
	InitiateFunc func(ctx context.Context, req usecase.PurchaseRequest) (*usecase.PurchaseResult, error)
	Last         usecase.PurchaseRequest
}

func (m *MockPurchaseUseCase) Initiate(ctx context.Context, req usecase.PurchaseRequest) (*usecase.PurchaseResult, error) {
	m.Last = req
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, req)
	}
	return &usecase.PurchaseResult{Reference: "MEM-basica-m1x2y3z4-a1b2c3-user01", CheckoutPayload: &adapter.CheckoutPayload{Extra1: "MEM-basica-m1x2y3z4-a1b2c3-user01"}}, nil
}

type MockConfirmationUseCase struct {
	ConfirmFunc             func(ctx context.Context, reference string, raw adapter.RawPayload) (*usecase.ConfirmationOutcome, error)
	ConfirmByGatewayRefFunc func(ctx context.Context, gatewayRef string) (*usecase.ConfirmationOutcome, error)
	GetPaymentFunc          func(ctx context.Context, reference string) (*model.PaymentRecord, error)
	LastRaw                 adapter.RawPayload
}

func (m *MockConfirmationUseCase) Confirm(ctx context.Context, reference string, raw adapter.RawPayload) (*usecase.ConfirmationOutcome, error) {
	m.LastRaw = raw
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, reference, raw)
	}
	return &usecase.ConfirmationOutcome{Reference: raw["x_extra1"], Status: usecase.StatusConfirmed}, nil
}

func (m *MockConfirmationUseCase) ConfirmByGatewayRef(ctx context.Context, gatewayRef string) (*usecase.ConfirmationOutcome, error) {
	if m.ConfirmByGatewayRefFunc != nil {
		return m.ConfirmByGatewayRefFunc(ctx, gatewayRef)
	}
	return &usecase.ConfirmationOutcome{Reference: "ref-" + gatewayRef, Status: usecase.StatusConfirmed}, nil
}

func (m *MockConfirmationUseCase) ReconcileActivations(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	return 0, nil
}

func (m *MockConfirmationUseCase) GetPayment(ctx context.Context, reference string) (*model.PaymentRecord, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, reference)
	}
	return &model.PaymentRecord{Reference: reference, UserID: "user-1", State: model.PaymentStatePending, ProductKind: model.ProductMembership}, nil
}

type MockSubscriptionUseCase struct {
	usecase.SubscriptionUseCase
	GetActiveFunc func(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
	CancelFunc    func(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
}

func (m *MockSubscriptionUseCase) GetActive(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	return m.GetActiveFunc(ctx, userID)
}

func (m *MockSubscriptionUseCase) Cancel(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	return m.CancelFunc(ctx, userID)
}

type MockStats struct {
	Counts map[model.SubscriptionState]int
	Week   int64
	Month  int64
	Year   int64
	Err    error
}

func (m *MockStats) SubscriptionsByState(ctx context.Context) (map[model.SubscriptionState]int, error) {
	return m.Counts, m.Err
}

func (m *MockStats) Revenue(ctx context.Context) (int64, int64, int64, error) {
	return m.Week, m.Month, m.Year, m.Err
}

type MockPlanRepo struct {
	repository.PlanRepository
	Plans []*model.Plan
}

func (m *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return m.Plans, nil
}

type MockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Keys      []string
}

func (m *MockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.Keys = append(m.Keys, key)
	return m.AllowFunc(ctx, key, limit, window)
}
