//go:build !integration

package usecase_test

import (
	"testing"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

// pipeline wires the purchase and confirmation use cases over in-memory stores.
type pipeline struct {
	payments *MockPaymentStore
	subs     *MockSubscriptionRepo
	plans    *MockPlanRepo
	catalog  *MockCatalog
	gateway  *MockPaymentGateway
	events   *MockEventPublisher
	tm       *MockTxManager

	manager  *usecase.SubscriptionManager
	purchase usecase.PurchaseUseCase
	confirm  *usecase.Orchestrator
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		payments: NewMockPaymentStore(),
		subs:     NewMockSubscriptionRepo(),
		plans:    NewMockPlanRepo(planBasica, planIntermedia, planAvanzada),
		gateway:  &MockPaymentGateway{},
		events:   &MockEventPublisher{},
	}
	p.catalog = &MockCatalog{Products: map[string]*model.Product{
		"membership/basica":   {Kind: model.ProductMembership, RefID: "basica", Name: "Plan Básica", Gross: 50000},
		"membership/avanzada": {Kind: model.ProductMembership, RefID: "avanzada", Name: "Plan Avanzada", Gross: 120000},
		"course/acordeon-101": {Kind: model.ProductCourse, RefID: "acordeon-101", Name: "Acordeón 101", Gross: 89900},
	}}
	p.tm = NewMockTxManager(p.payments, p.subs)

	tax, err := usecase.NewTaxCalculator("0.19")
	if err != nil {
		t.Fatalf("tax: %v", err)
	}
	log := newTestLogger()
	p.manager = usecase.NewSubscriptionManager(p.subs, p.plans, p.tm, p.events, log)
	p.purchase = usecase.NewPurchaseUseCase(p.catalog, p.payments, p.manager, p.gateway, p.tm, tax, usecase.NewReferenceGenerator(), "COP", 0, log)
	p.confirm = usecase.NewOrchestrator(p.gateway, p.payments, p.manager, p.events, usecase.NoRetry, 0, log)
	return p
}

func membershipRequest(userID, planID string) usecase.PurchaseRequest {
	return usecase.PurchaseRequest{
		UserID:       userID,
		ProductKind:  model.ProductMembership,
		ProductRefID: planID,
		Period:       model.PeriodMonthly,
		Customer:     usecase.PurchaseCustomer{Email: "ana@example.com", Name: "Ana Díaz", Phone: "3001234567"},
	}
}

func successPayload(ref, txn string) adapter.RawPayload {
	return adapter.RawPayload{"ref": ref, "code": "1", "text": "Aceptada", "txn": txn, "method": "TDC", "bank": "Banco Demo"}
}

func failurePayload(ref, txn string) adapter.RawPayload {
	return adapter.RawPayload{"ref": ref, "code": "2", "text": "Fondos insuficientes", "txn": txn, "method": "TDC"}
}
