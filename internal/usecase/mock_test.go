//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

// snapshotter lets MockTxManager roll back in-memory state when fn fails.
type snapshotter interface {
	snapshot() (restore func())
}

// =============================
// Payment records
// =============================

type MockPaymentStore struct {
	mu   sync.Mutex
	data map[string]*model.PaymentRecord // by reference

	CreateFunc                    func(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) error
	FindByReferenceFunc           func(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentRecord, error)
	TransitionFunc                func(ctx context.Context, tx repository.Tx, reference string, to model.PaymentState, f model.TransitionFields) (*model.PaymentRecord, bool, error)
	ListPaidPendingActivationFunc func(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)
}

func NewMockPaymentStore() *MockPaymentStore {
	return &MockPaymentStore{data: map[string]*model.PaymentRecord{}}
}

var _ repository.PaymentRecordStore = (*MockPaymentStore)(nil)

func (m *MockPaymentStore) Create(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[rec.Reference]; ok {
		return domain.ErrDuplicateReference
	}
	cp := *rec
	cp.State = model.PaymentStatePending
	m.data[rec.Reference] = &cp
	return nil
}

func (m *MockPaymentStore) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentRecord, error) {
	if m.FindByReferenceFunc != nil {
		return m.FindByReferenceFunc(ctx, tx, reference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockPaymentStore) Transition(ctx context.Context, tx repository.Tx, reference string, to model.PaymentState, f model.TransitionFields) (*model.PaymentRecord, bool, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, tx, reference, to, f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[reference]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if rec.State != model.PaymentStatePending {
		if err := rec.CheckReplay(to, f.TransactionID); err != nil {
			return nil, false, err
		}
		cp := *rec
		return &cp, false, nil
	}
	rec.State = to
	rec.ResponseCode = f.ResponseCode
	rec.ResponseText = f.ResponseText
	rec.TransactionID = f.TransactionID
	rec.PaymentMethod = f.PaymentMethod
	rec.Metadata.Trace = f.Trace
	rec.UpdatedAt = time.Now()
	cp := *rec
	return &cp, true, nil
}

func (m *MockPaymentStore) ListPaidPendingActivation(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	if m.ListPaidPendingActivationFunc != nil {
		return m.ListPaidPendingActivationFunc(ctx, tx, olderThan, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, r := range m.data {
		if r.State == model.PaymentStateSuccess && r.ProductKind == model.ProductMembership && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentStore) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, r := range m.data {
		if r.State == model.PaymentStateSuccess {
			sum += r.GrossAmount
		}
	}
	return sum, nil
}

func (m *MockPaymentStore) Get(reference string) *model.PaymentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.data[reference]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (m *MockPaymentStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MockPaymentStore) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]*model.PaymentRecord, len(m.data))
	for k, v := range m.data {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.data = saved
	}
}

// =============================
// Subscriptions
// =============================

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.SubscriptionRecord // by id

	LockUserFunc   func(ctx context.Context, tx repository.Tx, userID string) error
	MarkActiveFunc func(ctx context.Context, tx repository.Tx, id, transactionID string, at time.Time) (bool, error)
	MarkExpiredErr error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.SubscriptionRecord{}}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.SubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.data[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.data {
		if s.Reference == reference {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.data {
		if s.UserID == userID && s.State == model.SubscriptionStateActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if m.LockUserFunc != nil {
		return m.LockUserFunc(ctx, tx, userID)
	}
	return nil
}

func (m *MockSubscriptionRepo) MarkActive(ctx context.Context, tx repository.Tx, id, transactionID string, at time.Time) (bool, error) {
	if m.MarkActiveFunc != nil {
		return m.MarkActiveFunc(ctx, tx, id, transactionID, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok || s.State != model.SubscriptionStatePendingPayment {
		return false, nil
	}
	s.State = model.SubscriptionStateActive
	txID := transactionID
	s.TransactionID = &txID
	s.UpdatedAt = at
	return true, nil
}

func (m *MockSubscriptionRepo) CancelActiveByUser(ctx context.Context, tx repository.Tx, userID, exceptID string, at time.Time) ([]*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionRecord
	for _, s := range m.data {
		if s.UserID != userID || s.ID == exceptID || s.State != model.SubscriptionStateActive {
			continue
		}
		s.State = model.SubscriptionStateCancelled
		when := at
		s.CancellationDate = &when
		s.AutoRenew = false
		s.UpdatedAt = at
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionRecord
	for _, s := range m.data {
		if s.IsExpiredAt(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpirationDate.Before(out[j].ExpirationDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSubscriptionRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	if m.MarkExpiredErr != nil {
		return false, m.MarkExpiredErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok || s.State != model.SubscriptionStateActive {
		return false, nil
	}
	s.State = model.SubscriptionStateExpired
	s.UpdatedAt = at
	return true, nil
}

func (m *MockSubscriptionRepo) CountByState(ctx context.Context, tx repository.Tx) (map[model.SubscriptionState]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.SubscriptionState]int{}
	for _, s := range m.data {
		out[s.State]++
	}
	return out, nil
}

func (m *MockSubscriptionRepo) Get(id string) *model.SubscriptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.data[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (m *MockSubscriptionRepo) ByUser(userID string) []*model.SubscriptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionRecord
	for _, s := range m.data {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MockSubscriptionRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]*model.SubscriptionRecord, len(m.data))
	for k, v := range m.data {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.data = saved
	}
}

// =============================
// Plans & catalog
// =============================

type MockPlanRepo struct {
	mu   sync.Mutex
	data map[string]*model.Plan
}

func NewMockPlanRepo(plans ...*model.Plan) *MockPlanRepo {
	m := &MockPlanRepo{data: map[string]*model.Plan{}}
	for _, p := range plans {
		m.data[p.ID] = p
	}
	return m
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[p.ID] = p
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Plan, 0, len(m.data))
	for _, p := range m.data {
		out = append(out, p)
	}
	return out, nil
}

type MockCatalog struct {
	Products     map[string]*model.Product // key: kind/refID
	GetPriceFunc func(ctx context.Context, kind model.ProductKind, refID string, period model.Period) (*model.Product, error)
}

var _ adapter.Catalog = (*MockCatalog)(nil)

func (m *MockCatalog) GetPrice(ctx context.Context, kind model.ProductKind, refID string, period model.Period) (*model.Product, error) {
	if m.GetPriceFunc != nil {
		return m.GetPriceFunc(ctx, kind, refID, period)
	}
	p, ok := m.Products[string(kind)+"/"+refID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// =============================
// Gateway & events
// =============================

// MockPaymentGateway understands a simplified payload:
// ref, code, text, txn, method, bank. Code "1" is success.
type MockPaymentGateway struct {
	BuildCheckoutFunc func(rec *model.PaymentRecord, customer model.CustomerInfo) (*adapter.CheckoutPayload, error)
	LookupFunc        func(ctx context.Context, gatewayRef string) (adapter.RawPayload, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) BuildCheckout(rec *model.PaymentRecord, customer model.CustomerInfo) (*adapter.CheckoutPayload, error) {
	if g.BuildCheckoutFunc != nil {
		return g.BuildCheckoutFunc(rec, customer)
	}
	return &adapter.CheckoutPayload{Invoice: rec.Invoice, Extra1: rec.Reference, Name: rec.ProductName, NameBilling: customer.Name}, nil
}

func (g *MockPaymentGateway) ParseConfirmation(raw adapter.RawPayload) (*adapter.ConfirmationResult, error) {
	if raw["ref"] == "" || raw["code"] == "" || raw["txn"] == "" {
		return nil, domain.ErrMalformedPayload
	}
	return &adapter.ConfirmationResult{
		Reference:     raw["ref"],
		Success:       raw["code"] == "1",
		ResponseCode:  raw["code"],
		ResponseText:  raw["text"],
		TransactionID: raw["txn"],
		PaymentMethod: raw["method"],
		BankName:      raw["bank"],
		Amount:        raw["amount"],
	}, nil
}

func (g *MockPaymentGateway) Lookup(ctx context.Context, gatewayRef string) (adapter.RawPayload, error) {
	if g.LookupFunc != nil {
		return g.LookupFunc(ctx, gatewayRef)
	}
	return nil, domain.ErrNotFound
}

type MockEventPublisher struct {
	mu     sync.Mutex
	Events []adapter.Event
}

func (p *MockEventPublisher) Publish(ctx context.Context, ev adapter.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
}

func (p *MockEventPublisher) Count(kind adapter.EventKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

// MockTxManager serialises transactions and restores the registered stores
// when fn returns an error, which is enough to observe atomicity in tests.
type MockTxManager struct {
	mu     sync.Mutex
	stores []snapshotter

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager(stores ...snapshotter) *MockTxManager {
	return &MockTxManager{stores: stores}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

type mockTx struct{}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	restores := make([]func(), 0, len(m.stores))
	for _, s := range m.stores {
		restores = append(restores, s.snapshot())
	}
	if err := fn(ctx, &mockTx{}); err != nil {
		for _, r := range restores {
			r()
		}
		return err
	}
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
