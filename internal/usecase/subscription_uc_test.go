//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/usecase"
)

var (
	planBasica     = &model.Plan{ID: "basica", Name: "Básica", Level: 1, MonthlyPrice: 50000, AnnualPrice: 500000, Active: true}
	planIntermedia = &model.Plan{ID: "intermedia", Name: "Intermedia", Level: 2, MonthlyPrice: 80000, AnnualPrice: 800000, Active: true}
	planAvanzada   = &model.Plan{ID: "avanzada", Name: "Avanzada", Level: 3, MonthlyPrice: 120000, AnnualPrice: 1200000, Active: true}
)

type subscriptionTestDeps struct {
	subs   *MockSubscriptionRepo
	plans  *MockPlanRepo
	tm     *MockTxManager
	events *MockEventPublisher
}

func newSubscriptionDeps() *subscriptionTestDeps {
	subs := NewMockSubscriptionRepo()
	return &subscriptionTestDeps{
		subs:   subs,
		plans:  NewMockPlanRepo(planBasica, planIntermedia, planAvanzada),
		tm:     NewMockTxManager(subs),
		events: &MockEventPublisher{},
	}
}

func (d *subscriptionTestDeps) manager(opts ...usecase.SubscriptionOption) *usecase.SubscriptionManager {
	return usecase.NewSubscriptionManager(d.subs, d.plans, d.tm, d.events, newTestLogger(), opts...)
}

// seedActive stores an active row for userID on planID.
func (d *subscriptionTestDeps) seedActive(t *testing.T, id, userID, planID, reference string, expires time.Time, autoRenew bool) {
	t.Helper()
	txID := "tx-" + id
	err := d.subs.Create(context.Background(), nil, &model.SubscriptionRecord{
		ID:             id,
		UserID:         userID,
		PlanID:         planID,
		Period:         model.PeriodMonthly,
		State:          model.SubscriptionStateActive,
		StartDate:      expires.AddDate(0, -1, 0),
		ExpirationDate: expires,
		Reference:      reference,
		TransactionID:  &txID,
		AutoRenew:      autoRenew,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func countActive(rows []*model.SubscriptionRecord) int {
	n := 0
	for _, s := range rows {
		if s.State == model.SubscriptionStateActive {
			n++
		}
	}
	return n
}

func TestSubscriptionManager_CreatePending(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a pending_payment row with auto renewal on", func(t *testing.T) {
		// --- Arrange ---
		deps := newSubscriptionDeps()
		uc := deps.manager()

		// --- Act ---
		sub, err := uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "MEM-basica-ref-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.State != model.SubscriptionStatePendingPayment || !sub.AutoRenew {
			t.Errorf("unexpected row: %+v", sub)
		}
		if want := sub.StartDate.AddDate(0, 1, 0); !sub.ExpirationDate.Equal(want) {
			t.Errorf("expected expiration %v, but got %v", want, sub.ExpirationDate)
		}
		if deps.subs.Get(sub.ID) == nil {
			t.Error("expected the row to be stored")
		}
	})

	t.Run("should fail with ErrPlanNotFound for an unknown plan", func(t *testing.T) {
		deps := newSubscriptionDeps()
		_, err := deps.manager().CreatePending(ctx, repository.NoTX, "user-1", "platino", model.PeriodMonthly, 1, "ref")
		if !errors.Is(err, domain.ErrPlanNotFound) {
			t.Errorf("expected ErrPlanNotFound, but got %v", err)
		}
	})

	t.Run("should refuse a downgrade or same tier purchase and create no row", func(t *testing.T) {
		for _, planID := range []string{"basica", "intermedia", "avanzada"} {
			deps := newSubscriptionDeps()
			deps.seedActive(t, "sub-a", "user-1", "avanzada", "ref-a", time.Now().Add(24*time.Hour), true)

			_, err := deps.manager().CreatePending(ctx, repository.NoTX, "user-1", planID, model.PeriodMonthly, 1, "ref-new")

			if !errors.Is(err, domain.ErrAlreadyAtOrAboveTier) {
				t.Errorf("%s: expected ErrAlreadyAtOrAboveTier, but got %v", planID, err)
			}
			if rows := deps.subs.ByUser("user-1"); len(rows) != 1 {
				t.Errorf("%s: expected no new row, but user has %d rows", planID, len(rows))
			}
		}
	})

	t.Run("should allow an upgrade", func(t *testing.T) {
		deps := newSubscriptionDeps()
		deps.seedActive(t, "sub-a", "user-1", "basica", "ref-a", time.Now().Add(24*time.Hour), true)
		if _, err := deps.manager().CreatePending(ctx, repository.NoTX, "user-1", "avanzada", model.PeriodAnnual, 1200000, "ref-b"); err != nil {
			t.Errorf("expected upgrade to be accepted, but got %v", err)
		}
	})

	t.Run("should join the caller's transaction", func(t *testing.T) {
		deps := newSubscriptionDeps()
		opened := 0
		deps.tm.WithTxFunc = func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			opened++
			return fn(ctx, repository.NoTX)
		}
		_, err := deps.manager().CreatePending(ctx, "outer-tx", "user-1", "basica", model.PeriodMonthly, 1, "ref")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if opened != 0 {
			t.Errorf("expected no new transaction, but %d were opened", opened)
		}
	})
}

func TestSubscriptionManager_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("should activate the new row and cancel the previous one", func(t *testing.T) {
		// --- Arrange ---
		deps := newSubscriptionDeps()
		deps.seedActive(t, "sub-a", "user-1", "basica", "ref-a", time.Now().Add(24*time.Hour), true)
		uc := deps.manager()
		b, err := uc.CreatePending(ctx, repository.NoTX, "user-1", "avanzada", model.PeriodMonthly, 120000, "ref-b")
		if err != nil {
			t.Fatalf("create pending: %v", err)
		}

		// --- Act ---
		sub, applied, err := uc.Activate(ctx, "ref-b", "tx-b")

		// --- Assert ---
		if err != nil || !applied {
			t.Fatalf("expected an applied activation, got applied=%v err=%v", applied, err)
		}
		if sub.ID != b.ID {
			t.Errorf("expected row %s to be active, got %s", b.ID, sub.ID)
		}
		rows := deps.subs.ByUser("user-1")
		if n := countActive(rows); n != 1 {
			t.Fatalf("expected exactly one active row, but got %d", n)
		}
		a := deps.subs.Get("sub-a")
		if a.State != model.SubscriptionStateCancelled || a.CancellationDate == nil {
			t.Errorf("expected previous row cancelled with a date, got %+v", a)
		}
		if a.AutoRenew {
			t.Error("expected the superseded row to stop renewing")
		}
		if deps.events.Count(adapter.EventSubscriptionActivated) != 1 || deps.events.Count(adapter.EventSubscriptionCancelled) != 1 {
			t.Errorf("unexpected events: %+v", deps.events.Events)
		}
	})

	t.Run("should treat a replay with the same transaction id as a no-op", func(t *testing.T) {
		deps := newSubscriptionDeps()
		uc := deps.manager()
		if _, err := uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "ref-1"); err != nil {
			t.Fatalf("create pending: %v", err)
		}
		if _, _, err := uc.Activate(ctx, "ref-1", "tx-1"); err != nil {
			t.Fatalf("first activation: %v", err)
		}

		_, applied, err := uc.Activate(ctx, "ref-1", "tx-1")

		if err != nil {
			t.Fatalf("expected replay to succeed, but got %v", err)
		}
		if applied {
			t.Error("expected replay to report applied=false")
		}
		if n := deps.events.Count(adapter.EventSubscriptionActivated); n != 1 {
			t.Errorf("expected one activation event, but got %d", n)
		}
	})

	t.Run("should report a conflict for a different transaction id", func(t *testing.T) {
		deps := newSubscriptionDeps()
		uc := deps.manager()
		_, _ = uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "ref-1")
		_, _, _ = uc.Activate(ctx, "ref-1", "tx-1")

		_, _, err := uc.Activate(ctx, "ref-1", "tx-2")
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, but got %v", err)
		}
	})

	t.Run("should treat a replay as a no-op after the row was cancelled", func(t *testing.T) {
		// --- Arrange ---
		deps := newSubscriptionDeps()
		uc := deps.manager()
		_, _ = uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "ref-1")
		if _, _, err := uc.Activate(ctx, "ref-1", "tx-1"); err != nil {
			t.Fatalf("first activation: %v", err)
		}
		if _, err := uc.Cancel(ctx, "user-1"); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		// --- Act ---
		sub, applied, err := uc.Activate(ctx, "ref-1", "tx-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected replay to succeed, but got %v", err)
		}
		if applied {
			t.Error("expected replay to report applied=false")
		}
		if sub.State != model.SubscriptionStateCancelled {
			t.Errorf("expected the row to stay cancelled, got %s", sub.State)
		}
		if n := countActive(deps.subs.ByUser("user-1")); n != 0 {
			t.Errorf("expected no active row, but got %d", n)
		}
	})

	t.Run("should treat a replay as a no-op after the row was superseded by an upgrade", func(t *testing.T) {
		// --- Arrange ---
		deps := newSubscriptionDeps()
		uc := deps.manager()
		_, _ = uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "ref-1")
		_, _, _ = uc.Activate(ctx, "ref-1", "tx-1")
		b, _ := uc.CreatePending(ctx, repository.NoTX, "user-1", "avanzada", model.PeriodMonthly, 120000, "ref-2")
		if _, _, err := uc.Activate(ctx, "ref-2", "tx-2"); err != nil {
			t.Fatalf("upgrade activation: %v", err)
		}

		// --- Act ---
		_, applied, err := uc.Activate(ctx, "ref-1", "tx-1")

		// --- Assert ---
		if err != nil || applied {
			t.Fatalf("expected a silent replay, got applied=%v err=%v", applied, err)
		}
		active, err := uc.GetActive(ctx, "user-1")
		if err != nil || active.ID != b.ID {
			t.Errorf("expected the upgrade to stay active, got %+v err=%v", active, err)
		}
		if n := deps.events.Count(adapter.EventSubscriptionActivated); n != 2 {
			t.Errorf("expected two activation events, but got %d", n)
		}
	})

	t.Run("should treat a replay as a no-op after the row expired", func(t *testing.T) {
		deps := newSubscriptionDeps()
		deps.seedActive(t, "sub-a", "user-1", "basica", "ref-a", time.Now().Add(-time.Hour), false)
		uc := deps.manager()
		if n, err := uc.SweepExpired(ctx, time.Now()); err != nil || n != 1 {
			t.Fatalf("sweep: n=%d err=%v", n, err)
		}

		_, applied, err := uc.Activate(ctx, "ref-a", "tx-sub-a")

		if err != nil || applied {
			t.Fatalf("expected a silent replay, got applied=%v err=%v", applied, err)
		}
		if got := deps.subs.Get("sub-a").State; got != model.SubscriptionStateExpired {
			t.Errorf("expected the row to stay expired, got %s", got)
		}
	})

	t.Run("should report a conflict for a cancelled row confirmed with another transaction id", func(t *testing.T) {
		deps := newSubscriptionDeps()
		uc := deps.manager()
		_, _ = uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "ref-1")
		_, _, _ = uc.Activate(ctx, "ref-1", "tx-1")
		_, _ = uc.Cancel(ctx, "user-1")

		_, _, err := uc.Activate(ctx, "ref-1", "tx-9")

		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, but got %v", err)
		}
	})

	t.Run("should leave the row pending when the user lock cannot be taken", func(t *testing.T) {
		deps := newSubscriptionDeps()
		uc := deps.manager()
		_, _ = uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "ref-1")
		deps.subs.LockUserFunc = func(ctx context.Context, tx repository.Tx, userID string) error {
			return domain.ErrPersistence
		}

		_, _, err := uc.Activate(ctx, "ref-1", "tx-1")

		if !errors.Is(err, domain.ErrPersistence) {
			t.Errorf("expected ErrPersistence, but got %v", err)
		}
		if n := countActive(deps.subs.ByUser("user-1")); n != 0 {
			t.Errorf("expected no active row after the failure, but got %d", n)
		}
	})

	t.Run("should leave one active row when two activations race", func(t *testing.T) {
		deps := newSubscriptionDeps()
		uc := deps.manager()
		_, _ = uc.CreatePending(ctx, repository.NoTX, "user-1", "basica", model.PeriodMonthly, 50000, "ref-1")
		_, _ = uc.CreatePending(ctx, repository.NoTX, "user-1", "intermedia", model.PeriodMonthly, 80000, "ref-2")

		var wg sync.WaitGroup
		for _, ref := range []string{"ref-1", "ref-2"} {
			wg.Add(1)
			go func(ref string) {
				defer wg.Done()
				if _, _, err := uc.Activate(ctx, ref, "tx-"+ref); err != nil {
					t.Errorf("activate %s: %v", ref, err)
				}
			}(ref)
		}
		wg.Wait()

		if n := countActive(deps.subs.ByUser("user-1")); n != 1 {
			t.Errorf("expected exactly one active row, but got %d", n)
		}
	})

	t.Run("should return ErrNotFound for an unknown reference", func(t *testing.T) {
		deps := newSubscriptionDeps()
		_, _, err := deps.manager().Activate(ctx, "nope", "tx")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, but got %v", err)
		}
	})
}

func TestSubscriptionManager_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("should cancel the active row and stop renewal", func(t *testing.T) {
		deps := newSubscriptionDeps()
		deps.seedActive(t, "sub-a", "user-1", "basica", "ref-a", time.Now().Add(time.Hour), true)

		got, err := deps.manager().Cancel(ctx, "user-1")

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got == nil || got.State != model.SubscriptionStateCancelled || got.AutoRenew {
			t.Errorf("unexpected cancelled row: %+v", got)
		}
		if deps.events.Count(adapter.EventSubscriptionCancelled) != 1 {
			t.Error("expected a subscription_cancelled event")
		}
	})

	t.Run("should succeed without an active row", func(t *testing.T) {
		deps := newSubscriptionDeps()
		got, err := deps.manager().Cancel(ctx, "user-1")
		if err != nil || got != nil {
			t.Errorf("expected nil, nil but got %v, %v", got, err)
		}
	})
}

type stubRenewer struct{ err error }

func (r stubRenewer) Renew(context.Context, *model.SubscriptionRecord) error { return r.err }

func TestSubscriptionManager_SweepExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	t.Run("should expire past-due rows and keep current ones", func(t *testing.T) {
		// --- Arrange ---
		deps := newSubscriptionDeps()
		deps.seedActive(t, "past", "user-1", "basica", "ref-1", now.Add(-time.Second), false)
		deps.seedActive(t, "edge", "user-2", "basica", "ref-2", now, false)
		deps.seedActive(t, "future", "user-3", "basica", "ref-3", now.Add(time.Hour), false)

		// --- Act ---
		n, err := deps.manager().SweepExpired(ctx, now)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 expired row, but got %d", n)
		}
		if s := deps.subs.Get("past"); s.State != model.SubscriptionStateExpired {
			t.Errorf("expected past row expired, got %s", s.State)
		}
		for _, id := range []string{"edge", "future"} {
			if s := deps.subs.Get(id); s.State != model.SubscriptionStateActive {
				t.Errorf("expected %s to stay active, got %s", id, s.State)
			}
		}
	})

	t.Run("should expire auto-renewing rows when renewal fails", func(t *testing.T) {
		deps := newSubscriptionDeps()
		deps.seedActive(t, "past", "user-1", "basica", "ref-1", now.Add(-time.Hour), true)
		n, _ := deps.manager().SweepExpired(ctx, now)
		if n != 1 {
			t.Errorf("expected the default renewer to fail and the row to expire, got %d", n)
		}
	})

	t.Run("should keep rows the renewer renewed", func(t *testing.T) {
		deps := newSubscriptionDeps()
		deps.seedActive(t, "past", "user-1", "basica", "ref-1", now.Add(-time.Hour), true)
		n, _ := deps.manager(usecase.WithRenewer(stubRenewer{})).SweepExpired(ctx, now)
		if n != 0 {
			t.Errorf("expected no expiry, got %d", n)
		}
		if s := deps.subs.Get("past"); s.State != model.SubscriptionStateActive {
			t.Errorf("expected row to stay active, got %s", s.State)
		}
	})

	t.Run("should page through more rows than one batch", func(t *testing.T) {
		deps := newSubscriptionDeps()
		for i := 0; i < 5; i++ {
			id := string(rune('a' + i))
			deps.seedActive(t, id, "user-"+id, "basica", "ref-"+id, now.Add(-time.Duration(i+1)*time.Minute), false)
		}
		n, err := deps.manager(usecase.WithSweepBatch(2)).SweepExpired(ctx, now)
		if err != nil || n != 5 {
			t.Errorf("expected 5 expired rows, got %d (err %v)", n, err)
		}
	})
}

func TestSubscriptionManager_GetActive(t *testing.T) {
	deps := newSubscriptionDeps()
	if _, err := deps.manager().GetActive(context.Background(), "user-1"); !errors.Is(err, domain.ErrNoActiveSubscription) {
		t.Errorf("expected ErrNoActiveSubscription, but got %v", err)
	}
}
