// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionUseCase = (*SubscriptionManager)(nil)

type SubscriptionUseCase interface {
	// CreatePending joins tx when it is not NoTX, otherwise opens its own.
	CreatePending(ctx context.Context, tx repository.Tx, userID, planID string, period model.Period, amountPaid int64, reference string) (*model.SubscriptionRecord, error)
	// Activate reports applied=false for an idempotent replay.
	Activate(ctx context.Context, reference, transactionID string) (sub *model.SubscriptionRecord, applied bool, err error)
	// Cancel returns nil, nil when the user holds no active subscription.
	Cancel(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	GetActive(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
}

// NoRenewal is the Renewer used until a billing collaborator exists: every
// renewal fails, so past-due rows expire.
type NoRenewal struct{}

func (NoRenewal) Renew(context.Context, *model.SubscriptionRecord) error {
	return domain.ErrRenewalFailed
}

type SubscriptionManager struct {
	subs      repository.SubscriptionRepository
	plans     repository.PlanRepository
	tm        repository.TransactionManager
	renewer   adapter.Renewer
	events    adapter.EventPublisher
	log       *zerolog.Logger
	opTimeout time.Duration
	batchSize int
	now       func() time.Time
}

type SubscriptionOption func(*SubscriptionManager)

func WithRenewer(r adapter.Renewer) SubscriptionOption {
	return func(m *SubscriptionManager) { m.renewer = r }
}

func WithOpTimeout(d time.Duration) SubscriptionOption {
	return func(m *SubscriptionManager) { m.opTimeout = d }
}

func WithSweepBatch(n int) SubscriptionOption {
	return func(m *SubscriptionManager) { m.batchSize = n }
}

func WithClock(now func() time.Time) SubscriptionOption {
	return func(m *SubscriptionManager) { m.now = now }
}

func NewSubscriptionManager(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	tm repository.TransactionManager,
	events adapter.EventPublisher,
	logger *zerolog.Logger,
	opts ...SubscriptionOption,
) *SubscriptionManager {
	l := logger.With().Str("component", "SubscriptionManager").Logger()
	m := &SubscriptionManager{
		subs:      subs,
		plans:     plans,
		tm:        tm,
		renewer:   NoRenewal{},
		events:    events,
		log:       &l,
		opTimeout: 5 * time.Second,
		batchSize: 100,
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *SubscriptionManager) CreatePending(ctx context.Context, tx repository.Tx, userID, planID string, period model.Period, amountPaid int64, reference string) (*model.SubscriptionRecord, error) {
	if userID == "" || planID == "" || reference == "" || !period.Valid() {
		return nil, domain.ErrValidation
	}
	var created *model.SubscriptionRecord
	run := func(ctx context.Context, tx repository.Tx) error {
		plan, err := m.plans.FindByID(ctx, tx, planID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrPlanNotFound
			}
			return err
		}
		if !plan.Active {
			return domain.ErrPlanNotFound
		}
		if err := m.subs.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := m.checkTier(ctx, tx, userID, plan); err != nil {
			return err
		}
		rec, err := model.NewPendingSubscription(uuid.NewString(), userID, planID, period, amountPaid, reference, m.now())
		if err != nil {
			return err
		}
		if err := m.subs.Create(ctx, tx, rec); err != nil {
			return err
		}
		created = rec
		return nil
	}

	var err error
	if tx != repository.NoTX {
		err = run(ctx, tx)
	} else {
		opCtx, cancel := m.opContext(ctx)
		defer cancel()
		err = m.tm.WithTx(opCtx, pgx.TxOptions{}, run)
	}
	if err != nil {
		return nil, domain.WrapRef("SubscriptionManager.CreatePending", reference, err)
	}
	return created, nil
}

// checkTier rejects a purchase of a plan at or below the user's active plan.
func (m *SubscriptionManager) checkTier(ctx context.Context, tx repository.Tx, userID string, requested *model.Plan) error {
	active, err := m.subs.FindActiveByUser(ctx, tx, userID)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNoActiveSubscription) {
		return nil
	}
	if err != nil {
		return err
	}
	current, err := m.plans.FindByID(ctx, tx, active.PlanID)
	if errors.Is(err, domain.ErrNotFound) {
		// plan was retired from the catalog; nothing to compare against
		return nil
	}
	if err != nil {
		return err
	}
	if current.Level >= requested.Level {
		return domain.ErrAlreadyAtOrAboveTier
	}
	return nil
}

// Activate moves the pending row for reference to active and cancels every
// other active row of the same user, all in one transaction holding the
// user's lock.
func (m *SubscriptionManager) Activate(ctx context.Context, reference, transactionID string) (*model.SubscriptionRecord, bool, error) {
	if reference == "" || transactionID == "" {
		return nil, false, domain.ErrValidation
	}
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	var (
		sub       *model.SubscriptionRecord
		applied   bool
		cancelled []*model.SubscriptionRecord
	)
	err := m.tm.WithTx(opCtx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := m.subs.FindByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if err := m.subs.LockUser(ctx, tx, s.UserID); err != nil {
			return err
		}
		switch {
		case s.SameTransaction(transactionID):
			// already applied; a later cancel, upgrade or expiry does not
			// turn a redelivery into a conflict
			sub = s
			return nil
		case s.State != model.SubscriptionStatePendingPayment:
			return domain.ErrConflict
		}

		// the one-active-row index is checked per statement, so the
		// previous row has to leave active before this one enters it
		now := m.now()
		cancelled, err = m.subs.CancelActiveByUser(ctx, tx, s.UserID, s.ID, now)
		if err != nil {
			return err
		}
		ok, err := m.subs.MarkActive(ctx, tx, s.ID, transactionID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConflict
		}
		s.State = model.SubscriptionStateActive
		s.TransactionID = &transactionID
		s.UpdatedAt = now
		sub, applied = s, true
		return nil
	})
	if err != nil {
		err = domain.WrapRef("SubscriptionManager.Activate", reference, err)
		if errors.Is(err, domain.ErrConflict) {
			m.log.Error().Err(err).Str("alarm", "data_integrity").Str("reference", reference).Msg("subscription activation conflict")
		}
		return nil, false, err
	}
	if !applied {
		m.log.Debug().Str("reference", reference).Msg("activation replay ignored")
		return sub, false, nil
	}

	m.log.Info().Str("reference", reference).Str("user_id", sub.UserID).Int("cancelled", len(cancelled)).Msg("subscription activated")
	m.publish(ctx, adapter.EventSubscriptionActivated, sub, map[string]string{"plan_id": sub.PlanID, "period": string(sub.Period)})
	for _, c := range cancelled {
		m.publish(ctx, adapter.EventSubscriptionCancelled, c, map[string]string{"reason": "superseded", "superseded_by": sub.ID})
	}
	return sub, true, nil
}

func (m *SubscriptionManager) Cancel(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	if userID == "" {
		return nil, domain.ErrValidation
	}
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	var cancelled []*model.SubscriptionRecord
	err := m.tm.WithTx(opCtx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := m.subs.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		cancelled, err = m.subs.CancelActiveByUser(ctx, tx, userID, "", m.now())
		return err
	})
	if err != nil {
		return nil, domain.WrapRef("SubscriptionManager.Cancel", "", err)
	}
	if len(cancelled) == 0 {
		return nil, nil
	}
	for _, c := range cancelled {
		m.publish(ctx, adapter.EventSubscriptionCancelled, c, map[string]string{"reason": "user_request"})
	}
	return cancelled[0], nil
}

// SweepExpired expires every active row whose term ended before now, unless
// auto renewal is on and the renewer succeeds. Returns how many rows expired.
func (m *SubscriptionManager) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	for {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		listCtx, cancel := m.opContext(ctx)
		rows, err := m.subs.ListExpired(listCtx, repository.NoTX, now, m.batchSize)
		cancel()
		if err != nil {
			return expired, domain.WrapRef("SubscriptionManager.SweepExpired", "", err)
		}

		progressed := 0
		for _, s := range rows {
			if s.AutoRenew {
				if err := m.renewer.Renew(ctx, s); err == nil {
					m.log.Info().Str("subscription_id", s.ID).Msg("subscription renewed")
					continue
				} else if !errors.Is(err, domain.ErrRenewalFailed) {
					m.log.Warn().Err(err).Str("subscription_id", s.ID).Msg("renewal attempt failed")
				}
			}
			opCtx, cancel := m.opContext(ctx)
			ok, err := m.subs.MarkExpired(opCtx, repository.NoTX, s.ID, now)
			cancel()
			if err != nil {
				m.log.Error().Err(err).Str("subscription_id", s.ID).Msg("failed to expire subscription")
				continue
			}
			if ok {
				expired++
				progressed++
			}
		}
		if len(rows) < m.batchSize || progressed == 0 {
			return expired, nil
		}
	}
}

func (m *SubscriptionManager) GetActive(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()
	s, err := m.subs.FindActiveByUser(opCtx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoActiveSubscription
	}
	return s, err
}

func (m *SubscriptionManager) publish(ctx context.Context, kind adapter.EventKind, s *model.SubscriptionRecord, data map[string]string) {
	if m.events == nil {
		return
	}
	m.events.Publish(ctx, adapter.Event{
		Kind:           kind,
		UserID:         s.UserID,
		Reference:      s.Reference,
		SubscriptionID: s.ID,
		OccurredAt:     m.now(),
		Data:           data,
	})
}

func (m *SubscriptionManager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opTimeout)
}
