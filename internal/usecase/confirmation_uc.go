// File: internal/usecase/confirmation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

type ConfirmationStatus string

const (
	StatusConfirmed         ConfirmationStatus = "confirmed"
	StatusFailed            ConfirmationStatus = "failed"
	StatusActivationPending ConfirmationStatus = "activation_pending"
)

// ConfirmationOutcome is what the webhook and response page report back.
// Replayed is true when nothing was mutated by this call. PaymentApplied is
// true only for the call that moved the payment out of pending.
type ConfirmationOutcome struct {
	Reference      string                    `json:"reference"`
	Status         ConfirmationStatus        `json:"status"`
	Reason         string                    `json:"reason,omitempty"`
	Replayed       bool                      `json:"replayed"`
	PaymentApplied bool                      `json:"-"`
	Payment        *model.PaymentRecord      `json:"-"`
	Subscription   *model.SubscriptionRecord `json:"-"`
}

type ConfirmationUseCase interface {
	// Confirm applies a gateway confirmation. reference may be empty, in which
	// case the one carried by the payload is used.
	Confirm(ctx context.Context, reference string, raw adapter.RawPayload) (*ConfirmationOutcome, error)
	// ConfirmByGatewayRef fetches the transaction from the gateway and confirms it.
	ConfirmByGatewayRef(ctx context.Context, gatewayRef string) (*ConfirmationOutcome, error)
	// ReconcileActivations retries activation of paid memberships still pending.
	ReconcileActivations(ctx context.Context, olderThan time.Time, limit int) (int, error)
	GetPayment(ctx context.Context, reference string) (*model.PaymentRecord, error)
}

var _ ConfirmationUseCase = (*Orchestrator)(nil)

// Orchestrator is the single entry point for gateway confirmations. Every
// step is conditional on stored state, so the whole call is safe to replay.
type Orchestrator struct {
	gateway   adapter.PaymentGateway
	payments  repository.PaymentRecordStore
	subs      SubscriptionUseCase
	events    adapter.EventPublisher
	retry     RetryPolicy
	opTimeout time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

func NewOrchestrator(
	gateway adapter.PaymentGateway,
	payments repository.PaymentRecordStore,
	subs SubscriptionUseCase,
	events adapter.EventPublisher,
	retry RetryPolicy,
	opTimeout time.Duration,
	logger *zerolog.Logger,
) *Orchestrator {
	l := logger.With().Str("component", "Orchestrator").Logger()
	return &Orchestrator{
		gateway:   gateway,
		payments:  payments,
		subs:      subs,
		events:    events,
		retry:     retry,
		opTimeout: opTimeout,
		log:       &l,
		now:       time.Now,
	}
}

func (o *Orchestrator) Confirm(ctx context.Context, reference string, raw adapter.RawPayload) (*ConfirmationOutcome, error) {
	res, err := o.gateway.ParseConfirmation(raw)
	if err != nil {
		o.log.Warn().Err(err).Str("reference", reference).Msg("malformed confirmation payload")
		return nil, domain.WrapRef("Orchestrator.Confirm", reference, err)
	}
	if reference != "" && reference != res.Reference {
		return nil, domain.WrapRef("Orchestrator.Confirm", reference,
			fmt.Errorf("%w: payload reference %q", domain.ErrMalformedPayload, res.Reference))
	}
	ref := res.Reference
	log := o.log.With().Str("reference", ref).Logger()

	var rec *model.PaymentRecord
	err = o.withStore(ctx, func(ctx context.Context) error {
		var e error
		rec, e = o.payments.FindByReference(ctx, repository.NoTX, ref)
		return e
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("confirmation for unknown reference")
		}
		return nil, domain.WrapRef("Orchestrator.Confirm", ref, err)
	}
	o.checkAmount(&log, rec, res)

	fields := o.transitionFields(res)
	if !res.Success {
		return o.applyFailure(ctx, &log, rec, fields)
	}
	return o.applySuccess(ctx, &log, rec, fields)
}

func (o *Orchestrator) applyFailure(ctx context.Context, log *zerolog.Logger, rec *model.PaymentRecord, f model.TransitionFields) (*ConfirmationOutcome, error) {
	updated, applied, err := o.transition(ctx, rec.Reference, model.PaymentStateFailed, f)
	if err != nil {
		return nil, o.transitionError(log, rec.Reference, err)
	}
	reason := strings.TrimSpace(updated.ResponseText)
	if reason == "" {
		reason = "payment rejected by the gateway"
	}
	if applied {
		log.Info().Str("response_code", f.ResponseCode).Msg("payment failed")
		o.publish(ctx, adapter.EventPaymentFailed, updated, map[string]string{"reason": reason})
	}
	return &ConfirmationOutcome{
		Reference:      rec.Reference,
		Status:         StatusFailed,
		Reason:         reason,
		Replayed:       !applied,
		PaymentApplied: applied,
		Payment:        updated,
	}, nil
}

func (o *Orchestrator) applySuccess(ctx context.Context, log *zerolog.Logger, rec *model.PaymentRecord, f model.TransitionFields) (*ConfirmationOutcome, error) {
	updated, applied, err := o.transition(ctx, rec.Reference, model.PaymentStateSuccess, f)
	if err != nil {
		return nil, o.transitionError(log, rec.Reference, err)
	}
	if applied {
		log.Info().Str("transaction_id", f.TransactionID).Int64("gross", updated.GrossAmount).Msg("payment confirmed")
		o.publish(ctx, adapter.EventPaymentConfirmed, updated, map[string]string{
			"product_kind":   string(updated.ProductKind),
			"product_ref_id": updated.ProductRefID,
		})
	}
	out := &ConfirmationOutcome{
		Reference:      rec.Reference,
		Status:         StatusConfirmed,
		Replayed:       !applied,
		PaymentApplied: applied,
		Payment:        updated,
	}
	if updated.ProductKind != model.ProductMembership {
		return out, nil
	}

	// Activation runs on replays too: a previous partial activation heals here.
	var subApplied bool
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var e error
		out.Subscription, subApplied, e = o.subs.Activate(ctx, rec.Reference, f.TransactionID)
		return e
	})
	if err != nil {
		log.Error().Err(err).Str("alarm", "partial_activation").Msg("payment recorded but activation failed")
		out.Status = StatusActivationPending
		out.Reason = "payment received; membership activation pending"
		return out, domain.WrapRef("Orchestrator.Confirm", rec.Reference, fmt.Errorf("%w: %w", domain.ErrPartialActivation, err))
	}
	out.Replayed = out.Replayed && !subApplied
	return out, nil
}

func (o *Orchestrator) ConfirmByGatewayRef(ctx context.Context, gatewayRef string) (*ConfirmationOutcome, error) {
	if strings.TrimSpace(gatewayRef) == "" {
		return nil, domain.ErrValidation
	}
	var raw adapter.RawPayload
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		var e error
		raw, e = o.gateway.Lookup(ctx, gatewayRef)
		return e
	})
	if err != nil {
		return nil, domain.WrapRef("Orchestrator.ConfirmByGatewayRef", "", err)
	}
	return o.Confirm(ctx, "", raw)
}

func (o *Orchestrator) ReconcileActivations(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	var pending []*model.PaymentRecord
	err := o.withStore(ctx, func(ctx context.Context) error {
		var e error
		pending, e = o.payments.ListPaidPendingActivation(ctx, repository.NoTX, olderThan, limit)
		return e
	})
	if err != nil {
		return 0, domain.WrapRef("Orchestrator.ReconcileActivations", "", err)
	}
	healed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return healed, ctx.Err()
		}
		_, applied, err := o.subs.Activate(ctx, p.Reference, p.TransactionID)
		if err != nil {
			o.log.Error().Err(err).Str("reference", p.Reference).Str("alarm", "partial_activation").Msg("activation retry failed")
			continue
		}
		if applied {
			healed++
		}
	}
	return healed, nil
}

func (o *Orchestrator) GetPayment(ctx context.Context, reference string) (*model.PaymentRecord, error) {
	var rec *model.PaymentRecord
	err := o.withStore(ctx, func(ctx context.Context) error {
		var e error
		rec, e = o.payments.FindByReference(ctx, repository.NoTX, reference)
		return e
	})
	return rec, err
}

func (o *Orchestrator) transition(ctx context.Context, reference string, to model.PaymentState, f model.TransitionFields) (*model.PaymentRecord, bool, error) {
	var (
		rec     *model.PaymentRecord
		applied bool
	)
	err := o.withStore(ctx, func(ctx context.Context) error {
		var e error
		rec, applied, e = o.payments.Transition(ctx, repository.NoTX, reference, to, f)
		return e
	})
	return rec, applied, err
}

func (o *Orchestrator) transitionError(log *zerolog.Logger, reference string, err error) error {
	if errors.Is(err, domain.ErrConflict) {
		log.Error().Err(err).Str("alarm", "data_integrity").Msg("payment state conflict")
	}
	return domain.WrapRef("Orchestrator.Confirm", reference, err)
}

// withStore runs fn under the retry policy with a bounded timeout per attempt.
func (o *Orchestrator) withStore(ctx context.Context, fn func(ctx context.Context) error) error {
	return o.retry.Do(ctx, func(ctx context.Context) error {
		if o.opTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.opTimeout)
			defer cancel()
		}
		return fn(ctx)
	})
}

func (o *Orchestrator) transitionFields(res *adapter.ConfirmationResult) model.TransitionFields {
	at := o.now()
	return model.TransitionFields{
		ResponseCode:  res.ResponseCode,
		ResponseText:  res.ResponseText,
		TransactionID: res.TransactionID,
		PaymentMethod: res.PaymentMethod,
		Trace: &model.TechnicalTrace{
			GatewayRef:      res.GatewayRef,
			BankName:        res.BankName,
			RawResponseCode: res.ResponseCode,
			ConfirmedAt:     &at,
		},
	}
}

// checkAmount only alarms: the gateway is the authority on what was charged.
func (o *Orchestrator) checkAmount(log *zerolog.Logger, rec *model.PaymentRecord, res *adapter.ConfirmationResult) {
	if res.Amount == "" {
		return
	}
	amount, err := decimal.NewFromString(res.Amount)
	if err != nil {
		log.Warn().Str("amount", res.Amount).Msg("unparseable confirmation amount")
		return
	}
	if !amount.Equal(decimal.NewFromInt(rec.GrossAmount)) {
		log.Warn().Str("alarm", "amount_mismatch").Int64("expected", rec.GrossAmount).Str("received", res.Amount).Msg("confirmation amount differs from record")
	}
}

func (o *Orchestrator) publish(ctx context.Context, kind adapter.EventKind, rec *model.PaymentRecord, data map[string]string) {
	if o.events == nil {
		return
	}
	o.events.Publish(ctx, adapter.Event{
		Kind:       kind,
		UserID:     rec.UserID,
		Reference:  rec.Reference,
		OccurredAt: o.now(),
		Data:       data,
	})
}
