package repository

import (
	"context"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
)

// -----------------------------
// Payment records
// -----------------------------

// PaymentRecordStore owns the payment_records rows. It is the only writer of
// the pending -> exitoso|fallido transition.
type PaymentRecordStore interface {
	// Create inserts rec in state pending. ErrDuplicateReference if the reference exists.
	Create(ctx context.Context, tx Tx, rec *model.PaymentRecord) error
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.PaymentRecord, error)
	// Transition moves a pending record to `to`. applied is false when the
	// record was already in `to` with the same transaction id (replay);
	// ErrConflict when it sits in the other terminal state.
	Transition(ctx context.Context, tx Tx, reference string, to model.PaymentState, f model.TransitionFields) (rec *model.PaymentRecord, applied bool, err error)
	// ListPaidPendingActivation returns successful membership payments whose
	// subscription is still pending_payment and were updated before olderThan.
	ListPaidPendingActivation(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)
	SumByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
