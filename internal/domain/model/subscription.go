package model

import (
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
)

type SubscriptionState string

const (
	SubscriptionStatePendingPayment SubscriptionState = "pending_payment"
	SubscriptionStateActive         SubscriptionState = "active"
	SubscriptionStatePaused         SubscriptionState = "paused"
	SubscriptionStateCancelled      SubscriptionState = "cancelled"
	SubscriptionStateExpired        SubscriptionState = "expired"
)

type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodAnnual  Period = "annual"
)

func (p Period) Valid() bool { return p == PeriodMonthly || p == PeriodAnnual }

// End returns the expiration for a subscription of period p starting at start.
func (p Period) End(start time.Time) (time.Time, error) {
	switch p {
	case PeriodMonthly:
		return start.AddDate(0, 1, 0), nil
	case PeriodAnnual:
		return start.AddDate(1, 0, 0), nil
	}
	return time.Time{}, domain.ErrInvalidArgument
}

// SubscriptionRecord is one membership instance of a user. At most one row per
// user may be active at any time.
type SubscriptionRecord struct {
	ID               string
	UserID           string
	PlanID           string
	Period           Period
	State            SubscriptionState
	StartDate        time.Time
	ExpirationDate   time.Time
	CancellationDate *time.Time
	AmountPaid       int64
	Reference        string // payment_records.reference
	TransactionID    *string
	AutoRenew        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPendingSubscription builds a pending_payment row whose term starts at now.
func NewPendingSubscription(id, userID, planID string, period Period, amountPaid int64, reference string, now time.Time) (*SubscriptionRecord, error) {
	if id == "" || userID == "" || planID == "" || reference == "" || amountPaid < 0 {
		return nil, domain.ErrInvalidArgument
	}
	end, err := period.End(now)
	if err != nil {
		return nil, err
	}
	return &SubscriptionRecord{
		ID:             id,
		UserID:         userID,
		PlanID:         planID,
		Period:         period,
		State:          SubscriptionStatePendingPayment,
		StartDate:      now,
		ExpirationDate: end,
		AmountPaid:     amountPaid,
		Reference:      reference,
		AutoRenew:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsExpiredAt reports whether an active subscription is past its term at now.
func (s *SubscriptionRecord) IsExpiredAt(now time.Time) bool {
	return s.State == SubscriptionStateActive && s.ExpirationDate.Before(now)
}

// SameTransaction reports whether the row was activated with txID.
func (s *SubscriptionRecord) SameTransaction(txID string) bool {
	return s.TransactionID != nil && *s.TransactionID == txID
}
