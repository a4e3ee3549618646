package adapter

import (
	"context"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
)

type EventKind string

const (
	EventPaymentConfirmed      EventKind = "payment_confirmed"
	EventPaymentFailed         EventKind = "payment_failed"
	EventSubscriptionActivated EventKind = "subscription_activated"
	EventSubscriptionCancelled EventKind = "subscription_cancelled"
)

// Event is a fire-and-forget notification for the notification subsystem.
type Event struct {
	ID             string            `json:"id"`
	Kind           EventKind         `json:"kind"`
	UserID         string            `json:"user_id"`
	Reference      string            `json:"reference,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Data           map[string]string `json:"data,omitempty"`
}

// EventPublisher never blocks the caller on delivery and never reports
// delivery failures back to it.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event)
}

// Renewer attempts to renew a subscription that reached its expiration date
// with auto renewal enabled. A non-nil error means the row must expire.
type Renewer interface {
	Renew(ctx context.Context, sub *model.SubscriptionRecord) error
}
