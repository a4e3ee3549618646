package repository

import (
	"context"
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
)

// SubscriptionRepository is the port for subscription rows. The state-changing
// methods are conditional on the current state and report whether a row moved.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, s *model.SubscriptionRecord) error
	// FindByReference locks the row (FOR UPDATE) when called inside a transaction.
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.SubscriptionRecord, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.SubscriptionRecord, error)
	// LockUser serialises every writer of userID's rows until tx ends.
	LockUser(ctx context.Context, tx Tx, userID string) error
	// MarkActive moves a pending_payment row to active.
	MarkActive(ctx context.Context, tx Tx, id, transactionID string, at time.Time) (bool, error)
	// CancelActiveByUser cancels every active row of userID except exceptID and
	// disables their auto renewal. Returns the rows it cancelled.
	CancelActiveByUser(ctx context.Context, tx Tx, userID, exceptID string, at time.Time) ([]*model.SubscriptionRecord, error)
	ListExpired(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.SubscriptionRecord, error)
	// MarkExpired moves an active row to expired.
	MarkExpired(ctx context.Context, tx Tx, id string, at time.Time) (bool, error)

	// --- Statistics read-only methods ---
	CountByState(ctx context.Context, tx Tx) (map[model.SubscriptionState]int, error)
}
