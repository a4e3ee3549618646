package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionCols = `id, user_id, plan_id, period, state, start_date, expiration_date, cancellation_date,
  amount_paid, reference, transaction_id, auto_renew, created_at, updated_at`

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func scanSubscription(row rowScanner) (*model.SubscriptionRecord, error) {
	s := &model.SubscriptionRecord{}
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Period, &s.State, &s.StartDate, &s.ExpirationDate, &s.CancellationDate,
		&s.AmountPaid, &s.Reference, &s.TransactionID, &s.AutoRenew, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return s, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.SubscriptionRecord) error {
	if s == nil || s.ID == "" || s.UserID == "" || s.Reference == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO subscriptions (` + subscriptionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.PlanID, s.Period, s.State, s.StartDate, s.ExpirationDate, s.CancellationDate,
		s.AmountPaid, s.Reference, s.TransactionID, s.AutoRenew, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *subscriptionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.SubscriptionRecord, error) {
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE reference=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q, reference)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionRecord, error) {
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE user_id=$1 AND state='active' ORDER BY start_date DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.queryOne(ctx, tx, q, userID)
}

// LockUser takes a transaction-scoped advisory lock keyed on the user. It is
// released on commit or rollback, so it only makes sense inside a tx.
func (r *subscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if !inTx(tx) {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1);`, hashToInt64(userID))
	return err
}

func (r *subscriptionRepo) MarkActive(ctx context.Context, tx repository.Tx, id, transactionID string, at time.Time) (bool, error) {
	const q = `
UPDATE subscriptions
   SET state='active', transaction_id=$2, updated_at=$3
 WHERE id=$1 AND state='pending_payment';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, transactionID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) CancelActiveByUser(ctx context.Context, tx repository.Tx, userID, exceptID string, at time.Time) ([]*model.SubscriptionRecord, error) {
	const q = `
UPDATE subscriptions
   SET state='cancelled', cancellation_date=$3, auto_renew=FALSE, updated_at=$3
 WHERE user_id=$1 AND state='active' AND id <> $2
RETURNING ` + subscriptionCols + `;`
	return r.queryMany(ctx, tx, q, userID, exceptID, at)
}

func (r *subscriptionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.SubscriptionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subscriptionCols + `
  FROM subscriptions
 WHERE state='active' AND expiration_date < $1
 ORDER BY expiration_date
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, now, limit)
}

func (r *subscriptionRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	const q = `UPDATE subscriptions SET state='expired', updated_at=$2 WHERE id=$1 AND state='active';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) CountByState(ctx context.Context, tx repository.Tx) (map[model.SubscriptionState]int, error) {
	const q = `SELECT state, COUNT(*) FROM subscriptions GROUP BY state;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, scanErr(err)
		}
		counts[model.SubscriptionState(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.SubscriptionRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.SubscriptionRecord, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SubscriptionRecord
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
