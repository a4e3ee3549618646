package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

var _ repository.PaymentRecordStore = (*paymentRecordRepo)(nil)

const paymentCols = `id, user_id, product_kind, product_ref_id, product_name, description,
  gross_amount, tax_base, tax_amount, currency, reference, invoice, state,
  response_code, response_text, payment_method, transaction_id, metadata, created_at, updated_at`

type paymentRecordRepo struct{ pool *pgxpool.Pool }

func NewPaymentRecordRepo(pool *pgxpool.Pool) *paymentRecordRepo {
	return &paymentRecordRepo{pool: pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*model.PaymentRecord, error) {
	p := &model.PaymentRecord{}
	var meta []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.ProductKind, &p.ProductRefID, &p.ProductName, &p.Description,
		&p.GrossAmount, &p.TaxBase, &p.TaxAmount, &p.Currency, &p.Reference, &p.Invoice, &p.State,
		&p.ResponseCode, &p.ResponseText, &p.PaymentMethod, &p.TransactionID, &meta, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	md, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	p.Metadata = md
	return p, nil
}

// decodeMetadata rejects unknown keys so the blob stays typed.
func decodeMetadata(b []byte) (model.PaymentMetadata, error) {
	var md model.PaymentMetadata
	if len(b) == 0 {
		return md, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&md); err != nil {
		return md, fmt.Errorf("%w: metadata: %v", domain.ErrReadDatabaseRow, err)
	}
	return md, nil
}

func (r *paymentRecordRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	if err := p.Validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if p.State == "" {
		p.State = model.PaymentStatePending
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	const q = `
INSERT INTO payment_records (` + paymentCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20);`
	_, err = execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.ProductKind, p.ProductRefID, p.ProductName, p.Description,
		p.GrossAmount, p.TaxBase, p.TaxAmount, p.Currency, p.Reference, p.Invoice, p.State,
		p.ResponseCode, p.ResponseText, p.PaymentMethod, p.TransactionID, meta, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *paymentRecordRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentCols + ` FROM payment_records WHERE reference=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, reference)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// Transition is a compare-and-set on state='pending'. When no row moves the
// stored record decides between replay and conflict.
func (r *paymentRecordRepo) Transition(ctx context.Context, tx repository.Tx, reference string, to model.PaymentState, f model.TransitionFields) (*model.PaymentRecord, bool, error) {
	if !to.IsTerminal() {
		return nil, false, domain.ErrInvalidArgument
	}
	var trace []byte
	if f.Trace != nil {
		b, err := json.Marshal(f.Trace)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		trace = b
	}

	const q = `
UPDATE payment_records
   SET state=$2, response_code=$3, response_text=$4, transaction_id=$5, payment_method=$6,
       metadata = CASE WHEN $7::jsonb IS NULL THEN metadata
                  ELSE jsonb_set(metadata, '{trace}', COALESCE(metadata->'trace', '{}'::jsonb) || $7::jsonb) END,
       updated_at=NOW()
 WHERE reference=$1 AND state='pending'
RETURNING ` + paymentCols + `;`
	row, err := pickRow(ctx, r.pool, tx, q, reference, to, f.ResponseCode, f.ResponseText, f.TransactionID, f.PaymentMethod, trace)
	if err != nil {
		return nil, false, err
	}
	rec, err := scanPayment(row)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	cur, err := r.FindByReference(ctx, tx, reference)
	if err != nil {
		return nil, false, err
	}
	if err := cur.CheckReplay(to, f.TransactionID); err != nil {
		return cur, false, err
	}
	return cur, false, nil
}

func (r *paymentRecordRepo) ListPaidPendingActivation(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT p.id, p.user_id, p.product_kind, p.product_ref_id, p.product_name, p.description,
       p.gross_amount, p.tax_base, p.tax_amount, p.currency, p.reference, p.invoice, p.state,
       p.response_code, p.response_text, p.payment_method, p.transaction_id, p.metadata, p.created_at, p.updated_at
  FROM payment_records p
  JOIN subscriptions s ON s.reference = p.reference
 WHERE p.state='exitoso' AND p.product_kind='membership'
   AND s.state='pending_payment' AND p.updated_at < $1
 ORDER BY p.updated_at
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// SumByPeriod totals successful gross amounts since the start of the current
// week, month or year.
func (r *paymentRecordRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	switch period {
	case "week", "month", "year":
	default:
		return 0, domain.ErrInvalidArgument
	}
	const q = `SELECT COALESCE(SUM(gross_amount),0) FROM payment_records WHERE state='exitoso' AND updated_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, scanErr(err)
	}
	return sum, nil
}
