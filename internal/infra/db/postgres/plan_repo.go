package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*PlanRepo)(nil)

const planCols = `id, name, level, monthly_price, annual_price, permissions, active, created_at`

type PlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

func (r *PlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if plan.IsZero() || plan.Level <= 0 || plan.MonthlyPrice < 0 || plan.AnnualPrice < 0 {
		return domain.ErrInvalidArgument
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	perms := make([]string, 0, len(plan.Permissions))
	for _, p := range plan.Permissions {
		perms = append(perms, string(p))
	}
	const q = `
INSERT INTO plans (` + planCols + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
  SET name          = EXCLUDED.name,
      level         = EXCLUDED.level,
      monthly_price = EXCLUDED.monthly_price,
      annual_price  = EXCLUDED.annual_price,
      permissions   = EXCLUDED.permissions,
      active        = EXCLUDED.active;`
	_, err := execSQL(ctx, r.pool, tx, q, plan.ID, plan.Name, plan.Level, plan.MonthlyPrice, plan.AnnualPrice, perms, plan.Active, plan.CreatedAt)
	return err
}

func (r *PlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+planCols+` FROM plans WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *PlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+planCols+` FROM plans ORDER BY level, id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
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

func scanPlan(row rowScanner) (*model.Plan, error) {
	var p model.Plan
	var perms []string
	if err := row.Scan(&p.ID, &p.Name, &p.Level, &p.MonthlyPrice, &p.AnnualPrice, &perms, &p.Active, &p.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	for _, s := range perms {
		p.Permissions = append(p.Permissions, model.Permission(s))
	}
	return &p, nil
}
