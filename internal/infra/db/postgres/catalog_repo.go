package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/adapter"
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/ports/repository"
)

var _ adapter.Catalog = (*CatalogRepo)(nil)

// CatalogRepo prices courses and tutorials from their tables and memberships
// from the plan repository.
type CatalogRepo struct {
	pool  *pgxpool.Pool
	plans repository.PlanRepository
}

func NewCatalogRepo(pool *pgxpool.Pool, plans repository.PlanRepository) *CatalogRepo {
	return &CatalogRepo{pool: pool, plans: plans}
}

func (c *CatalogRepo) GetPrice(ctx context.Context, kind model.ProductKind, refID string, period model.Period) (*model.Product, error) {
	if refID == "" {
		return nil, domain.ErrInvalidArgument
	}
	switch kind {
	case model.ProductCourse:
		return c.content(ctx, kind, `SELECT title, price FROM courses WHERE id=$1 AND published;`, refID)
	case model.ProductTutorial:
		return c.content(ctx, kind, `SELECT title, price FROM tutorials WHERE id=$1 AND published;`, refID)
	case model.ProductMembership:
		plan, err := c.plans.FindByID(ctx, repository.NoTX, refID)
		if err != nil {
			return nil, err
		}
		if !plan.Active {
			return nil, domain.ErrNotFound
		}
		price, err := plan.PriceFor(period)
		if err != nil {
			return nil, err
		}
		return &model.Product{Kind: kind, RefID: plan.ID, Name: plan.Name, Gross: price}, nil
	}
	return nil, domain.ErrInvalidArgument
}

func (c *CatalogRepo) content(ctx context.Context, kind model.ProductKind, q, refID string) (*model.Product, error) {
	row, err := pickRow(ctx, c.pool, repository.NoTX, q, refID)
	if err != nil {
		return nil, err
	}
	p := &model.Product{Kind: kind, RefID: refID}
	if err := row.Scan(&p.Name, &p.Gross); err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

// SaveContent upserts a course or tutorial row. Used by the seed command.
func (c *CatalogRepo) SaveContent(ctx context.Context, kind model.ProductKind, id, title string, price int64) error {
	if id == "" || price < 0 {
		return domain.ErrInvalidArgument
	}
	var q string
	switch kind {
	case model.ProductCourse:
		q = `INSERT INTO courses (id, title, price) VALUES ($1,$2,$3) ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, price=EXCLUDED.price;`
	case model.ProductTutorial:
		q = `INSERT INTO tutorials (id, title, price) VALUES ($1,$2,$3) ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, price=EXCLUDED.price;`
	default:
		return errors.New("catalog: only courses and tutorials are stored as content")
	}
	_, err := execSQL(ctx, c.pool, repository.NoTX, q, id, title, price)
	return err
}
