package repository

import (
	"context"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
)

// PlanRepository is the port for membership plan persistence.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
}
