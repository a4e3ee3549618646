package adapter

import (
	"context"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"
)

// Catalog is the content catalog collaborator. The core never prices products
// beyond tax math; period is only meaningful for memberships.
type Catalog interface {
	GetPrice(ctx context.Context, kind model.ProductKind, refID string, period model.Period) (*model.Product, error)
}
