package model

import (
	"time"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
)

// Permission is a capability flag granted by a plan.
type Permission string

const (
	PermissionCourses      Permission = "courses"
	PermissionTutorials    Permission = "tutorials"
	PermissionSimulator    Permission = "simulator"
	PermissionLiveClass    Permission = "live_classes"
	PermissionDownloads    Permission = "downloads"
	PermissionCommunity    Permission = "community"
	PermissionCertificates Permission = "certificates"
)

// Plan is a membership tier. Owned by the catalog; read-only here.
type Plan struct {
	ID           string
	Name         string
	Level        int // tier rank: basica=1 < intermedia=2 < avanzada=3
	MonthlyPrice int64
	AnnualPrice  int64
	Permissions  []Permission
	Active       bool
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// PriceFor returns the gross price of the plan for the given billing period.
func (p *Plan) PriceFor(period Period) (int64, error) {
	switch period {
	case PeriodMonthly:
		return p.MonthlyPrice, nil
	case PeriodAnnual:
		return p.AnnualPrice, nil
	}
	return 0, domain.ErrInvalidArgument
}

func (p *Plan) Has(perm Permission) bool {
	for _, x := range p.Permissions {
		if x == perm {
			return true
		}
	}
	return false
}

// Product is what the catalog returns for a purchasable item.
type Product struct {
	Kind  ProductKind
	RefID string
	Name  string
	Gross int64
}
