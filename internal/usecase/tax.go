// File: internal/usecase/tax.go
package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain"
)

// TaxBreakdown splits a tax-inclusive gross price.
type TaxBreakdown struct {
	Base  int64
	Tax   int64
	Total int64
}

// TaxCalculator computes the IVA part of a tax-inclusive price. The tax is
// Rate applied to the gross, rounded half away from zero; the base is the rest.
type TaxCalculator struct {
	rate decimal.Decimal
}

// NewTaxCalculator parses rate ("0.19"). Rates outside [0, 1) are rejected.
func NewTaxCalculator(rate string) (*TaxCalculator, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("tax rate %q: %w", rate, domain.ErrInvalidArgument)
	}
	if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate %q out of range: %w", rate, domain.ErrInvalidArgument)
	}
	return &TaxCalculator{rate: r}, nil
}

func (c *TaxCalculator) Rate() string { return c.rate.String() }

// Compute returns base + tax == total == gross for every non-negative gross.
func (c *TaxCalculator) Compute(gross int64) (TaxBreakdown, error) {
	if gross < 0 {
		return TaxBreakdown{}, domain.ErrInvalidAmount
	}
	// decimal.Round rounds half away from zero
	tax := decimal.NewFromInt(gross).Mul(c.rate).Round(0).IntPart()
	return TaxBreakdown{Base: gross - tax, Tax: tax, Total: gross}, nil
}
