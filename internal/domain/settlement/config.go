package settlement

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/money"
)

// CommissionRatePlaces is the number of decimal places commission rates are
// recorded with.
const CommissionRatePlaces = 4

// ValidateCommissionRate checks that a configured rate is within [0, 1] and
// has at most CommissionRatePlaces decimal places.
func ValidateCommissionRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(one) {
		return errors.Wrapf(ErrInvalidCommissionRate, "%s must be within [0, 1]", rate)
	}
	if !rate.Equal(rate.Truncate(CommissionRatePlaces)) {
		return errors.Wrapf(ErrInvalidCommissionRate, "%s has more than %d decimal places", rate, CommissionRatePlaces)
	}
	return nil
}

// Engine applies platform defaults on top of ComputeSettlement and
// ComputeCommissionSplit. The zero value is not usable; use NewEngine.
type Engine struct {
	VATRate                      decimal.Decimal
	FlatShippingFee              money.Fils
	DefaultFreeShippingThreshold money.Fils
	DefaultCommissionRate        decimal.Decimal
}

// NewEngine returns an Engine with the Bahrain platform defaults.
func NewEngine() Engine {
	return Engine{
		VATRate:                      DefaultVATRate,
		FlatShippingFee:              DefaultFlatShippingFee,
		DefaultFreeShippingThreshold: DefaultFreeShippingThreshold,
		DefaultCommissionRate:        DefaultCommissionRate,
	}
}

// Settle computes the settlement for items. Vendors absent from vendors use
// the engine's default free-shipping threshold.
func (e Engine) Settle(items []LineItem, vendors map[string]VendorConfig) (OrderSettlement, error) {
	return computeSettlement(items, func(vendorID string) money.Fils {
		if cfg, ok := vendors[vendorID]; ok {
			return cfg.FreeShippingThreshold
		}
		return e.DefaultFreeShippingThreshold
	}, e.VATRate, e.FlatShippingFee)
}

// CommissionRate returns the effective commission rate for a vendor.
func (e Engine) CommissionRate(cfg VendorConfig) decimal.Decimal {
	if cfg.CommissionRate.Valid {
		return cfg.CommissionRate.Decimal
	}
	return e.DefaultCommissionRate
}

// CommissionSplits computes one split per vendor group, in group order.
func (e Engine) CommissionSplits(s OrderSettlement, vendors map[string]VendorConfig) ([]CommissionSplit, error) {
	splits := make([]CommissionSplit, 0, len(s.VendorGroups))
	for _, g := range s.VendorGroups {
		split, err := ComputeCommissionSplit(g, e.CommissionRate(vendors[g.VendorID]))
		if err != nil {
			return nil, err
		}
		splits = append(splits, split)
	}
	return splits, nil
}
