package settlement

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/money"
)

// Platform defaults for Bahrain.
var (
	DefaultVATRate        = decimal.RequireFromString("0.10")
	DefaultCommissionRate = decimal.RequireFromString("0.10")
)

const (
	// DefaultFlatShippingFee is charged per vendor below its free-shipping threshold.
	DefaultFlatShippingFee money.Fils = 5000
	// DefaultFreeShippingThreshold applies to vendors without a configuration.
	DefaultFreeShippingThreshold money.Fils = 100000
)

var (
	one = decimal.NewFromInt(1)
)

// ComputeSettlement partitions items by vendor and computes per-vendor and
// overall totals.
//
// Vendors appear in first-seen order and items keep their insertion order.
// Vendors missing from vendors get a zero free-shipping threshold, i.e. they
// always ship for free; use Engine for a platform default instead.
// The whole batch is rejected on the first invalid line item, and with
// ErrAmountOverflow when a total does not fit into fils.
func ComputeSettlement(
	items []LineItem,
	vendors map[string]VendorConfig,
	vatRate decimal.Decimal,
	flatShippingFee money.Fils,
) (OrderSettlement, error) {
	return computeSettlement(items, func(vendorID string) money.Fils {
		return vendors[vendorID].FreeShippingThreshold
	}, vatRate, flatShippingFee)
}

func computeSettlement(
	items []LineItem,
	threshold func(vendorID string) money.Fils,
	vatRate decimal.Decimal,
	flatShippingFee money.Fils,
) (OrderSettlement, error) {
	if err := validateVATRate(vatRate); err != nil {
		return OrderSettlement{}, err
	}
	if flatShippingFee < 0 {
		return OrderSettlement{}, errors.Wrapf(ErrInvalidShippingFee, "fee %s", flatShippingFee)
	}
	if err := validateItems(items); err != nil {
		return OrderSettlement{}, err
	}

	groups := partition(items)
	divisor := one.Add(vatRate)

	var s OrderSettlement
	s.VendorGroups = make([]VendorGroup, len(groups))
	for i, g := range groups {
		g.FreeShippingThreshold = threshold(g.VendorID)
		itemsTotal, err := groupItemsTotal(g.Items)
		if err != nil {
			return OrderSettlement{}, err
		}
		g.ItemsTotal = itemsTotal
		g.SubtotalExVAT, g.VATAmount = splitVAT(g.ItemsTotal, divisor)

		g.QualifiesForFreeShipping = g.ItemsTotal >= g.FreeShippingThreshold
		if !g.QualifiesForFreeShipping {
			g.ShippingFee = flatShippingFee
		}
		if g.VendorTotal, err = money.Add(g.ItemsTotal, g.ShippingFee); err != nil {
			return OrderSettlement{}, errors.Wrapf(err, "total of vendor %s", g.VendorID)
		}
		if s.OverallTotal, err = money.Add(s.OverallTotal, g.VendorTotal); err != nil {
			return OrderSettlement{}, errors.Wrap(err, "order total")
		}

		// All parts are non-negative and bounded by OverallTotal.
		s.OverallSubtotalExVAT += g.SubtotalExVAT
		s.OverallVAT += g.VATAmount
		s.OverallShipping += g.ShippingFee
		s.VendorGroups[i] = g
	}
	return s, nil
}

// groupItemsTotal sums the line totals of one vendor's items. Line totals
// have already been checked by validateItems.
func groupItemsTotal(items []LineItem) (money.Fils, error) {
	var total money.Fils
	for _, item := range items {
		line, _ := item.Total()
		sum, err := money.Add(total, line)
		if err != nil {
			return 0, errors.Wrapf(err, "items of vendor %s", item.VendorID)
		}
		total = sum
	}
	return total, nil
}

// ComputeCommissionSplit splits a vendor group's ex-VAT subtotal between the
// platform commission and the vendor's earnings.
//
// The commission is rounded half-up to the fil and the vendor receives the
// residual, so both parts always add up to the subtotal.
func ComputeCommissionSplit(group VendorGroup, rate decimal.Decimal) (CommissionSplit, error) {
	if rate.IsNegative() || rate.GreaterThan(one) {
		return CommissionSplit{}, &InvalidCommissionRateError{VendorID: group.VendorID, Rate: rate}
	}
	commission := money.Fils(decimal.NewFromInt(int64(group.SubtotalExVAT)).Mul(rate).Round(0).IntPart())
	return CommissionSplit{
		VendorID:         group.VendorID,
		CommissionRate:   rate,
		CommissionAmount: commission,
		VendorEarnings:   group.SubtotalExVAT - commission,
	}, nil
}

// splitVAT extracts the ex-VAT amount from a VAT-inclusive total. The ex-VAT
// part is rounded half-up and the residual is assigned to VAT.
func splitVAT(total money.Fils, divisor decimal.Decimal) (exVAT, vat money.Fils) {
	exVAT = money.Fils(decimal.NewFromInt(int64(total)).DivRound(divisor, 0).IntPart())
	return exVAT, total - exVAT
}

func validateVATRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return errors.Wrapf(ErrInvalidVATRate, "rate %s must be within [0, 1)", rate)
	}
	return nil
}

func validateItems(items []LineItem) error {
	for i, item := range items {
		if item.Quantity <= 0 {
			return &InvalidLineItemError{Index: i, ProductID: item.ProductID, Field: FieldQuantity}
		}
		if item.UnitPrice < 0 {
			return &InvalidLineItemError{Index: i, ProductID: item.ProductID, Field: FieldUnitPrice}
		}
		if _, err := item.Total(); err != nil {
			return &InvalidLineItemError{Index: i, ProductID: item.ProductID, Field: FieldQuantity}
		}
	}
	return nil
}

// partition groups items by vendor, preserving first-seen vendor order and
// item order within each vendor.
func partition(items []LineItem) []VendorGroup {
	var groups []VendorGroup
	index := make(map[string]int)
	for _, item := range items {
		i, ok := index[item.VendorID]
		if !ok {
			i = len(groups)
			index[item.VendorID] = i
			groups = append(groups, VendorGroup{VendorID: item.VendorID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
