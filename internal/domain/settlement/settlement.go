// Package settlement computes multi-vendor order totals: per-vendor VAT
// decomposition, shipping fees and commission splits.
//
// Everything in this package is pure. Functions only depend on their explicit
// inputs, hold no state and are safe for concurrent use.
package settlement

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/money"
)

var (
	// ErrInvalidLineItem is returned when a line item has a non-positive
	// quantity, a negative unit price or a line total beyond the fils range.
	ErrInvalidLineItem = errors.New("invalid line item")
	// ErrInvalidCommissionRate is returned when a commission rate is outside [0, 1].
	ErrInvalidCommissionRate = errors.New("invalid commission rate")
	// ErrInvalidVATRate is returned when a VAT rate is outside [0, 1).
	ErrInvalidVATRate = errors.New("invalid vat rate")
	// ErrInvalidShippingFee is returned when the flat shipping fee is negative.
	ErrInvalidShippingFee = errors.New("invalid shipping fee")
	// ErrAmountOverflow is returned when a vendor or order total does not fit
	// into fils.
	ErrAmountOverflow = money.ErrOverflow
)

// Line item fields reported by InvalidLineItemError.
const (
	FieldQuantity  = "quantity"
	FieldUnitPrice = "unitPrice"
)

// InvalidLineItemError names the first offending line item and field.
type InvalidLineItemError struct {
	Index     int
	ProductID string
	Field     string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid line item %d (product %s): %s", e.Index, e.ProductID, e.Field)
}

// Unwrap allows errors.Is(err, ErrInvalidLineItem).
func (e *InvalidLineItemError) Unwrap() error {
	return ErrInvalidLineItem
}

// InvalidCommissionRateError carries the rejected commission rate.
type InvalidCommissionRateError struct {
	VendorID string
	Rate     decimal.Decimal
}

func (e *InvalidCommissionRateError) Error() string {
	return fmt.Sprintf("commission rate %s for vendor %s must be within [0, 1]", e.Rate, e.VendorID)
}

// Unwrap allows errors.Is(err, ErrInvalidCommissionRate).
func (e *InvalidCommissionRateError) Unwrap() error {
	return ErrInvalidCommissionRate
}

// LineItem is one product quantity in a cart or order.
type LineItem struct {
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	// UnitPrice is the VAT-inclusive sale price.
	UnitPrice money.Fils `json:"unit_price"`
	Quantity  int        `json:"quantity"`
}

// Total returns UnitPrice times Quantity.
func (i LineItem) Total() (money.Fils, error) {
	return i.UnitPrice.Mul(i.Quantity)
}

// VendorConfig holds the vendor-configured settlement parameters.
type VendorConfig struct {
	Slug                  string
	FreeShippingThreshold money.Fils
	// CommissionRate overrides the platform default when valid.
	CommissionRate decimal.NullDecimal
}

// VendorGroup aggregates the line items of one vendor.
type VendorGroup struct {
	VendorID              string
	FreeShippingThreshold money.Fils
	Items                 []LineItem

	ItemsTotal               money.Fils
	SubtotalExVAT            money.Fils
	VATAmount                money.Fils
	QualifiesForFreeShipping bool
	ShippingFee              money.Fils
	VendorTotal              money.Fils
}

// OrderSettlement is the computed result for a whole order.
type OrderSettlement struct {
	VendorGroups []VendorGroup

	OverallSubtotalExVAT money.Fils
	OverallVAT           money.Fils
	OverallShipping      money.Fils
	OverallTotal         money.Fils
}

// ItemsTotal returns the VAT-inclusive merchandise total across vendors.
func (s OrderSettlement) ItemsTotal() money.Fils {
	return s.OverallSubtotalExVAT + s.OverallVAT
}

// Group returns the vendor group for vendorID.
func (s OrderSettlement) Group(vendorID string) (VendorGroup, bool) {
	for _, g := range s.VendorGroups {
		if g.VendorID == vendorID {
			return g, true
		}
	}
	return VendorGroup{}, false
}

// CommissionSplit is the payout accounting for one vendor.
type CommissionSplit struct {
	VendorID         string
	CommissionRate   decimal.Decimal
	CommissionAmount money.Fils
	VendorEarnings   money.Fils
}
