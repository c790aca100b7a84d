// Package checkout turns a cart into a persisted, numbered and charged order.
//
// The service does the I/O around the pure settlement engine. It loads vendor
// configuration before settling, then numbers, persists and charges the
// result.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/payment"
)

var (
	// ErrEmptyItems is returned when an order is placed without line items.
	ErrEmptyItems = errors.New("items required")
	// ErrDuplicateOrderNumber is returned by a Repository when an order or
	// vendor order number is already taken.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	// ErrOrderNumberExhausted is returned when every numbering attempt collided.
	ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")
	// ErrOrderNotFound is returned when no order matches a lookup.
	ErrOrderNotFound = errors.New("order not found")
)

// Status is the lifecycle state of a persisted order.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
)

// Order is a settled order as persisted.
type Order struct {
	ID               string
	OrderNumber      string
	Status           Status
	CustomerPhone    string
	BillingVATNumber string
	PaymentMethod    payment.Method
	PaymentID        string
	Settlement       settlement.OrderSettlement
	VendorOrders     []VendorOrder
	CreatedAt        time.Time
}

// VendorOrder is the part of an order fulfilled and paid out per vendor.
type VendorOrder struct {
	VendorID          string
	VendorOrderNumber string
	Group             settlement.VendorGroup
	Commission        settlement.CommissionSplit
}

// Repository persists orders.
type Repository interface {
	// Create stores the order with its items and vendor orders atomically.
	// It returns ErrDuplicateOrderNumber when a number is already in use.
	Create(ctx context.Context, order *Order) error
	// UpdatePayment records the outcome of charging the order.
	UpdatePayment(ctx context.Context, orderID string, status Status, paymentID string) error
	// GetByNumber loads an order by its display number, or returns
	// ErrOrderNotFound.
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
}

// VendorConfigRepository looks up settlement parameters per vendor. Vendors
// without configuration are omitted from the result.
type VendorConfigRepository interface {
	GetVendorConfigs(ctx context.Context, vendorIDs []string) (map[string]settlement.VendorConfig, error)
}

// Payments charges order totals through the gateway registered for the
// requested method.
type Payments interface {
	payment.Gateway
	Supports(method payment.Method) bool
}

// NumberGenerator allocates display numbers for orders and vendor orders.
type NumberGenerator interface {
	OrderNumber() string
	VendorOrderNumber(ctx context.Context, vendorSlug string) (string, error)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items            []settlement.LineItem
	CustomerPhone    string
	BillingVATNumber string
	PaymentMethod    payment.Method
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order  *Order
	Charge *payment.Charge
}
