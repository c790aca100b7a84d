// Package payment defines the port used to charge shoppers once an order is
// settled. Gateways only see the final order total and a reference, never
// the per-vendor breakdown.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method enumerates the supported payment methods.
type Method string

const (
	MethodBenefitPay   Method = "benefit_pay"
	MethodApplePay     Method = "apple_pay"
	MethodBankTransfer Method = "bank_transfer"
)

// Status is the normalised charge state.
type Status string

const (
	// StatusPending means the charge awaits customer action or confirmation.
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrUnsupportedMethod is returned when no gateway handles the requested method.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// ChargeRequest is what a gateway receives.
type ChargeRequest struct {
	Method    Method
	Reference string
	// Amount is the order total in BHD, three fractional digits.
	Amount decimal.Decimal
}

// Charge is the gateway's answer.
type Charge struct {
	ID           string
	Method       Method
	Status       Status
	Reference    string
	Instructions string
}

// Gateway charges a single order total.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// Router dispatches a charge to the gateway registered for its method.
type Router struct {
	gateways map[Method]Gateway
}

// NewRouter returns a Router with no gateways registered.
func NewRouter() *Router {
	return &Router{gateways: make(map[Method]Gateway)}
}

// Register installs g for method, replacing any previous gateway.
func (r *Router) Register(method Method, g Gateway) *Router {
	r.gateways[method] = g
	return r
}

// Supports reports whether a gateway is registered for method.
func (r *Router) Supports(method Method) bool {
	_, ok := r.gateways[method]
	return ok
}

// Charge implements Gateway.
func (r *Router) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	g, ok := r.gateways[req.Method]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedMethod, "%q", req.Method)
	}
	return g.Charge(ctx, req)
}

// BankTransfer is an offline gateway: it never moves money, it returns
// transfer instructions and leaves the charge pending until finance
// reconciles the incoming transfer.
type BankTransfer struct {
	IBAN        string
	Beneficiary string
}

// Charge implements Gateway.
func (b BankTransfer) Charge(_ context.Context, req ChargeRequest) (*Charge, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.Errorf("bank transfer amount must be positive, got %s", req.Amount.StringFixed(3))
	}
	return &Charge{
		ID:        uuid.NewString(),
		Method:    MethodBankTransfer,
		Status:    StatusPending,
		Reference: req.Reference,
		Instructions: fmt.Sprintf("Transfer %s BHD to %s (%s) quoting %s",
			req.Amount.StringFixed(3), b.Beneficiary, b.IBAN, req.Reference),
	}, nil
}
