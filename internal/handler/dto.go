package handler

import (
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/domain/checkout"
	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/money"
	"github.com/tendzd/settlement/internal/payment"
)

type lineItemRequest struct {
	ProductID string          `json:"productId" validate:"required"`
	VendorID  string          `json:"vendorId" validate:"required"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity" validate:"lte=2147483647"`
}

type quoteRequest struct {
	Items []lineItemRequest `json:"items" validate:"dive"`
}

type orderRequest struct {
	Items            []lineItemRequest `json:"items" validate:"dive"`
	CustomerPhone    string            `json:"customerPhone" validate:"required,bh_phone"`
	BillingVATNumber string            `json:"billingVatNumber,omitempty" validate:"omitempty,bh_vat"`
	PaymentMethod    string            `json:"paymentMethod" validate:"required,oneof=benefit_pay apple_pay bank_transfer"`
}

// toLineItems converts request items. Quantity and sign are left to the
// settlement engine so the error names the offending item. The upper bound
// on quantity matches the order_items column.
func toLineItems(in []lineItemRequest) ([]settlement.LineItem, error) {
	items := make([]settlement.LineItem, len(in))
	for i, it := range in {
		price, err := money.Exact(it.UnitPrice)
		if err != nil {
			return nil, &settlement.InvalidLineItemError{
				Index:     i,
				ProductID: it.ProductID,
				Field:     settlement.FieldUnitPrice,
			}
		}
		items[i] = settlement.LineItem{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			UnitPrice: price,
			Quantity:  it.Quantity,
		}
	}
	return items, nil
}

type amount struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

func newAmount(f money.Fils, locale string) amount {
	return amount{Value: f.String(), Display: money.FormatCurrency(f, locale)}
}

type lineItemResponse struct {
	ProductID string `json:"productId"`
	UnitPrice amount `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal amount `json:"lineTotal"`
}

type vendorGroupResponse struct {
	VendorID                 string             `json:"vendorId"`
	Items                    []lineItemResponse `json:"items"`
	ItemsTotal               amount             `json:"itemsTotal"`
	SubtotalExVAT            amount             `json:"subtotalExVat"`
	VAT                      amount             `json:"vat"`
	FreeShippingThreshold    amount             `json:"freeShippingThreshold"`
	QualifiesForFreeShipping bool               `json:"qualifiesForFreeShipping"`
	AmountToFreeShipping     amount             `json:"amountToFreeShipping"`
	ShippingFee              amount             `json:"shippingFee"`
	VendorTotal              amount             `json:"vendorTotal"`
}

type settlementResponse struct {
	Locale        string                `json:"locale"`
	VendorGroups  []vendorGroupResponse `json:"vendorGroups"`
	SubtotalExVAT amount                `json:"subtotalExVat"`
	VAT           amount                `json:"vat"`
	Shipping      amount                `json:"shipping"`
	Total         amount                `json:"total"`
}

func newSettlementResponse(s *settlement.OrderSettlement, locale string) settlementResponse {
	resp := settlementResponse{
		Locale:        locale,
		VendorGroups:  make([]vendorGroupResponse, len(s.VendorGroups)),
		SubtotalExVAT: newAmount(s.OverallSubtotalExVAT, locale),
		VAT:           newAmount(s.OverallVAT, locale),
		Shipping:      newAmount(s.OverallShipping, locale),
		Total:         newAmount(s.OverallTotal, locale),
	}
	for i, g := range s.VendorGroups {
		items := make([]lineItemResponse, len(g.Items))
		for j, it := range g.Items {
			line, _ := it.Total() // checked by the engine
			items[j] = lineItemResponse{
				ProductID: it.ProductID,
				UnitPrice: newAmount(it.UnitPrice, locale),
				Quantity:  it.Quantity,
				LineTotal: newAmount(line, locale),
			}
		}
		resp.VendorGroups[i] = vendorGroupResponse{
			VendorID:                 g.VendorID,
			Items:                    items,
			ItemsTotal:               newAmount(g.ItemsTotal, locale),
			SubtotalExVAT:            newAmount(g.SubtotalExVAT, locale),
			VAT:                      newAmount(g.VATAmount, locale),
			FreeShippingThreshold:    newAmount(g.FreeShippingThreshold, locale),
			QualifiesForFreeShipping: g.QualifiesForFreeShipping,
			AmountToFreeShipping:     newAmount(max(g.FreeShippingThreshold-g.ItemsTotal, 0), locale),
			ShippingFee:              newAmount(g.ShippingFee, locale),
			VendorTotal:              newAmount(g.VendorTotal, locale),
		}
	}
	return resp
}

type vendorOrderResponse struct {
	VendorID          string `json:"vendorId"`
	VendorOrderNumber string `json:"vendorOrderNumber"`
}

type paymentResponse struct {
	ID           string         `json:"id,omitempty"`
	Method       payment.Method `json:"method,omitempty"`
	Status       payment.Status `json:"status"`
	Instructions string         `json:"instructions,omitempty"`
}

type orderResponse struct {
	ID           string                `json:"id"`
	OrderNumber  string                `json:"orderNumber"`
	Status       checkout.Status       `json:"status"`
	Settlement   settlementResponse    `json:"settlement"`
	VendorOrders []vendorOrderResponse `json:"vendorOrders"`
	Payment      paymentResponse       `json:"payment"`
}

// newOrderResponse renders an order. Without a charge, as for stored orders
// and free orders, the payment state is derived from the order.
func newOrderResponse(o *checkout.Order, charge *payment.Charge, locale string) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		Status:       o.Status,
		Settlement:   newSettlementResponse(&o.Settlement, locale),
		VendorOrders: make([]vendorOrderResponse, len(o.VendorOrders)),
		Payment: paymentResponse{
			ID:     o.PaymentID,
			Method: o.PaymentMethod,
			Status: payment.StatusPending,
		},
	}
	if o.Status == checkout.StatusPaid {
		resp.Payment.Status = payment.StatusSucceeded
	}
	for i, vo := range o.VendorOrders {
		resp.VendorOrders[i] = vendorOrderResponse{
			VendorID:          vo.VendorID,
			VendorOrderNumber: vo.VendorOrderNumber,
		}
	}
	if charge != nil {
		resp.Payment = paymentResponse{
			ID:           charge.ID,
			Method:       charge.Method,
			Status:       charge.Status,
			Instructions: charge.Instructions,
		}
	}
	return resp
}
