package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendzd/settlement/internal/domain/checkout"
	"github.com/tendzd/settlement/internal/domain/identifier"
	"github.com/tendzd/settlement/internal/domain/ordernumber"
	"github.com/tendzd/settlement/internal/payment"
	"github.com/tendzd/settlement/pkg/httpmiddleware"
)

// Quote handles POST /api/cart/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := toLineItems(req.Items)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s, err := h.checkout.Quote(r.Context(), items)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementResponse(s, locale(r)))
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		httpmiddleware.WriteError(w, http.StatusBadRequest, checkout.ErrEmptyItems.Error())
		return
	}
	items, err := toLineItems(req.Items)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := h.checkout.PlaceOrder(r.Context(), checkout.PlaceOrderRequest{
		Items:            items,
		CustomerPhone:    req.CustomerPhone,
		BillingVATNumber: req.BillingVATNumber,
		PaymentMethod:    payment.Method(req.PaymentMethod),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(res.Order, res.Charge, locale(r)))
}

// GetOrder handles GET /api/orders/{number}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if !ordernumber.IsOrderNumber(number) {
		httpmiddleware.WriteError(w, http.StatusNotFound, checkout.ErrOrderNotFound.Error())
		return
	}
	o, err := h.checkout.GetOrder(r.Context(), number)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o, nil, locale(r)))
}

var validateKinds = map[string]string{
	"cr":    identifier.TagCRNumber,
	"vat":   identifier.TagVATNumber,
	"phone": identifier.TagPhone,
	"iban":  identifier.TagIBAN,
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

// Validate handles GET /api/validate/{kind}?value=.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	tag, ok := validateKinds[chi.URLParam(r, "kind")]
	if !ok {
		httpmiddleware.WriteError(w, http.StatusNotFound, "unknown identifier kind")
		return
	}
	check, _ := identifier.Check(tag)
	writeJSON(w, http.StatusOK, validateResponse{Valid: check(r.URL.Query().Get("value"))})
}
