// Package handler exposes checkout over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/tendzd/settlement/internal/domain/checkout"
	"github.com/tendzd/settlement/internal/domain/identifier"
	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/payment"
	"github.com/tendzd/settlement/pkg/httpmiddleware"
)

const maxBodyBytes = 1 << 20

// Checkout is the service behind the handlers.
type Checkout interface {
	Quote(ctx context.Context, items []settlement.LineItem) (*settlement.OrderSettlement, error)
	PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*checkout.PlaceOrderResult, error)
	GetOrder(ctx context.Context, orderNumber string) (*checkout.Order, error)
}

// Handler serves the checkout API.
type Handler struct {
	checkout Checkout
	validate *validator.Validate
}

// New creates a Handler.
func New(svc Checkout) (*Handler, error) {
	v, err := identifier.NewValidator()
	if err != nil {
		return nil, errors.Wrap(err, "create validator")
	}
	v.RegisterTagNameFunc(jsonFieldName)
	return &Handler{checkout: svc, validate: v}, nil
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/cart/quote", h.Quote)
	r.Post("/orders", h.PlaceOrder)
	r.Get("/orders/{number}", h.GetOrder)
	r.Get("/validate/{kind}", h.Validate)
}

var supportedLocales = []language.Tag{language.English, language.Arabic}

var localeMatcher = language.NewMatcher(supportedLocales)

// locale picks the display locale from Accept-Language, defaulting to English.
func locale(r *http.Request) string {
	_, i := language.MatchStrings(localeMatcher, r.Header.Get("Accept-Language"))
	return supportedLocales[i].String()
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	fe := verrs[0]
	httpmiddleware.WriteError(w, http.StatusUnprocessableEntity,
		"invalid "+fe.Namespace()+": failed "+fe.Tag())
}

// writeDomainError maps checkout errors to responses. Anything unknown is
// logged and hidden behind a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		itemErr *settlement.InvalidLineItemError
		rateErr *settlement.InvalidCommissionRateError
	)
	switch {
	case errors.Is(err, checkout.ErrEmptyItems):
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrOrderNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, checkout.ErrOrderNotFound.Error())
	case errors.As(err, &itemErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, itemErr.Error())
	case errors.Is(err, settlement.ErrAmountOverflow):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "order total out of range")
	case errors.Is(err, payment.ErrUnsupportedMethod):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &rateErr):
		zctx.From(r.Context()).Error("Vendor misconfigured", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "vendor configuration error")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
