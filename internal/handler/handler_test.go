package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendzd/settlement/internal/domain/checkout"
	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/payment"
	"github.com/tendzd/settlement/pkg/httpmiddleware"
)

// mockCheckout settles with the real engine and a fixed vendor table.
type mockCheckout struct {
	placeErr error
	lastReq  *checkout.PlaceOrderRequest
	orders   map[string]*checkout.Order
	getErr   error
	lookups  []string
}

var testVendors = map[string]settlement.VendorConfig{
	"electro": {Slug: "ELE", FreeShippingThreshold: 50000},
	"abaya":   {Slug: "ABA", FreeShippingThreshold: 100000},
}

func (m *mockCheckout) Quote(_ context.Context, items []settlement.LineItem) (*settlement.OrderSettlement, error) {
	s, err := settlement.NewEngine().Settle(items, testVendors)
	if err != nil {
		return nil, errors.Wrap(err, "compute settlement")
	}
	return &s, nil
}

func (m *mockCheckout) PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*checkout.PlaceOrderResult, error) {
	m.lastReq = &req
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	s, err := m.Quote(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	o := &checkout.Order{
		ID:          "order-1",
		OrderNumber: "BH261019K7Q2",
		Status:      checkout.StatusPendingPayment,
		Settlement:  *s,
	}
	for i, g := range s.VendorGroups {
		o.VendorOrders = append(o.VendorOrders, checkout.VendorOrder{
			VendorID:          g.VendorID,
			VendorOrderNumber: testVendors[g.VendorID].Slug + "00000" + string(rune('1'+i)),
			Group:             g,
		})
	}
	return &checkout.PlaceOrderResult{
		Order: o,
		Charge: &payment.Charge{
			ID:           "bt_1",
			Method:       req.PaymentMethod,
			Status:       payment.StatusPending,
			Instructions: "Transfer 127.250 BHD",
		},
	}, nil
}

func (m *mockCheckout) GetOrder(_ context.Context, number string) (*checkout.Order, error) {
	m.lookups = append(m.lookups, number)
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[number]
	if !ok {
		return nil, errors.Wrapf(checkout.ErrOrderNotFound, "order %q", number)
	}
	return o, nil
}

func newTestServer(t *testing.T, svc Checkout) http.Handler {
	t.Helper()

	h, err := New(svc)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	return r
}

func do(t *testing.T, srv http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httpmiddleware.ErrorBody {
	t.Helper()

	var body httpmiddleware.ErrorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

const cartJSON = `{"items":[
	{"productId":"a1","vendorId":"electro","unitPrice":"30.000","quantity":2},
	{"productId":"b1","vendorId":"abaya","unitPrice":12.75,"quantity":1},
	{"productId":"a2","vendorId":"electro","unitPrice":"25.500","quantity":1},
	{"productId":"b2","vendorId":"abaya","unitPrice":"8.000","quantity":3}
]}`

func TestQuote(t *testing.T) {
	srv := newTestServer(t, &mockCheckout{})

	w := do(t, srv, http.MethodPost, "/api/cart/quote", cartJSON)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp settlementResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "en", resp.Locale)
	assert.Equal(t, amount{Value: "127.250", Display: "127.250 BHD"}, resp.Total)
	assert.Equal(t, "5.000", resp.Shipping.Value)

	require.Len(t, resp.VendorGroups, 2)
	electro, abaya := resp.VendorGroups[0], resp.VendorGroups[1]
	assert.Equal(t, "electro", electro.VendorID)
	assert.True(t, electro.QualifiesForFreeShipping)
	assert.Equal(t, "0.000", electro.AmountToFreeShipping.Value)
	assert.Equal(t, "60.000", electro.Items[0].LineTotal.Value)
	assert.False(t, abaya.QualifiesForFreeShipping)
	assert.Equal(t, "63.250", abaya.AmountToFreeShipping.Value)
	assert.Equal(t, "12.750", abaya.Items[0].UnitPrice.Value)
}

func TestQuote_Arabic(t *testing.T) {
	srv := newTestServer(t, &mockCheckout{})

	w := do(t, srv, http.MethodPost, "/api/cart/quote", cartJSON, "Accept-Language", "ar-BH,ar;q=0.9,en;q=0.5")
	require.Equal(t, http.StatusOK, w.Code)

	var resp settlementResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ar", resp.Locale)
	assert.Equal(t, "127.250", resp.Total.Value)
	assert.Equal(t, "١٢٧٫٢٥٠ د.ب", resp.Total.Display)
}

func TestQuote_EmptyCart(t *testing.T) {
	srv := newTestServer(t, &mockCheckout{})

	w := do(t, srv, http.MethodPost, "/api/cart/quote", `{"items":[]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp settlementResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.VendorGroups)
	assert.Equal(t, "0.000", resp.Total.Value)
}

func TestQuote_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantMessage string
	}{
		{
			name:     "malformed json",
			body:     `{"items":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown field",
			body:     `{"items":[],"coupon":"X"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:        "missing vendor",
			body:        `{"items":[{"productId":"p1","unitPrice":"1.000","quantity":1}]}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "vendorId",
		},
		{
			name:        "zero quantity",
			body:        `{"items":[{"productId":"p1","vendorId":"electro","unitPrice":"1.000","quantity":0}]}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "p1",
		},
		{
			name:        "negative price",
			body:        `{"items":[{"productId":"p2","vendorId":"electro","unitPrice":"-1.000","quantity":1}]}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "p2",
		},
		{
			name:        "price out of range",
			body:        `{"items":[{"productId":"p3","vendorId":"electro","unitPrice":"1e30","quantity":1}]}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "p3",
		},
		{
			name:        "line total out of range",
			body:        `{"items":[{"productId":"p4","vendorId":"electro","unitPrice":"8589934.596","quantity":2147483647}]}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "p4",
		},
		{
			name: "order total out of range",
			body: `{"items":[
				{"productId":"p5","vendorId":"electro","unitPrice":"4611686018427387.904","quantity":1},
				{"productId":"p6","vendorId":"electro","unitPrice":"4611686018427387.904","quantity":1}]}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "order total out of range",
		},
		{
			name:        "quantity above storable range",
			body:        `{"items":[{"productId":"p7","vendorId":"electro","unitPrice":"0.000","quantity":2147483648}]}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockCheckout{})

			w := do(t, srv, http.MethodPost, "/api/cart/quote", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Contains(t, body.Message, tt.wantMessage)
		})
	}
}

func orderJSON(items string) string {
	return `{"items":` + items + `,"customerPhone":"+973 3612 3456","billingVatNumber":"BH123456789","paymentMethod":"bank_transfer"}`
}

func TestPlaceOrder(t *testing.T) {
	svc := &mockCheckout{}
	srv := newTestServer(t, svc)

	items := strings.TrimSuffix(strings.TrimPrefix(cartJSON, `{"items":`), "}")
	w := do(t, srv, http.MethodPost, "/api/orders", orderJSON(items))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "BH261019K7Q2", resp.OrderNumber)
	assert.Equal(t, checkout.StatusPendingPayment, resp.Status)
	assert.Equal(t, "127.250", resp.Settlement.Total.Value)
	assert.Equal(t, []vendorOrderResponse{
		{VendorID: "electro", VendorOrderNumber: "ELE000001"},
		{VendorID: "abaya", VendorOrderNumber: "ABA000002"},
	}, resp.VendorOrders)
	assert.Equal(t, payment.StatusPending, resp.Payment.Status)
	assert.Equal(t, "bt_1", resp.Payment.ID)

	require.NotNil(t, svc.lastReq)
	assert.Equal(t, "+973 3612 3456", svc.lastReq.CustomerPhone)
	assert.Equal(t, payment.MethodBankTransfer, svc.lastReq.PaymentMethod)
	assert.EqualValues(t, 30000, svc.lastReq.Items[0].UnitPrice)
}

func TestPlaceOrder_Errors(t *testing.T) {
	item := `[{"productId":"p1","vendorId":"electro","unitPrice":"1.000","quantity":1}]`

	tests := []struct {
		name        string
		body        string
		placeErr    error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "empty items",
			body:        orderJSON(`[]`),
			wantCode:    http.StatusBadRequest,
			wantMessage: "items required",
		},
		{
			name:        "invalid phone",
			body:        `{"items":` + item + `,"customerPhone":"12345","paymentMethod":"benefit_pay"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "customerPhone",
		},
		{
			name:        "invalid billing vat",
			body:        `{"items":` + item + `,"customerPhone":"36123456","billingVatNumber":"BH12","paymentMethod":"benefit_pay"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "billingVatNumber",
		},
		{
			name:        "unknown payment method",
			body:        `{"items":` + item + `,"customerPhone":"36123456","paymentMethod":"cash"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "paymentMethod",
		},
		{
			name:        "gateway not configured",
			body:        orderJSON(item),
			placeErr:    errors.Wrap(payment.ErrUnsupportedMethod, "charge payment"),
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "unsupported payment method",
		},
		{
			name:        "misconfigured vendor",
			body:        orderJSON(item),
			placeErr:    errors.Wrap(&settlement.InvalidCommissionRateError{VendorID: "electro"}, "compute commission"),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "vendor configuration error",
		},
		{
			name:        "storage failure",
			body:        orderJSON(item),
			placeErr:    errors.New("create order: connection reset"),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockCheckout{placeErr: tt.placeErr})

			w := do(t, srv, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeError(t, w)
			assert.Contains(t, body.Message, tt.wantMessage)
		})
	}
}

func TestGetOrder(t *testing.T) {
	s, err := settlement.NewEngine().Settle([]settlement.LineItem{
		{ProductID: "a1", VendorID: "electro", UnitPrice: 30000, Quantity: 2},
	}, testVendors)
	require.NoError(t, err)

	svc := &mockCheckout{orders: map[string]*checkout.Order{
		"BH261019K7Q2": {
			ID:            "order-1",
			OrderNumber:   "BH261019K7Q2",
			Status:        checkout.StatusPaid,
			PaymentMethod: payment.MethodBankTransfer,
			PaymentID:     "bt_1",
			Settlement:    s,
			VendorOrders: []checkout.VendorOrder{
				{VendorID: "electro", VendorOrderNumber: "ELE000001", Group: s.VendorGroups[0]},
			},
		},
	}}
	srv := newTestServer(t, svc)

	w := do(t, srv, http.MethodGet, "/api/orders/BH261019K7Q2", "", "Accept-Language", "ar-BH")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "order-1", resp.ID)
	assert.Equal(t, checkout.StatusPaid, resp.Status)
	assert.Equal(t, "ar", resp.Settlement.Locale)
	assert.Equal(t, "60.000", resp.Settlement.Total.Value)
	assert.Equal(t, []vendorOrderResponse{{VendorID: "electro", VendorOrderNumber: "ELE000001"}}, resp.VendorOrders)
	assert.Equal(t, paymentResponse{ID: "bt_1", Method: payment.MethodBankTransfer, Status: payment.StatusSucceeded}, resp.Payment)
}

func TestGetOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		number     string
		getErr     error
		wantCode   int
		wantLookup bool
	}{
		{name: "unknown order", number: "BH261019ZZZZ", wantCode: http.StatusNotFound, wantLookup: true},
		{name: "malformed number", number: "ORDER-1", wantCode: http.StatusNotFound},
		{name: "lowercase suffix", number: "BH261019k7q2", wantCode: http.StatusNotFound},
		{
			name:       "storage failure",
			number:     "BH261019K7Q2",
			getErr:     errors.New("get order: connection reset"),
			wantCode:   http.StatusInternalServerError,
			wantLookup: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCheckout{getErr: tt.getErr}
			srv := newTestServer(t, svc)

			w := do(t, srv, http.MethodGet, "/api/orders/"+tt.number, "")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			assert.Equal(t, tt.wantLookup, len(svc.lookups) == 1)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		kind  string
		value string
		code  int
		valid bool
	}{
		{kind: "cr", value: "123456-01", code: http.StatusOK, valid: true},
		{kind: "cr", value: "12", code: http.StatusOK},
		{kind: "vat", value: "BH123456789", code: http.StatusOK, valid: true},
		{kind: "phone", value: "+973 3612 3456", code: http.StatusOK, valid: true},
		{kind: "iban", value: "BH67 BMAG 0000 1299 1234 56", code: http.StatusOK, valid: true},
		{kind: "iban", value: "", code: http.StatusOK},
		{kind: "passport", value: "x", code: http.StatusNotFound},
	}

	srv := newTestServer(t, &mockCheckout{})
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.value, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/validate/"+tt.kind, nil)
			q := req.URL.Query()
			q.Set("value", tt.value)
			req.URL.RawQuery = q.Encode()

			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			require.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusOK {
				return
			}
			var resp validateResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.valid, resp.Valid)
		})
	}
}
