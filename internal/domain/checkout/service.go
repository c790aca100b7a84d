package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/money"
	"github.com/tendzd/settlement/internal/payment"
)

const (
	instrumentationName = "github.com/tendzd/settlement/internal/domain/checkout"
	maxNumberAttempts   = 3
)

// Service encapsulates quoting and order placement.
type Service struct {
	engine   settlement.Engine
	vendors  VendorConfigRepository
	orders   Repository
	numbers  NumberGenerator
	payments Payments
	now      func() time.Time

	tracer trace.Tracer
	quotes metric.Int64Counter
	placed metric.Int64Counter
	total  metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTelemetry sets the tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
		s.initMetrics(mp.Meter(instrumentationName))
	}
}

// NewService creates a checkout Service with the required dependencies.
func NewService(
	engine settlement.Engine,
	vendors VendorConfigRepository,
	orders Repository,
	numbers NumberGenerator,
	payments Payments,
	opts ...Option,
) *Service {
	s := &Service{
		engine:   engine,
		vendors:  vendors,
		orders:   orders,
		numbers:  numbers,
		payments: payments,
		now:      time.Now,
		tracer:   tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	s.initMetrics(metricnoop.NewMeterProvider().Meter(instrumentationName))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) initMetrics(m metric.Meter) {
	s.quotes = int64Counter(m, "settlement.quotes",
		metric.WithDescription("Cart quotes computed"))
	s.placed = int64Counter(m, "settlement.orders.placed",
		metric.WithDescription("Orders placed"))
	s.total = int64Counter(m, "settlement.orders.total_fils",
		metric.WithDescription("Sum of placed order totals"), metric.WithUnit("{fils}"))
}

// int64Counter creates a counter, falling back to a no-op instrument when the
// meter rejects it.
func int64Counter(m metric.Meter, name string, opts ...metric.Int64CounterOption) metric.Int64Counter {
	c, err := m.Int64Counter(name, opts...)
	if err != nil {
		c, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter(name)
	}
	return c
}

// Quote computes live cart totals without persisting anything. An empty cart
// yields an all-zero settlement.
func (s *Service) Quote(ctx context.Context, items []settlement.LineItem) (*settlement.OrderSettlement, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Quote")
	defer span.End()

	result, _, err := s.settle(ctx, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.quotes.Add(ctx, 1)
	return &result, nil
}

// PlaceOrder settles the items, numbers and persists the order, then charges
// the order total. It never returns a partially built order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder",
		trace.WithAttributes(attribute.Int("items", len(req.Items))))
	defer span.End()

	res, err := s.placeOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.number", res.Order.OrderNumber))
	return res, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	result, configs, err := s.settle(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if result.OverallTotal > 0 && !s.payments.Supports(req.PaymentMethod) {
		return nil, errors.Wrapf(payment.ErrUnsupportedMethod, "%q", req.PaymentMethod)
	}
	splits, err := s.engine.CommissionSplits(result, configs)
	if err != nil {
		return nil, errors.Wrap(err, "compute commission")
	}

	o, err := s.persist(ctx, req, result, splits, configs)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
	)

	var charge *payment.Charge
	if o.Settlement.OverallTotal > 0 {
		charge, err = s.payments.Charge(ctx, payment.ChargeRequest{
			Method:    req.PaymentMethod,
			Reference: o.OrderNumber,
			Amount:    money.ToDecimal(o.Settlement.OverallTotal),
		})
		if err != nil {
			lg.Warn("Payment failed, order left pending", zap.Error(err))
			return nil, errors.Wrap(err, "charge payment")
		}
		o.PaymentID = charge.ID
		if charge.Status == payment.StatusSucceeded {
			o.Status = StatusPaid
		}
	} else {
		o.Status = StatusPaid
	}

	if err := s.orders.UpdatePayment(ctx, o.ID, o.Status, o.PaymentID); err != nil {
		return nil, errors.Wrap(err, "update payment")
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(req.PaymentMethod))))
	s.total.Add(ctx, int64(o.Settlement.OverallTotal))
	lg.Info("Order placed",
		zap.Int("vendors", len(o.VendorOrders)),
		zap.Stringer("total", o.Settlement.OverallTotal),
		zap.String("status", string(o.Status)),
	)

	return &PlaceOrderResult{Order: o, Charge: charge}, nil
}

// GetOrder loads a placed order by its display number.
func (s *Service) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.GetOrder",
		trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// settle loads the vendor configuration for items and runs the engine.
func (s *Service) settle(
	ctx context.Context,
	items []settlement.LineItem,
) (settlement.OrderSettlement, map[string]settlement.VendorConfig, error) {
	configs := map[string]settlement.VendorConfig{}
	if ids := vendorIDs(items); len(ids) > 0 {
		var err error
		configs, err = s.vendors.GetVendorConfigs(ctx, ids)
		if err != nil {
			return settlement.OrderSettlement{}, nil, errors.Wrap(err, "get vendor configs")
		}
	}

	result, err := s.engine.Settle(items, configs)
	if err != nil {
		return settlement.OrderSettlement{}, nil, errors.Wrap(err, "compute settlement")
	}
	return result, configs, nil
}

// persist numbers the order and stores it, retrying with fresh numbers when
// the store reports a collision.
func (s *Service) persist(
	ctx context.Context,
	req PlaceOrderRequest,
	result settlement.OrderSettlement,
	splits []settlement.CommissionSplit,
	configs map[string]settlement.VendorConfig,
) (*Order, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		o, err := s.buildOrder(ctx, req, result, splits, configs)
		if err != nil {
			return nil, err
		}

		err = s.orders.Create(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			return nil, errors.Wrap(err, "create order")
		}
		zctx.From(ctx).Warn("Order number collision, retrying",
			zap.String("order_number", o.OrderNumber),
			zap.Int("attempt", attempt),
		)
	}
	return nil, ErrOrderNumberExhausted
}

func (s *Service) buildOrder(
	ctx context.Context,
	req PlaceOrderRequest,
	result settlement.OrderSettlement,
	splits []settlement.CommissionSplit,
	configs map[string]settlement.VendorConfig,
) (*Order, error) {
	o := &Order{
		ID:               uuid.New().String(),
		OrderNumber:      s.numbers.OrderNumber(),
		Status:           StatusPendingPayment,
		CustomerPhone:    req.CustomerPhone,
		BillingVATNumber: req.BillingVATNumber,
		PaymentMethod:    req.PaymentMethod,
		Settlement:       result,
		VendorOrders:     make([]VendorOrder, len(result.VendorGroups)),
		CreatedAt:        s.now(),
	}
	for i, g := range result.VendorGroups {
		slug := configs[g.VendorID].Slug
		if slug == "" {
			slug = g.VendorID
		}
		number, err := s.numbers.VendorOrderNumber(ctx, slug)
		if err != nil {
			return nil, errors.Wrapf(err, "vendor order number for %s", g.VendorID)
		}
		o.VendorOrders[i] = VendorOrder{
			VendorID:          g.VendorID,
			VendorOrderNumber: number,
			Group:             g,
			Commission:        splits[i],
		}
	}
	return o, nil
}

func vendorIDs(items []settlement.LineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		ids = append(ids, item.VendorID)
	}
	return ids
}
