package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/domain/checkout"
	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/money"
	"github.com/tendzd/settlement/internal/payment"
)

const (
	createOrderSQL = `INSERT INTO orders (id, order_number, status, customer_phone,
		billing_vat_number, payment_method, payment_id,
		subtotal_ex_vat, vat, shipping, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	createVendorOrderSQL = `INSERT INTO vendor_orders (order_id, vendor_id, vendor_order_number,
		free_shipping_threshold, items_total, subtotal_ex_vat, vat, shipping, vendor_total,
		commission_rate, commission, vendor_earnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updatePaymentSQL = `UPDATE orders SET status = $2, payment_id = $3, updated_at = NOW()
		WHERE id = $1`

	getOrderSQL = `SELECT id, order_number, status, customer_phone, billing_vat_number,
		payment_method, payment_id, subtotal_ex_vat, vat, shipping, total, created_at
		FROM orders WHERE order_number = $1`

	getVendorOrdersSQL = `SELECT vendor_id, vendor_order_number, free_shipping_threshold,
		items_total, subtotal_ex_vat, vat, shipping, vendor_total,
		commission_rate, commission, vendor_earnings
		FROM vendor_orders WHERE order_id = $1`

	existingNumbersSQL = `SELECT order_number FROM orders WHERE order_number = ANY($1)
		ORDER BY order_number`

	getOrderItemsSQL = `SELECT vendor_id, product_id, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY position`
)

// ErrOrderNotFound is returned when no order matches a lookup.
var ErrOrderNotFound = checkout.ErrOrderNotFound

var _ checkout.Repository = (*OrderRepository)(nil)

// OrderRepository implements checkout.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order, its vendor orders and its items in a single
// transaction. A taken order or vendor order number yields
// checkout.ErrDuplicateOrderNumber and nothing is written.
func (r *OrderRepository) Create(ctx context.Context, o *checkout.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		s := o.Settlement
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.OrderNumber, string(o.Status), o.CustomerPhone,
			o.BillingVATNumber, string(o.PaymentMethod), o.PaymentID,
			s.OverallSubtotalExVAT.Decimal(), s.OverallVAT.Decimal(),
			s.OverallShipping.Decimal(), s.OverallTotal.Decimal(), o.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "insert order")
		}

		batch := &pgx.Batch{}
		for _, vo := range o.VendorOrders {
			g := vo.Group
			batch.Queue(createVendorOrderSQL,
				o.ID, vo.VendorID, vo.VendorOrderNumber, g.FreeShippingThreshold.Decimal(),
				g.ItemsTotal.Decimal(), g.SubtotalExVAT.Decimal(), g.VATAmount.Decimal(),
				g.ShippingFee.Decimal(), g.VendorTotal.Decimal(),
				vo.Commission.CommissionRate, vo.Commission.CommissionAmount.Decimal(),
				vo.Commission.VendorEarnings.Decimal(),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert vendor orders")
		}

		var rows [][]any
		for _, vo := range o.VendorOrders {
			for _, item := range vo.Group.Items {
				rows = append(rows, []any{
					o.ID, len(rows), item.VendorID, item.ProductID,
					item.UnitPrice.Decimal(), item.Quantity,
				})
			}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"order_items"},
			[]string{"order_id", "position", "vendor_id", "product_id", "unit_price", "quantity"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return errors.Wrap(err, "insert order items")
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(checkout.ErrDuplicateOrderNumber, "order %s", o.OrderNumber)
		}
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// UpdatePayment records the payment outcome of an order.
func (r *OrderRepository) UpdatePayment(ctx context.Context, orderID string, status checkout.Status, paymentID string) error {
	tag, err := r.pool.Exec(ctx, updatePaymentSQL, orderID, string(status), paymentID)
	if err != nil {
		return errors.Wrapf(err, "update payment of order %q", orderID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrOrderNotFound, "order %q", orderID)
	}
	return nil
}

// GetByNumber loads an order with its vendor orders and items. Vendor groups
// come back in the order their items were placed.
func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*checkout.Order, error) {
	var (
		o                              checkout.Order
		status, method                 string
		subtotal, vat, shipping, total decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, orderNumber).Scan(
		&o.ID, &o.OrderNumber, &status, &o.CustomerPhone, &o.BillingVATNumber,
		&method, &o.PaymentID, &subtotal, &vat, &shipping, &total, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(ErrOrderNotFound, "order %q", orderNumber)
		}
		return nil, errors.Wrapf(err, "get order %q", orderNumber)
	}
	o.Status = checkout.Status(status)
	o.PaymentMethod = payment.Method(method)
	o.Settlement.OverallSubtotalExVAT = money.FromDecimal(subtotal)
	o.Settlement.OverallVAT = money.FromDecimal(vat)
	o.Settlement.OverallShipping = money.FromDecimal(shipping)
	o.Settlement.OverallTotal = money.FromDecimal(total)

	rows, err := r.pool.Query(ctx, getVendorOrdersSQL, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "query vendor orders")
	}
	vendorOrders, err := pgx.CollectRows(rows, scanVendorOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan vendor orders")
	}
	byVendor := make(map[string]*checkout.VendorOrder, len(vendorOrders))
	for i := range vendorOrders {
		byVendor[vendorOrders[i].VendorID] = &vendorOrders[i]
	}

	rows, err = r.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	items, err := pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan order items")
	}
	for _, item := range items {
		vo, ok := byVendor[item.VendorID]
		if !ok {
			continue
		}
		if len(vo.Group.Items) == 0 {
			o.VendorOrders = append(o.VendorOrders, checkout.VendorOrder{VendorID: vo.VendorID})
		}
		vo.Group.Items = append(vo.Group.Items, item)
	}
	for i := range o.VendorOrders {
		vo := *byVendor[o.VendorOrders[i].VendorID]
		o.VendorOrders[i] = vo
		o.Settlement.VendorGroups = append(o.Settlement.VendorGroups, vo.Group)
	}
	return &o, nil
}

// ExistingNumbers returns the subset of numbers that belong to stored orders.
func (r *OrderRepository) ExistingNumbers(ctx context.Context, numbers []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, existingNumbersSQL, numbers)
	if err != nil {
		return nil, errors.Wrap(err, "query order numbers")
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan order numbers")
	}
	return found, nil
}

func scanVendorOrder(row pgx.CollectableRow) (checkout.VendorOrder, error) {
	var (
		vo                                checkout.VendorOrder
		threshold, itemsTotal             decimal.Decimal
		subtotal, vat, shipping           decimal.Decimal
		vendorTotal, commission, earnings decimal.Decimal
	)
	err := row.Scan(
		&vo.VendorID, &vo.VendorOrderNumber, &threshold, &itemsTotal, &subtotal, &vat, &shipping,
		&vendorTotal, &vo.Commission.CommissionRate, &commission, &earnings,
	)
	vo.Group = settlement.VendorGroup{
		VendorID:                 vo.VendorID,
		FreeShippingThreshold:    money.FromDecimal(threshold),
		ItemsTotal:               money.FromDecimal(itemsTotal),
		SubtotalExVAT:            money.FromDecimal(subtotal),
		VATAmount:                money.FromDecimal(vat),
		ShippingFee:              money.FromDecimal(shipping),
		VendorTotal:              money.FromDecimal(vendorTotal),
		QualifiesForFreeShipping: shipping.IsZero(),
	}
	vo.Commission.VendorID = vo.VendorID
	vo.Commission.CommissionAmount = money.FromDecimal(commission)
	vo.Commission.VendorEarnings = money.FromDecimal(earnings)
	return vo, err
}

func scanLineItem(row pgx.CollectableRow) (settlement.LineItem, error) {
	var (
		item  settlement.LineItem
		price decimal.Decimal
		qty   int32
	)
	err := row.Scan(&item.VendorID, &item.ProductID, &price, &qty)
	item.UnitPrice = money.FromDecimal(price)
	item.Quantity = int(qty)
	return item, err
}
