package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, number, user_id, email, payment_method, shipping_method,
		zone_id, zone_name, contact, items, subtotal, shipping_cost, total,
		status, delivery_user_id, created_at, updated_at`

	saveOrderSQL = `INSERT INTO orders (id, number, user_id, email, payment_method,
		shipping_method, zone_id, zone_name, contact, items, subtotal,
		shipping_cost, total, status, delivery_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			delivery_user_id = EXCLUDED.delivery_user_id,
			updated_at = EXCLUDED.updated_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET
			status = $2,
			delivery_user_id = COALESCE($3, delivery_user_id),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns

	defaultOrderLimit = 100
)

var _ order.Store = (*OrderRepository)(nil)

// OrderRepository implements order.Store backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Save persists an order. Contact details and items are serialized to JSON
// for the JSONB columns. Saving an existing id overwrites its status.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	contactJSON, err := json.Marshal(o.Contact)
	if err != nil {
		return fmt.Errorf("marshaling order contact: %w", err)
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, saveOrderSQL,
		o.ID, o.Number, o.UserID, o.Email, string(o.PaymentMethod),
		string(o.ShippingMethod), o.ZoneID, o.ZoneName, contactJSON, itemsJSON,
		o.Subtotal, o.ShippingCost, o.Total, string(o.Status), o.DeliveryUserID,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns a single order.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	query, args := buildListOrdersQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus sets the status and, when given, the delivery user.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, u order.StatusUpdate) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, id, string(u.Status), u.DeliveryUserID)
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}
	return &o, nil
}

func buildListOrdersQuery(f order.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		add("user_id", f.UserID)
	}
	if f.DeliveryUserID != "" {
		add("delivery_user_id", f.DeliveryUserID)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + orderColumns + ` FROM orders`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, limit)
	b.WriteString(" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)))
	return b.String(), args
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                      order.Order
		payment, shipping      string
		status                 string
		contactJSON, itemsJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.Email, &payment, &shipping,
		&o.ZoneID, &o.ZoneName, &contactJSON, &itemsJSON,
		&o.Subtotal, &o.ShippingCost, &o.Total,
		&status, &o.DeliveryUserID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	o.PaymentMethod = order.PaymentMethod(payment)
	o.ShippingMethod = order.ShippingMethod(shipping)
	o.Status = order.Status(status)

	if err := json.Unmarshal(contactJSON, &o.Contact); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order contact: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	return o, nil
}
