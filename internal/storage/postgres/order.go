package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipushop/checkout/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Customer, shipping and line items are stored
// in JSONB columns. A primary-key conflict maps to order.ErrAlreadyExists,
// which is how redelivered confirmations are caught even across instances.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	customerJSON, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshaling customer: %w", err)
	}
	shippingJSON, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("marshaling shipping: %w", err)
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (
			id, customer, shipping, items,
			subtotal, shipping_cost, total,
			payment_method, payment_status, status,
			estimated_delivery, tracking_number, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, customerJSON, shippingJSON, itemsJSON,
		o.Subtotal, o.ShippingCost, o.Total,
		o.PaymentMethod, o.PaymentStatus, o.Status,
		o.EstimatedDelivery, o.TrackingNumber, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return order.ErrAlreadyExists
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, customer, shipping, items,
		       subtotal, shipping_cost, total,
		       payment_method, payment_status, status,
		       estimated_delivery, tracking_number, created_at, updated_at
		FROM orders WHERE id = $1`, id)

	var (
		o            order.Order
		customerJSON []byte
		shippingJSON []byte
		itemsJSON    []byte
	)
	err := row.Scan(
		&o.ID, &customerJSON, &shippingJSON, &itemsJSON,
		&o.Subtotal, &o.ShippingCost, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus, &o.Status,
		&o.EstimatedDelivery, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := json.Unmarshal(customerJSON, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshaling customer for order %q: %w", id, err)
	}
	if err := json.Unmarshal(shippingJSON, &o.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping for order %q: %w", id, err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling items for order %q: %w", id, err)
	}

	return &o, nil
}

// Exists reports whether an order with the given id is persisted.
func (r *OrderRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking order %q: %w", id, err)
	}
	return exists, nil
}

// UpdateStatus mutates the only mutable order fields: fulfillment status and
// tracking number. Everything else stays as persisted.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, upd order.StatusUpdate) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    tracking_number = COALESCE(NULLIF($3, ''), tracking_number),
		    updated_at = now()
		WHERE id = $1`,
		id, upd.Status, upd.TrackingNumber,
	)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
