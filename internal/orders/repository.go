package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commerceops/opsdash/internal/shared"
)

// Repository reads orders from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrder loads an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `SELECT id, COALESCE(channel_id, 0), external_id, customer_email, status,
		shipping_cost_cents, ordered_at
	FROM orders WHERE id = $1`, id).Scan(&o.ID, &o.ChannelID, &o.ExternalID, &o.CustomerEmail, &o.Status,
		&o.ShippingCostCents, &o.OrderedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, shared.Internal("orders.GetOrder", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, COALESCE(product_id, 0), sku, title, quantity, unit_price_cents
	FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, shared.Internal("orders.GetOrder", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU, &it.Title, &it.Quantity, &it.UnitPriceCents); err != nil {
			return Order{}, shared.Internal("orders.GetOrder", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Order{}, shared.Internal("orders.GetOrder", err)
	}
	return o, nil
}

// ListSaleLines returns product-attributed order lines ordered at or after since.
func (r *Repository) ListSaleLines(ctx context.Context, since time.Time) ([]SaleLine, error) {
	return r.querySaleLines(ctx, `SELECT oi.product_id, oi.quantity, oi.unit_price_cents, o.ordered_at
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	WHERE oi.product_id IS NOT NULL AND o.ordered_at >= $1
	ORDER BY o.ordered_at`, since)
}

// ListSaleLinesBetween returns product-attributed order lines in [from, to).
func (r *Repository) ListSaleLinesBetween(ctx context.Context, from, to time.Time) ([]SaleLine, error) {
	return r.querySaleLines(ctx, `SELECT oi.product_id, oi.quantity, oi.unit_price_cents, o.ordered_at
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	WHERE oi.product_id IS NOT NULL AND o.ordered_at >= $1 AND o.ordered_at < $2
	ORDER BY o.ordered_at`, from, to)
}

func (r *Repository) querySaleLines(ctx context.Context, sql string, args ...any) ([]SaleLine, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.Internal("orders.ListSaleLines", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SaleLine, error) {
		var l SaleLine
		err := row.Scan(&l.ProductID, &l.Quantity, &l.UnitPriceCents, &l.OrderedAt)
		return l, err
	})
	if err != nil {
		return nil, shared.Internal("orders.ListSaleLines", err)
	}
	return lines, nil
}
