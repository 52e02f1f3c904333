package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commerceops/opsdash/internal/platform/db"
	"github.com/commerceops/opsdash/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds the inventory operations to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{q: tx}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const productColumns = `id, sku, title, COALESCE(channel_id, 0), price_cents, lead_time_days,
	safety_stock_days, batch_size, moq, active`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Title, &p.ChannelID, &p.PriceCents, &p.LeadTimeDays,
		&p.SafetyStockDays, &p.BatchSize, &p.MOQ, &p.Active)
	return p, err
}

func getProduct(ctx context.Context, q db.Querier, id int64) (Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, shared.Internal("inventory.GetProduct", err)
	}
	return p, nil
}

// GetProduct loads a product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return getProduct(ctx, r.pool, id)
}

// ListProducts returns the whole catalog ordered by SKU.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
}

const recordColumns = `product_id, quantity, reserved, available, incoming, reorder_point, reorder_quantity,
	lead_time_days, safety_stock, last_restock_date, next_restock_date, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ProductID, &rec.Quantity, &rec.Reserved, &rec.Available, &rec.Incoming,
		&rec.ReorderPoint, &rec.ReorderQuantity, &rec.LeadTimeDays, &rec.SafetyStock,
		&rec.LastRestockDate, &rec.NextRestockDate, &rec.UpdatedAt)
	return rec, err
}

// ListRecords returns every inventory row keyed by product id.
func (r *Repository) ListRecords(ctx context.Context) (map[int64]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM inventory`)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Record, len(list))
	for _, rec := range list {
		out[rec.ProductID] = rec
	}
	return out, nil
}

// ListMovements returns ledger entries, newest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, movement_type, quantity, reason, reference_type,
		COALESCE(reference_id, 0), cost_impact_cents, batch_id, created_by, created_at
	FROM inventory_movements
	WHERE product_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Movement, error) {
		var (
			mv    Movement
			batch *uuid.UUID
		)
		err := row.Scan(&mv.ID, &mv.ProductID, &mv.Type, &mv.Quantity, &mv.Reason, &mv.ReferenceType,
			&mv.ReferenceID, &mv.CostImpactCents, &batch, &mv.CreatedBy, &mv.CreatedAt)
		if batch != nil {
			mv.BatchID = *batch
		}
		return mv, err
	})
}

// SaveReorderPlan upserts the reorder fields of a product's inventory row.
func (r *Repository) SaveReorderPlan(ctx context.Context, productID int64, u ReorderUpdate) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO inventory (product_id, reorder_point, reorder_quantity, safety_stock, next_restock_date, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (product_id) DO UPDATE SET
		reorder_point = EXCLUDED.reorder_point,
		reorder_quantity = EXCLUDED.reorder_quantity,
		safety_stock = EXCLUDED.safety_stock,
		next_restock_date = EXCLUDED.next_restock_date,
		updated_at = NOW()`,
		productID, u.ReorderPoint, u.ReorderQuantity, u.SafetyStock, u.NextRestockDate)
	return err
}

func (t *txRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	return getProduct(ctx, t.q, id)
}

// LockRecord inserts an empty row when missing, then locks it. The insert
// waits on the unique index for a concurrent creator, so two first receipts
// of a product serialise instead of failing.
func (t *txRepo) LockRecord(ctx context.Context, productID int64) (Record, error) {
	_, err := t.q.Exec(ctx, `INSERT INTO inventory (product_id) VALUES ($1) ON CONFLICT (product_id) DO NOTHING`, productID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Record{}, ErrProductNotFound
		}
		return Record{}, err
	}
	return scanRecord(t.q.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory WHERE product_id = $1 FOR UPDATE`, productID))
}

func (t *txRepo) UpdateRecord(ctx context.Context, rec Record) error {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := t.q.Exec(ctx, `UPDATE inventory SET quantity = $2, reserved = $3, available = $4, incoming = $5,
		last_restock_date = $6, updated_at = $7
	WHERE product_id = $1`,
		rec.ProductID, rec.Quantity, rec.Reserved, rec.Available, rec.Incoming, rec.LastRestockDate, updatedAt)
	return err
}

func (t *txRepo) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var batch *uuid.UUID
	if mv.BatchID != uuid.Nil {
		batch = &mv.BatchID
	}
	var refID *int64
	if mv.ReferenceID != 0 {
		refID = &mv.ReferenceID
	}
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO inventory_movements
		(product_id, movement_type, quantity, reason, reference_type, reference_id, cost_impact_cents, batch_id, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id`,
		mv.ProductID, string(mv.Type), mv.Quantity, mv.Reason, mv.ReferenceType, refID, mv.CostImpactCents,
		batch, mv.CreatedBy, mv.CreatedAt).Scan(&id)
	return id, err
}
