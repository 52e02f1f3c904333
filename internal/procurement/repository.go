package procurement

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/platform/db"
	"github.com/commerceops/opsdash/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool     *pgxpool.Pool
	products *inventory.Repository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, products: inventory.NewRepository(pool)}
}

// GetProduct loads a catalog product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (inventory.Product, error) {
	return r.products.GetProduct(ctx, id)
}

// TxRepository exposes transactional operations. It embeds the inventory
// operations bound to the same transaction so receipts and stock commit
// together.
type TxRepository interface {
	inventory.TxRepository
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CountPOsInMonth(ctx context.Context, from, to time.Time) (int, error)
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertPOItem(ctx context.Context, item POItem) (int64, error)
	DeletePOItems(ctx context.Context, poID int64) error
	// LockPurchaseOrder loads the PO with its items, holding a row lock on
	// the PO until the transaction ends.
	LockPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	UpdatePOItemReceipt(ctx context.Context, item POItem) error
}

type txRepo struct {
	inventory.TxRepository
	q pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxRepository: inventory.NewTxRepository(tx), q: tx})
	})
}

const poColumns = `id, po_number, supplier_id, status, order_date, expected_date, received_date,
	subtotal_cents, freight_cost_cents, insurance_cost_cents, customs_duty_cents, other_fees_cents,
	total_cost_cents, currency, exchange_rate::text, tracking_number, shipping_method, notes,
	created_at, updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var (
		po     PurchaseOrder
		status string
		rate   string
	)
	err := row.Scan(&po.ID, &po.PONumber, &po.SupplierID, &status, &po.OrderDate, &po.ExpectedDate,
		&po.ReceivedDate, &po.SubtotalCents, &po.FreightCostCents, &po.InsuranceCostCents,
		&po.CustomsDutyCents, &po.OtherFeesCents, &po.TotalCostCents, &po.Currency, &rate,
		&po.TrackingNumber, &po.ShippingMethod, &po.Notes, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status, err = ParsePOStatus(status); err != nil {
		return PurchaseOrder{}, err
	}
	if po.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

const itemColumns = `id, po_id, product_id, supplier_sku, quantity_ordered, quantity_received,
	quantity_rejected, unit_cost_cents, freight_allocation_cents, duty_allocation_cents,
	other_cost_allocation_cents, landed_unit_cost_cents, received_date`

func loadItems(ctx context.Context, q db.Querier, poID int64) ([]POItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM po_items WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (POItem, error) {
		var it POItem
		err := row.Scan(&it.ID, &it.POID, &it.ProductID, &it.SupplierSKU, &it.QuantityOrdered,
			&it.QuantityReceived, &it.QuantityRejected, &it.UnitCostCents, &it.FreightAllocationCents,
			&it.DutyAllocationCents, &it.OtherCostAllocationCents, &it.LandedUnitCostCents, &it.ReceivedDate)
		return it, err
	})
}

func getPurchaseOrder(ctx context.Context, q db.Querier, id int64, lock bool) (PurchaseOrder, error) {
	sql := `SELECT ` + poColumns + ` FROM purchase_orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	po, err := scanPO(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrPONotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Items, err = loadItems(ctx, q, id); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// GetPurchaseOrder returns a PO with its items.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getPurchaseOrder(ctx, r.pool, id, false)
}

// ListPurchaseOrders returns PO headers matching the filter and the total count.
func (r *Repository) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != 0 {
		args = append(args, filter.Status.String())
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		where += ` AND supplier_id = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += ` AND (po_number ILIKE $` + strconv.Itoa(len(args)) + ` OR tracking_number ILIKE $` + strconv.Itoa(len(args)) + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPage(filter.Limit, filter.Offset)
	args = append(args, page.Limit, page.Offset)
	sql := `SELECT ` + poColumns + ` FROM purchase_orders` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	pos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchaseOrder, error) {
		return scanPO(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return pos, total, nil
}

func getSupplier(ctx context.Context, q db.Querier, id int64) (Supplier, error) {
	var s Supplier
	err := q.QueryRow(ctx, `SELECT id, name, email, currency, active FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Email, &s.Currency, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, err
}

// GetSupplier loads a supplier.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return getSupplier(ctx, r.pool, id)
}

// ProductReorderQuantity returns the persisted reorder quantity of a product,
// zero when no inventory row exists yet.
func (r *Repository) ProductReorderQuantity(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(i.reorder_quantity, 0)
	FROM products p LEFT JOIN inventory i ON i.product_id = p.id
	WHERE p.id = $1`, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, inventory.ErrProductNotFound
	}
	return qty, err
}

// ListSupplierCandidates returns active suppliers carrying the product.
func (r *Repository) ListSupplierCandidates(ctx context.Context, productID int64) ([]SupplierCandidate, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.name, ps.supplier_sku, s.currency, ps.unit_cost_cents,
		ps.lead_time_days, ps.moq, ps.preferred
	FROM product_suppliers ps
	JOIN suppliers s ON s.id = ps.supplier_id
	WHERE ps.product_id = $1 AND s.active
	ORDER BY ps.preferred DESC, ps.unit_cost_cents ASC, s.id ASC`, productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierCandidate, error) {
		var c SupplierCandidate
		err := row.Scan(&c.SupplierID, &c.SupplierName, &c.SupplierSKU, &c.Currency, &c.UnitCostCents,
			&c.LeadTimeDays, &c.MOQ, &c.Preferred)
		return c, err
	})
}

func (tx *txRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return getSupplier(ctx, tx.q, id)
}

func (tx *txRepo) CountPOsInMonth(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := tx.q.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

func (tx *txRepo) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `INSERT INTO purchase_orders (po_number, supplier_id, status, order_date, expected_date,
		subtotal_cents, freight_cost_cents, insurance_cost_cents, customs_duty_cents, other_fees_cents,
		total_cost_cents, currency, exchange_rate, tracking_number, shipping_method, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14, $15, $16, $17, $17)
	RETURNING id`,
		po.PONumber, po.SupplierID, po.Status.String(), po.OrderDate, po.ExpectedDate,
		po.SubtotalCents, po.FreightCostCents, po.InsuranceCostCents, po.CustomsDutyCents, po.OtherFeesCents,
		po.TotalCostCents, po.Currency, po.ExchangeRate.String(), po.TrackingNumber, po.ShippingMethod, po.Notes,
		po.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "purchase_orders_po_number_key" {
			return 0, ErrDuplicatePONumber
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) InsertPOItem(ctx context.Context, it POItem) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `INSERT INTO po_items (po_id, product_id, supplier_sku, quantity_ordered,
		quantity_received, quantity_rejected, unit_cost_cents, freight_allocation_cents, duty_allocation_cents,
		other_cost_allocation_cents, landed_unit_cost_cents)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`,
		it.POID, it.ProductID, it.SupplierSKU, it.QuantityOrdered, it.QuantityReceived, it.QuantityRejected,
		it.UnitCostCents, it.FreightAllocationCents, it.DutyAllocationCents, it.OtherCostAllocationCents,
		it.LandedUnitCostCents).Scan(&id)
	return id, err
}

func (tx *txRepo) DeletePOItems(ctx context.Context, poID int64) error {
	_, err := tx.q.Exec(ctx, `DELETE FROM po_items WHERE po_id = $1`, poID)
	return err
}

func (tx *txRepo) LockPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getPurchaseOrder(ctx, tx.q, id, true)
}

func (tx *txRepo) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	_, err := tx.q.Exec(ctx, `UPDATE purchase_orders SET supplier_id = $2, status = $3, expected_date = $4,
		received_date = $5, subtotal_cents = $6, freight_cost_cents = $7, insurance_cost_cents = $8,
		customs_duty_cents = $9, other_fees_cents = $10, total_cost_cents = $11, currency = $12,
		exchange_rate = $13::numeric, tracking_number = $14, shipping_method = $15, notes = $16, updated_at = $17
	WHERE id = $1`,
		po.ID, po.SupplierID, po.Status.String(), po.ExpectedDate, po.ReceivedDate, po.SubtotalCents,
		po.FreightCostCents, po.InsuranceCostCents, po.CustomsDutyCents, po.OtherFeesCents, po.TotalCostCents,
		po.Currency, po.ExchangeRate.String(), po.TrackingNumber, po.ShippingMethod, po.Notes, po.UpdatedAt)
	return err
}

func (tx *txRepo) UpdatePOItemReceipt(ctx context.Context, it POItem) error {
	_, err := tx.q.Exec(ctx, `UPDATE po_items SET quantity_received = $2, quantity_rejected = $3, received_date = $4
	WHERE id = $1`, it.ID, it.QuantityReceived, it.QuantityRejected, it.ReceivedDate)
	return err
}
