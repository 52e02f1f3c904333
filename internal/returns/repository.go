package returns

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/platform/db"
	"github.com/commerceops/opsdash/internal/shared"
)

// Repository persists returns in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional return operations together with the
// inventory ledger bound to the same transaction.
type TxRepository interface {
	inventory.TxRepository
	CountReturnsInYear(ctx context.Context, from, to time.Time) (int, error)
	// LockOrderForReturn serialises return creation per order. It must be
	// the first statement of the transaction: a concurrent create on the same
	// order then fails with a serialization conflict instead of reading a
	// stale snapshot.
	LockOrderForReturn(ctx context.Context, orderID int64) error
	// ReturnedQuantities sums quantities already returned per order item,
	// ignoring rejected returns.
	ReturnedQuantities(ctx context.Context, orderID int64) (map[int64]int, error)
	InsertReturn(ctx context.Context, r Return) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	LockReturn(ctx context.Context, id int64) (Return, error)
	UpdateReturn(ctx context.Context, r Return) error
	UpdateItem(ctx context.Context, item Item) error
}

type txRepo struct {
	inventory.TxRepository
	q pgx.Tx
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxRepository: inventory.NewTxRepository(tx), q: tx})
	})
}

const returnColumns = `id, return_number, order_id, COALESCE(channel_id, 0), customer_email, status,
	total_return_value_cents, return_shipping_cost_cents, return_label_cost_cents, processing_cost_cents,
	product_value_loss_cents, total_actual_loss_cents, restocking_fee_cents, supplier_chargeback_cents,
	keep_it_refund, notes, created_at, updated_at`

func scanReturn(row pgx.Row) (Return, error) {
	var (
		r      Return
		status string
	)
	err := row.Scan(&r.ID, &r.ReturnNumber, &r.OrderID, &r.ChannelID, &r.CustomerEmail, &status,
		&r.TotalReturnValueCents, &r.ReturnShippingCostCents, &r.ReturnLabelCostCents, &r.ProcessingCostCents,
		&r.ProductValueLossCents, &r.TotalActualLossCents, &r.RestockingFeeCents, &r.SupplierChargebackCents,
		&r.KeepItRefund, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Return{}, err
	}
	if r.Status, err = ParseStatus(status); err != nil {
		return Return{}, err
	}
	return r, nil
}

const itemColumns = `id, return_id, order_item_id, COALESCE(product_id, 0), sku, product_title,
	quantity_returned, quantity_restockable, quantity_damaged, unit_price_cents, total_value_cents,
	reason_category, reason_detail, condition, value_loss_cents, resale_value_cents, resale_channel,
	disposal_required`

func scanItem(row pgx.Row) (Item, error) {
	var (
		it        Item
		condition string
		channel   string
	)
	err := row.Scan(&it.ID, &it.ReturnID, &it.OrderItemID, &it.ProductID, &it.SKU, &it.ProductTitle,
		&it.QuantityReturned, &it.QuantityRestockable, &it.QuantityDamaged, &it.UnitPriceCents,
		&it.TotalValueCents, &it.ReasonCategory, &it.ReasonDetail, &condition, &it.ValueLossCents,
		&it.ResaleValueCents, &channel, &it.DisposalRequired)
	it.Condition = ParseCondition(condition)
	it.ResaleChannel = ResaleChannel(channel)
	return it, err
}

func loadItems(ctx context.Context, q db.Querier, returnIDs ...int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM return_items WHERE return_id = ANY($1) ORDER BY id`, returnIDs)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		return scanItem(row)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]Item, len(returnIDs))
	for _, it := range items {
		out[it.ReturnID] = append(out[it.ReturnID], it)
	}
	return out, nil
}

func getReturn(ctx context.Context, q db.Querier, id int64, lock bool) (Return, error) {
	sql := `SELECT ` + returnColumns + ` FROM returns WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	r, err := scanReturn(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Return{}, ErrReturnNotFound
	}
	if err != nil {
		return Return{}, err
	}
	items, err := loadItems(ctx, q, id)
	if err != nil {
		return Return{}, err
	}
	r.Items = items[id]
	return r, nil
}

// GetReturn loads a return with its items.
func (r *Repository) GetReturn(ctx context.Context, id int64) (Return, error) {
	return getReturn(ctx, r.pool, id, false)
}

// ListReturns returns headers matching filter and the total count.
func (r *Repository) ListReturns(ctx context.Context, filter ListFilter) ([]Return, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != 0 {
		args = append(args, filter.Status.String())
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (return_number ILIKE $` + n + ` OR customer_email ILIKE $` + n + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM returns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPage(filter.Limit, filter.Offset)
	args = append(args, page.Limit, page.Offset)
	sql := `SELECT ` + returnColumns + ` FROM returns` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	rets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Return, error) {
		return scanReturn(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return rets, total, nil
}

// ListReturnsBetween loads returns created in [from, to) with their items.
func (r *Repository) ListReturnsBetween(ctx context.Context, from, to time.Time) ([]Return, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+returnColumns+` FROM returns
	WHERE created_at >= $1 AND created_at < $2 ORDER BY id`, from, to)
	if err != nil {
		return nil, err
	}
	rets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Return, error) {
		return scanReturn(row)
	})
	if err != nil || len(rets) == 0 {
		return rets, err
	}
	ids := make([]int64, len(rets))
	for i, ret := range rets {
		ids[i] = ret.ID
	}
	items, err := loadItems(ctx, r.pool, ids...)
	if err != nil {
		return nil, err
	}
	for i := range rets {
		rets[i].Items = items[rets[i].ID]
	}
	return rets, nil
}

func (tx *txRepo) CountReturnsInYear(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := tx.q.QueryRow(ctx, `SELECT COUNT(*) FROM returns WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

func (tx *txRepo) LockOrderForReturn(ctx context.Context, orderID int64) error {
	tag, err := tx.q.Exec(ctx, `UPDATE orders SET return_seq = return_seq + 1 WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (tx *txRepo) ReturnedQuantities(ctx context.Context, orderID int64) (map[int64]int, error) {
	rows, err := tx.q.Query(ctx, `SELECT ri.order_item_id, SUM(ri.quantity_returned)
	FROM return_items ri
	JOIN returns r ON r.id = ri.return_id
	WHERE r.order_id = $1 AND r.status <> 'rejected'
	GROUP BY ri.order_item_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]int)
	for rows.Next() {
		var (
			id  int64
			qty int
		)
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

func (tx *txRepo) InsertReturn(ctx context.Context, r Return) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `INSERT INTO returns (return_number, order_id, channel_id, customer_email, status,
		total_return_value_cents, return_shipping_cost_cents, return_label_cost_cents, processing_cost_cents,
		product_value_loss_cents, total_actual_loss_cents, restocking_fee_cents, supplier_chargeback_cents,
		keep_it_refund, notes, created_at, updated_at)
	VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
	RETURNING id`,
		r.ReturnNumber, r.OrderID, r.ChannelID, r.CustomerEmail, r.Status.String(),
		r.TotalReturnValueCents, r.ReturnShippingCostCents, r.ReturnLabelCostCents, r.ProcessingCostCents,
		r.ProductValueLossCents, r.TotalActualLossCents, r.RestockingFeeCents, r.SupplierChargebackCents,
		r.KeepItRefund, r.Notes, r.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "returns_return_number_key" {
			return 0, ErrDuplicateReturnNumber
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) InsertItem(ctx context.Context, it Item) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `INSERT INTO return_items (return_id, order_item_id, product_id, sku, product_title,
		quantity_returned, quantity_restockable, quantity_damaged, unit_price_cents, total_value_cents,
		reason_category, reason_detail, condition, value_loss_cents, resale_value_cents, resale_channel,
		disposal_required)
	VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING id`,
		it.ReturnID, it.OrderItemID, it.ProductID, it.SKU, it.ProductTitle,
		it.QuantityReturned, it.QuantityRestockable, it.QuantityDamaged, it.UnitPriceCents, it.TotalValueCents,
		it.ReasonCategory, it.ReasonDetail, it.Condition.String(), it.ValueLossCents, it.ResaleValueCents,
		string(it.ResaleChannel), it.DisposalRequired).Scan(&id)
	return id, err
}

func (tx *txRepo) LockReturn(ctx context.Context, id int64) (Return, error) {
	return getReturn(ctx, tx.q, id, true)
}

func (tx *txRepo) UpdateReturn(ctx context.Context, r Return) error {
	_, err := tx.q.Exec(ctx, `UPDATE returns SET status = $2, product_value_loss_cents = $3,
		total_actual_loss_cents = $4, restocking_fee_cents = $5, supplier_chargeback_cents = $6,
		notes = $7, updated_at = $8
	WHERE id = $1`,
		r.ID, r.Status.String(), r.ProductValueLossCents, r.TotalActualLossCents, r.RestockingFeeCents,
		r.SupplierChargebackCents, r.Notes, r.UpdatedAt)
	return err
}

func (tx *txRepo) UpdateItem(ctx context.Context, it Item) error {
	_, err := tx.q.Exec(ctx, `UPDATE return_items SET quantity_restockable = $2, quantity_damaged = $3,
		condition = $4, value_loss_cents = $5, resale_value_cents = $6, resale_channel = $7,
		disposal_required = $8
	WHERE id = $1`,
		it.ID, it.QuantityRestockable, it.QuantityDamaged, it.Condition.String(), it.ValueLossCents,
		it.ResaleValueCents, string(it.ResaleChannel), it.DisposalRequired)
	return err
}
