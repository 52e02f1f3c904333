package returns

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	products   map[int64]inventory.Product
	records    map[int64]inventory.Record
	movements  []inventory.Movement
	returns    map[int64]Return
	nextID     int64
	collisions int

	lockedOrders []int64
	// racer, when set, commits a competing write the first time an order is
	// locked and fails that transaction with a serialization conflict.
	racer   func(r *memoryRepo)
	pending func(r *memoryRepo)
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(productIDs ...int64) *memoryRepo {
	r := &memoryRepo{
		products: make(map[int64]inventory.Product),
		records:  make(map[int64]inventory.Record),
		returns:  make(map[int64]Return),
	}
	for _, id := range productIDs {
		r.products[id] = inventory.Product{ID: id, Active: true}
	}
	return r
}

func cloneReturn(r Return) Return {
	r.Items = append([]Item(nil), r.Items...)
	return r
}

func (r *memoryRepo) stock(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[productID].Quantity
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make(map[int64]inventory.Record, len(r.records))
	for k, v := range r.records {
		records[k] = v
	}
	returns := make(map[int64]Return, len(r.returns))
	for k, v := range r.returns {
		returns[k] = cloneReturn(v)
	}
	movements := append([]inventory.Movement(nil), r.movements...)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.records = records
		r.returns = returns
		r.movements = movements
		if r.pending != nil {
			r.pending(r)
			r.pending = nil
		}
		return err
	}
	return nil
}

func (r *memoryRepo) GetReturn(ctx context.Context, id int64) (Return, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret, ok := r.returns[id]
	if !ok {
		return Return{}, ErrReturnNotFound
	}
	return cloneReturn(ret), nil
}

func (r *memoryRepo) ListReturns(ctx context.Context, filter ListFilter) ([]Return, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Return
	for _, ret := range r.returns {
		if filter.Status != 0 && ret.Status != filter.Status {
			continue
		}
		ret.Items = nil
		out = append(out, ret)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepo) ListReturnsBetween(ctx context.Context, from, to time.Time) ([]Return, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Return
	for _, ret := range r.returns {
		if !ret.CreatedAt.Before(from) && ret.CreatedAt.Before(to) {
			out = append(out, cloneReturn(ret))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) GetProduct(ctx context.Context, id int64) (inventory.Product, error) {
	p, ok := tx.repo.products[id]
	if !ok {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) LockRecord(ctx context.Context, productID int64) (inventory.Record, error) {
	if _, ok := tx.repo.products[productID]; !ok {
		return inventory.Record{}, inventory.ErrProductNotFound
	}
	rec, ok := tx.repo.records[productID]
	if !ok {
		rec = inventory.Record{ProductID: productID}
	}
	return rec, nil
}

func (tx *memoryTx) UpdateRecord(ctx context.Context, rec inventory.Record) error {
	tx.repo.records[rec.ProductID] = rec
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv inventory.Movement) (int64, error) {
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

func (tx *memoryTx) CountReturnsInYear(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, ret := range tx.repo.returns {
		if !ret.CreatedAt.Before(from) && ret.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) LockOrderForReturn(ctx context.Context, orderID int64) error {
	tx.repo.lockedOrders = append(tx.repo.lockedOrders, orderID)
	if tx.repo.racer != nil {
		tx.repo.pending, tx.repo.racer = tx.repo.racer, nil
		return shared.Wrap(shared.ErrConflict, "memory", errors.New("could not serialize access due to concurrent update"))
	}
	return nil
}

func (tx *memoryTx) ReturnedQuantities(ctx context.Context, orderID int64) (map[int64]int, error) {
	out := make(map[int64]int)
	for _, ret := range tx.repo.returns {
		if ret.OrderID != orderID || ret.Status == StatusRejected {
			continue
		}
		for _, it := range ret.Items {
			out[it.OrderItemID] += it.QuantityReturned
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertReturn(ctx context.Context, r Return) (int64, error) {
	if tx.repo.collisions > 0 {
		tx.repo.collisions--
		return 0, ErrDuplicateReturnNumber
	}
	for _, existing := range tx.repo.returns {
		if existing.ReturnNumber == r.ReturnNumber {
			return 0, ErrDuplicateReturnNumber
		}
	}
	tx.repo.nextID++
	r.ID = tx.repo.nextID
	r.Items = nil
	tx.repo.returns[r.ID] = r
	return r.ID, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	ret, ok := tx.repo.returns[item.ReturnID]
	if !ok {
		return 0, ErrReturnNotFound
	}
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	ret.Items = append(ret.Items, item)
	tx.repo.returns[ret.ID] = ret
	return item.ID, nil
}

func (tx *memoryTx) LockReturn(ctx context.Context, id int64) (Return, error) {
	ret, ok := tx.repo.returns[id]
	if !ok {
		return Return{}, ErrReturnNotFound
	}
	return cloneReturn(ret), nil
}

func (tx *memoryTx) UpdateReturn(ctx context.Context, r Return) error {
	existing, ok := tx.repo.returns[r.ID]
	if !ok {
		return ErrReturnNotFound
	}
	r.Items = existing.Items
	tx.repo.returns[r.ID] = r
	return nil
}

func (tx *memoryTx) UpdateItem(ctx context.Context, item Item) error {
	ret := tx.repo.returns[item.ReturnID]
	for i := range ret.Items {
		if ret.Items[i].ID == item.ID {
			ret.Items[i] = item
			tx.repo.returns[ret.ID] = ret
			return nil
		}
	}
	return ErrItemNotFound
}

type memoryOrders struct {
	orders map[int64]orders.Order
}

func (m *memoryOrders) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

type recordingMetrics struct {
	outcomes []string
}

func (m *recordingMetrics) ObserveReturn(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

type countingViews struct {
	calls int
}

func (c *countingViews) InvalidateView(ctx context.Context) error {
	c.calls++
	return nil
}
