package procurement

import (
	"context"
	"sync"
	"time"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	products   map[int64]inventory.Product
	records    map[int64]inventory.Record
	movements  []inventory.Movement
	suppliers  map[int64]Supplier
	candidates map[int64][]SupplierCandidate
	pos        map[int64]PurchaseOrder
	nextID     int64
	// collisions makes the next n InsertPurchaseOrder calls report a
	// duplicate number.
	collisions int
	inserts    int
	locks      []int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:   make(map[int64]inventory.Product),
		records:    make(map[int64]inventory.Record),
		suppliers:  make(map[int64]Supplier),
		candidates: make(map[int64][]SupplierCandidate),
		pos:        make(map[int64]PurchaseOrder),
	}
}

func (r *memoryRepo) addProduct(id int64, sku string) {
	r.products[id] = inventory.Product{ID: id, SKU: sku, Title: sku, Active: true}
}

func (r *memoryRepo) stock(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[productID].Quantity
}

func clonePO(po PurchaseOrder) PurchaseOrder {
	po.Items = append([]POItem(nil), po.Items...)
	return po
}

// WithTx snapshots state and restores it when fn fails.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make(map[int64]inventory.Record, len(r.records))
	for k, v := range r.records {
		records[k] = v
	}
	pos := make(map[int64]PurchaseOrder, len(r.pos))
	for k, v := range r.pos {
		pos[k] = clonePO(v)
	}
	movements := append([]inventory.Movement(nil), r.movements...)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.records = records
		r.pos = pos
		r.movements = movements
		return err
	}
	return nil
}

func (r *memoryRepo) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrPONotFound
	}
	return clonePO(po), nil
}

func (r *memoryRepo) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PurchaseOrder
	for id := int64(1); id <= r.nextID; id++ {
		po, ok := r.pos[id]
		if !ok {
			continue
		}
		if filter.Status != 0 && po.Status != filter.Status {
			continue
		}
		if filter.SupplierID != 0 && po.SupplierID != filter.SupplierID {
			continue
		}
		po.Items = nil
		out = append(out, po)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (inventory.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) ProductReorderQuantity(ctx context.Context, productID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[productID]; !ok {
		return 0, inventory.ErrProductNotFound
	}
	return r.records[productID].ReorderQuantity, nil
}

func (r *memoryRepo) ListSupplierCandidates(ctx context.Context, productID int64) ([]SupplierCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SupplierCandidate(nil), r.candidates[productID]...), nil
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
	tx.repo.locks = append(tx.repo.locks, productID)
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

func (tx *memoryTx) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, ok := tx.repo.suppliers[id]
	if !ok {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, nil
}

func (tx *memoryTx) CountPOsInMonth(ctx context.Context, from, to time.Time) (int, error) {
	n := 0
	for _, po := range tx.repo.pos {
		if !po.CreatedAt.Before(from) && po.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.inserts++
	if tx.repo.collisions > 0 {
		tx.repo.collisions--
		return 0, ErrDuplicatePONumber
	}
	for _, existing := range tx.repo.pos {
		if existing.PONumber == po.PONumber {
			return 0, ErrDuplicatePONumber
		}
	}
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	po.Items = nil
	tx.repo.pos[po.ID] = po
	return po.ID, nil
}

func (tx *memoryTx) InsertPOItem(ctx context.Context, item POItem) (int64, error) {
	po, ok := tx.repo.pos[item.POID]
	if !ok {
		return 0, ErrPONotFound
	}
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	po.Items = append(po.Items, item)
	tx.repo.pos[po.ID] = po
	return item.ID, nil
}

func (tx *memoryTx) DeletePOItems(ctx context.Context, poID int64) error {
	po := tx.repo.pos[poID]
	po.Items = nil
	tx.repo.pos[poID] = po
	return nil
}

func (tx *memoryTx) LockPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := tx.repo.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrPONotFound
	}
	return clonePO(po), nil
}

func (tx *memoryTx) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	existing, ok := tx.repo.pos[po.ID]
	if !ok {
		return ErrPONotFound
	}
	po.Items = existing.Items
	po.PONumber = existing.PONumber
	tx.repo.pos[po.ID] = po
	return nil
}

func (tx *memoryTx) UpdatePOItemReceipt(ctx context.Context, item POItem) error {
	po := tx.repo.pos[item.POID]
	for i := range po.Items {
		if po.Items[i].ID == item.ID {
			po.Items[i].QuantityReceived = item.QuantityReceived
			po.Items[i].QuantityRejected = item.QuantityRejected
			po.Items[i].ReceivedDate = item.ReceivedDate
			tx.repo.pos[po.ID] = po
			return nil
		}
	}
	return ErrPOItemNotFound
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type countingViews struct {
	calls int
}

func (c *countingViews) InvalidateView(ctx context.Context) error {
	c.calls++
	return nil
}

type recordingMetrics struct {
	statuses []string
}

func (m *recordingMetrics) ObservePOReceipt(status string) {
	m.statuses = append(m.statuses, status)
}
