package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/commerceops/opsdash/internal/orders"
)

type memoryRepo struct {
	mu        sync.Mutex
	products  map[int64]Product
	records   map[int64]Record
	movements []Movement
	plans     map[int64]ReorderUpdate
	nextID    int64
	failMove  error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(products ...Product) *memoryRepo {
	r := &memoryRepo{
		products: make(map[int64]Product),
		records:  make(map[int64]Record),
		plans:    make(map[int64]ReorderUpdate),
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *memoryRepo) setStock(productID int64, qty, reserved int) {
	r.records[productID] = Record{ProductID: productID, Quantity: qty, Reserved: reserved, Available: qty - reserved}
}

// WithTx snapshots state and restores it when fn fails, mimicking rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make(map[int64]Record, len(r.records))
	for k, v := range r.records {
		records[k] = v
	}
	movements := append([]Movement(nil), r.movements...)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.records = records
		r.movements = movements
		return err
	}
	return nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListProducts(ctx context.Context) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) ListRecords(ctx context.Context) (map[int64]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]Record, len(r.records))
	for k, v := range r.records {
		out[k] = v
	}
	return out, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for i := len(r.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if r.movements[i].ProductID == productID {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveReorderPlan(ctx context.Context, productID int64, update ReorderUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[productID] = update
	return nil
}

func (tx *memoryTx) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := tx.repo.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) LockRecord(ctx context.Context, productID int64) (Record, error) {
	if _, ok := tx.repo.products[productID]; !ok {
		return Record{}, ErrProductNotFound
	}
	rec, ok := tx.repo.records[productID]
	if !ok {
		rec = Record{ProductID: productID}
		tx.repo.records[productID] = rec
	}
	return rec, nil
}

func (tx *memoryTx) UpdateRecord(ctx context.Context, rec Record) error {
	tx.repo.records[rec.ProductID] = rec
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	if tx.repo.failMove != nil {
		return 0, tx.repo.failMove
	}
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

type memorySales struct {
	mu    sync.Mutex
	lines []orders.SaleLine
	calls int
}

func (s *memorySales) ListSaleLines(ctx context.Context, since time.Time) ([]orders.SaleLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var out []orders.SaleLine
	for _, l := range s.lines {
		if !l.OrderedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memorySales) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// sold spreads units over the last days of the window ending at now.
func sold(productID int64, units int, now time.Time) []orders.SaleLine {
	return []orders.SaleLine{{ProductID: productID, Quantity: units, OrderedAt: now.Add(-48 * time.Hour)}}
}
