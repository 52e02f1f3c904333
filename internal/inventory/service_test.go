package inventory

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/platform/cache"
	"github.com/commerceops/opsdash/internal/shared"
)

var fixedNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

type alertGauge struct{ last int }

func (g *alertGauge) SetInventoryAlerts(n int) { g.last = n }

func catalog() []Product {
	return []Product{
		{ID: 1, SKU: "MUG-01", Title: "Coffee mug", PriceCents: 1500, Active: true, ChannelID: 1},
		{ID: 2, SKU: "TEE-01", Title: "Logo tee", PriceCents: 2500, Active: true, ChannelID: 2},
		{ID: 3, SKU: "CAP-01", Title: "Cap", PriceCents: 1000, Active: true, ChannelID: 1},
		{ID: 4, SKU: "OLD-01", Title: "Retired poster", PriceCents: 500, Active: false},
	}
}

func newTestService(t *testing.T, repo *memoryRepo, sales *memorySales, c *cache.Versioned) *Service {
	t.Helper()
	return NewService(repo, sales, nil, c, ServiceConfig{
		Settings: Settings{VelocityWindowDays: 30, DefaultLeadTimeDays: 14, DefaultSafetyStockDays: 7},
		Clock:    func() time.Time { return fixedNow },
	})
}

func seededRepo() (*memoryRepo, *memorySales) {
	repo := newMemoryRepo(catalog()...)
	repo.setStock(1, 6, 1)
	repo.setStock(2, 500, 0)
	repo.setStock(4, 3, 0)
	sales := &memorySales{}
	sales.lines = append(sales.lines, sold(1, 60, fixedNow)...)
	sales.lines = append(sales.lines, sold(2, 30, fixedNow)...)
	return repo, sales
}

func TestComputeViewVelocityWindowEndsToday(t *testing.T) {
	repo := newMemoryRepo(catalog()...)
	repo.setStock(3, 100, 0)
	sales := &memorySales{lines: []orders.SaleLine{
		{ProductID: 3, Quantity: 30, OrderedAt: time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)},
		{ProductID: 3, Quantity: 15, OrderedAt: time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)},
		{ProductID: 3, Quantity: 15, OrderedAt: fixedNow},
	}}
	svc := newTestService(t, repo, sales, nil)

	view, err := svc.ComputeView(context.Background(), Filter{Search: "CAP-01"}, SortRisk)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.InDelta(t, 1.0, view.Items[0].SalesVelocity, 1e-9)
}

func TestComputeViewDerivesRiskAndAlerts(t *testing.T) {
	repo, sales := seededRepo()
	gauge := &alertGauge{}
	svc := NewService(repo, sales, nil, nil, ServiceConfig{
		Settings: Settings{VelocityWindowDays: 30},
		Metrics:  gauge,
		Clock:    func() time.Time { return fixedNow },
	})

	view, err := svc.ComputeView(context.Background(), Filter{}, SortRisk)
	require.NoError(t, err)
	require.Len(t, view.Items, 3)

	mug := view.Items[0]
	require.Equal(t, "CAP-01", mug.SKU)
	require.Equal(t, RiskCritical, mug.Risk)

	mug = view.Items[1]
	require.Equal(t, "MUG-01", mug.SKU)
	require.InDelta(t, 2.0, mug.SalesVelocity, 1e-9)
	require.Equal(t, 3, mug.DaysUntilStockout)
	require.Equal(t, RiskHigh, mug.Risk)
	require.Equal(t, 5, mug.Available)
	require.Equal(t, 42, mug.Reorder.ReorderPoint)
	require.True(t, mug.Reorder.ShouldReorderNow)

	require.Equal(t, "TEE-01", view.Items[2].SKU)
	require.Equal(t, RiskLow, view.Items[2].Risk)

	require.Equal(t, 3, view.Stats.TotalProducts)
	require.Equal(t, 506, view.Stats.TotalUnits)
	require.EqualValues(t, 6*1500+500*2500, view.Stats.TotalValueCents)
	require.Equal(t, 1, view.Stats.Critical)
	require.Equal(t, 1, view.Stats.High)
	require.Equal(t, 1, view.Stats.Low)
	require.Equal(t, 1, view.Stats.OutOfStockCount)
	require.Equal(t, 2, view.Stats.LowStockCount)

	require.Len(t, view.Alerts, 2)
	require.Equal(t, int64(3), view.Alerts[0].ProductID)
	require.Equal(t, 6, view.Alerts[1].CurrentStock)
	require.Equal(t, 42, view.Alerts[1].ReorderPoint)
	require.Equal(t, 2, gauge.last)
}

func TestComputeViewSortsAndFilters(t *testing.T) {
	repo, sales := seededRepo()
	svc := newTestService(t, repo, sales, nil)
	ctx := context.Background()

	view, err := svc.ComputeView(ctx, Filter{}, SortQuantity)
	require.NoError(t, err)
	require.Equal(t, []string{"CAP-01", "MUG-01", "TEE-01"}, skus(view))

	view, err = svc.ComputeView(ctx, Filter{}, SortDaysUntilStockout)
	require.NoError(t, err)
	require.Equal(t, []string{"MUG-01", "TEE-01", "CAP-01"}, skus(view))

	view, err = svc.ComputeView(ctx, Filter{Search: "tee"}, SortRisk)
	require.NoError(t, err)
	require.Equal(t, []string{"TEE-01"}, skus(view))
	require.Equal(t, 3, view.Stats.TotalProducts)

	view, err = svc.ComputeView(ctx, Filter{LowStockOnly: true, ChannelID: 1}, SortRisk)
	require.NoError(t, err)
	require.Equal(t, []string{"CAP-01", "MUG-01"}, skus(view))

	view, err = svc.ComputeView(ctx, Filter{Risk: RiskLow, IncludeInactive: true}, SortRisk)
	require.NoError(t, err)
	require.Equal(t, []string{"OLD-01", "TEE-01"}, skus(view))
	require.Equal(t, 4, view.Stats.TotalProducts)

	_, err = svc.ComputeView(ctx, Filter{}, SortKey("price"))
	require.ErrorIs(t, err, ErrUnknownSortKey)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestComputeViewIsIdempotent(t *testing.T) {
	repo, sales := seededRepo()
	svc := newTestService(t, repo, sales, nil)
	ctx := context.Background()

	first, err := svc.ComputeView(ctx, Filter{}, SortRisk)
	require.NoError(t, err)
	second, err := svc.ComputeView(ctx, Filter{}, SortRisk)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func newRedisCache(t *testing.T) *cache.Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewVersioned(client, "inventory", time.Minute)
}

func TestComputeViewServesFromCacheUntilMutation(t *testing.T) {
	repo, sales := seededRepo()
	svc := newTestService(t, repo, sales, newRedisCache(t))
	ctx := context.Background()

	first, err := svc.ComputeView(ctx, Filter{}, SortRisk)
	require.NoError(t, err)
	second, err := svc.ComputeView(ctx, Filter{}, SortRisk)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, sales.callCount())

	_, err = svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 3, Quantity: 10, Reason: "cycle count"})
	require.NoError(t, err)

	third, err := svc.ComputeView(ctx, Filter{}, SortRisk)
	require.NoError(t, err)
	require.Equal(t, 2, sales.callCount())
	require.Equal(t, 516, third.Stats.TotalUnits)
}

func TestApplyStockChangeCreatesRowAndLedgerEntry(t *testing.T) {
	repo := newMemoryRepo(catalog()...)
	ctx := context.Background()
	batch := uuid.New()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, mv, err := ApplyStockChange(ctx, tx, StockChange{
			ProductID:       1,
			Delta:           12,
			Type:            MovementReceipt,
			ReferenceType:   "po",
			ReferenceID:     7,
			CostImpactCents: 12 * 850,
			BatchID:         batch,
			At:              fixedNow,
		})
		require.NoError(t, err)
		require.Equal(t, 12, rec.Quantity)
		require.Equal(t, 12, rec.Available)
		require.NotNil(t, rec.LastRestockDate)
		require.Equal(t, batch, mv.BatchID)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementReceipt, repo.movements[0].Type)
	require.EqualValues(t, 10200, repo.movements[0].CostImpactCents)
}

func TestPostAdjustmentGuardsNegativeStock(t *testing.T) {
	repo, sales := seededRepo()
	svc := newTestService(t, repo, sales, nil)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 1, Quantity: -7})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Equal(t, 6, repo.records[1].Quantity)
	require.Empty(t, repo.movements)

	mv, err := svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 1, Quantity: -2, CreatedBy: "ops"})
	require.NoError(t, err)
	require.Equal(t, MovementAdjustment, mv.Type)
	require.Equal(t, 4, repo.records[1].Quantity)
	require.Equal(t, 3, repo.records[1].Available)

	_, err = svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 99, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 1, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPostAdjustmentRollsBackOnLedgerFailure(t *testing.T) {
	repo, sales := seededRepo()
	repo.failMove = errors.New("disk full")
	svc := newTestService(t, repo, sales, nil)

	_, err := svc.PostAdjustment(context.Background(), AdjustmentInput{ProductID: 1, Quantity: 5})
	require.Error(t, err)
	require.Equal(t, shared.KindInternal, shared.KindOf(err))
	require.Equal(t, 6, repo.records[1].Quantity)
}

func TestMovementsNewestFirst(t *testing.T) {
	repo, sales := seededRepo()
	svc := newTestService(t, repo, sales, nil)
	ctx := context.Background()

	for _, qty := range []int{1, 2, 3} {
		_, err := svc.PostAdjustment(ctx, AdjustmentInput{ProductID: 2, Quantity: qty})
		require.NoError(t, err)
	}
	mvs, err := svc.Movements(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, mvs, 2)
	require.Equal(t, 3, mvs[0].Quantity)
	require.Equal(t, 2, mvs[1].Quantity)

	_, err = svc.Movements(ctx, 42, 10)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestRefreshReorderPointsPersistsPlans(t *testing.T) {
	repo, sales := seededRepo()
	svc := newTestService(t, repo, sales, nil)

	alerts, err := svc.RefreshReorderPoints(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Len(t, repo.plans, 3)
	require.Equal(t, 42, repo.plans[1].ReorderPoint)
	require.Equal(t, 14, repo.plans[1].SafetyStock)
	require.NotNil(t, repo.plans[1].NextRestockDate)
	require.Equal(t, 21, repo.plans[2].ReorderPoint)
	require.True(t, repo.plans[2].NextRestockDate.Equal(fixedNow.Truncate(24*time.Hour).AddDate(0, 0, 479)))
	require.Zero(t, repo.plans[3].ReorderPoint)
}

func TestExportReorderReport(t *testing.T) {
	repo, sales := seededRepo()
	svc := newTestService(t, repo, sales, nil)
	view, err := svc.ComputeView(context.Background(), Filter{}, SortRisk)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportReorderReport(&buf, view))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(reorderSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "sku", rows[0][1])
	require.Equal(t, "CAP-01", rows[1][1])
	require.Equal(t, "MUG-01", rows[2][1])
	require.Equal(t, "15.00", rows[2][12])
}

func skus(v View) []string {
	out := make([]string, 0, len(v.Items))
	for _, it := range v.Items {
		out = append(out, it.SKU)
	}
	return out
}
