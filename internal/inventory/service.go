package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/platform/cache"
	"github.com/commerceops/opsdash/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListRecords(ctx context.Context) (map[int64]Record, error)
	ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error)
	SaveReorderPlan(ctx context.Context, productID int64, update ReorderUpdate) error
}

// SalesSource provides the order lines used for velocity.
type SalesSource interface {
	ListSaleLines(ctx context.Context, since time.Time) ([]orders.SaleLine, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives the alert count of unscoped views.
type MetricsPort interface {
	SetInventoryAlerts(n int)
}

// ServiceConfig groups engine defaults and optional collaborators.
type ServiceConfig struct {
	Settings Settings
	Metrics  MetricsPort
	Logger   *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service computes the inventory view and owns manual stock corrections.
type Service struct {
	repo     RepositoryPort
	sales    SalesSource
	audit    AuditPort
	cache    *cache.Versioned
	settings Settings
	metrics  MetricsPort
	logger   *slog.Logger
	clock    func() time.Time
	group    singleflight.Group
}

// NewService builds Service. viewCache may be nil.
func NewService(repo RepositoryPort, sales SalesSource, audit AuditPort, viewCache *cache.Versioned, cfg ServiceConfig) *Service {
	settings := cfg.Settings
	if settings.VelocityWindowDays < 1 {
		settings.VelocityWindowDays = 30
	}
	if settings.DefaultLeadTimeDays <= 0 {
		settings.DefaultLeadTimeDays = 14
	}
	if settings.DefaultSafetyStockDays <= 0 {
		settings.DefaultSafetyStockDays = 7
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:     repo,
		sales:    sales,
		audit:    audit,
		cache:    viewCache,
		settings: settings,
		metrics:  cfg.Metrics,
		logger:   logger.With(slog.String("module", "inventory")),
		clock:    clock,
	}
}

// today is the evaluation instant of a view. Truncating to the UTC day keeps
// repeated computations without intervening writes identical.
func (s *Service) today() time.Time {
	return s.clock().UTC().Truncate(24 * time.Hour)
}

// windowStart is the first day of the velocity window. The window ends with
// today, so a 30 day window starts 29 days before it.
func (s *Service) windowStart(today time.Time) time.Time {
	return today.AddDate(0, 0, -(s.settings.VelocityWindowDays - 1))
}

// ComputeView derives items, stats and alerts. It never writes.
func (s *Service) ComputeView(ctx context.Context, filter Filter, key SortKey) (View, error) {
	key, err := ParseSortKey(string(key))
	if err != nil {
		return View{}, err
	}
	now := s.today()

	cacheKey, err := s.cache.BuildKey(ctx, "view", string(key), filter.cacheKey(), now.Format("20060102"))
	if err != nil {
		s.logger.Warn("inventory view cache unavailable", slog.Any("error", err))
		return s.buildView(ctx, filter, key, now)
	}

	res, err, _ := s.group.Do(cacheKey, func() (any, error) {
		var (
			view     View
			buildErr error
		)
		err := s.cache.FetchJSON(ctx, cacheKey, &view, func(ctx context.Context) (any, error) {
			v, err := s.buildView(ctx, filter, key, now)
			buildErr = err
			return v, err
		})
		if err != nil && buildErr == nil {
			s.logger.Warn("inventory view cache failed", slog.Any("error", err))
			return s.buildView(ctx, filter, key, now)
		}
		return view, err
	})
	if err != nil {
		return View{}, err
	}
	view := res.(View)
	if filter == (Filter{}) && s.metrics != nil {
		s.metrics.SetInventoryAlerts(len(view.Alerts))
	}
	return view, nil
}

func (s *Service) buildView(ctx context.Context, filter Filter, key SortKey, now time.Time) (View, error) {
	var (
		products []Product
		records  map[int64]Record
		lines    []orders.SaleLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.repo.ListProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		records, err = s.repo.ListRecords(gctx)
		return err
	})
	g.Go(func() (err error) {
		lines, err = s.sales.ListSaleLines(gctx, s.windowStart(now))
		return err
	})
	if err := g.Wait(); err != nil {
		return View{}, shared.Internal("inventory.ComputeView", err)
	}

	byProduct := make(map[int64][]orders.SaleLine)
	for _, l := range lines {
		byProduct[l.ProductID] = append(byProduct[l.ProductID], l)
	}
	return assembleView(products, records, byProduct, s.settings, filter, key, now), nil
}

// InvalidateView drops every cached view. Called after any stock mutation.
func (s *Service) InvalidateView(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.InvalidateView(ctx); err != nil {
		s.logger.Warn("inventory view invalidation failed", slog.Any("error", err))
	}
}

// PostAdjustment applies a signed manual correction.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if input.ProductID <= 0 {
		return Movement{}, shared.InvalidArgument("inventory: product required")
	}
	if input.Quantity == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	reason := input.Reason
	if reason == "" {
		reason = "manual adjustment"
	}
	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProduct(ctx, input.ProductID); err != nil {
			return err
		}
		var err error
		_, mv, err = ApplyStockChange(ctx, tx, StockChange{
			ProductID: input.ProductID,
			Delta:     input.Quantity,
			Type:      MovementAdjustment,
			Reason:    reason,
			CreatedBy: input.CreatedBy,
			At:        s.clock().UTC(),
		})
		return err
	})
	if err != nil {
		return Movement{}, shared.Internal("inventory.PostAdjustment", err)
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, input.CreatedBy, "inventory:ADJUSTMENT", input.ProductID, map[string]any{
		"qty":    input.Quantity,
		"reason": reason,
	})
	return mv, nil
}

// Movements lists ledger entries for a product, newest first.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, shared.Internal("inventory.Movements", err)
	}
	page := shared.NewPage(limit, 0)
	mvs, err := s.repo.ListMovements(ctx, productID, page.Limit)
	if err != nil {
		return nil, shared.Internal("inventory.Movements", err)
	}
	return mvs, nil
}

// RefreshReorderPoints persists the current reorder plan of every active
// product as of now and returns the alerts raised.
func (s *Service) RefreshReorderPoints(ctx context.Context, now time.Time) ([]Alert, error) {
	if now.IsZero() {
		now = s.clock()
	}
	now = now.UTC().Truncate(24 * time.Hour)
	view, err := s.buildView(ctx, Filter{}, SortRisk, now)
	if err != nil {
		return nil, err
	}
	for _, it := range view.Items {
		update := ReorderUpdate{
			ReorderPoint:    it.Reorder.ReorderPoint,
			ReorderQuantity: it.Reorder.ReorderQuantity,
			SafetyStock:     it.Reorder.SafetyStock,
			NextRestockDate: it.Reorder.ReorderDate,
		}
		if err := s.repo.SaveReorderPlan(ctx, it.ProductID, update); err != nil {
			return nil, shared.Internal("inventory.RefreshReorderPoints", fmt.Errorf("product %d: %w", it.ProductID, err))
		}
	}
	s.invalidate(ctx)
	if s.metrics != nil {
		s.metrics.SetInventoryAlerts(len(view.Alerts))
	}
	s.logger.Info("reorder points refreshed",
		slog.Int("products", len(view.Items)),
		slog.Int("alerts", len(view.Alerts)))
	return view.Alerts, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "inventory",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
