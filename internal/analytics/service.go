package analytics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/platform/cache"
	"github.com/commerceops/opsdash/internal/shared"
)

// ProductSource lists the catalog.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
}

// SalesSource provides product-attributed order lines.
type SalesSource interface {
	ListSaleLinesBetween(ctx context.Context, from, to time.Time) ([]orders.SaleLine, error)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// Thresholds override the matrix defaults per axis when non-zero.
	Thresholds Thresholds
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Service coordinates performance queries with the cache layer.
type Service struct {
	products   ProductSource
	sales      SalesSource
	cache      *cache.Versioned
	thresholds Thresholds
	logger     *slog.Logger
	clock      func() time.Time
}

// NewService wires the sources with a cache helper. c may be nil.
func NewService(products ProductSource, sales SalesSource, c *cache.Versioned, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		products:   products,
		sales:      sales,
		cache:      c,
		thresholds: cfg.Thresholds,
		logger:     logger.With(slog.String("module", "analytics")),
		clock:      clock,
	}
}

// ProductPerformance reports sales over the last windowDays days, including
// today, against the window before it. windowDays <= 0 means 30.
func (s *Service) ProductPerformance(ctx context.Context, windowDays int) (Report, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	if windowDays > maxWindowDays {
		return Report{}, shared.InvalidArgument("analytics: window must be at most %d days", maxWindowDays)
	}
	to := s.clock().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -windowDays)

	key, err := s.cache.BuildKey(ctx, "products", strconv.Itoa(windowDays), to.Format("20060102"))
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
		return s.build(ctx, from, to, windowDays)
	}
	var (
		report   Report
		buildErr error
	)
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		r, err := s.build(ctx, from, to, windowDays)
		buildErr = err
		return r, err
	})
	if err != nil && buildErr == nil {
		s.logger.Warn("analytics cache failed", slog.Any("error", err))
		return s.build(ctx, from, to, windowDays)
	}
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

func (s *Service) build(ctx context.Context, from, to time.Time, window int) (Report, error) {
	var (
		products []inventory.Product
		current  []orders.SaleLine
		previous []orders.SaleLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.products.ListProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		current, err = s.sales.ListSaleLinesBetween(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		previous, err = s.sales.ListSaleLinesBetween(gctx, from.AddDate(0, 0, -window), from)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, shared.Internal("analytics.ProductPerformance", err)
	}
	return buildReport(products, current, previous, s.thresholds, from, to, window), nil
}
