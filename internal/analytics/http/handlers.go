package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commerceops/opsdash/internal/analytics"
	"github.com/commerceops/opsdash/internal/analytics/export"
	"github.com/commerceops/opsdash/internal/platform/httpx"
	"github.com/commerceops/opsdash/internal/shared"
)

const requestTimeout = 5 * time.Second

// PerformanceService defines the data contract used by the handler.
type PerformanceService interface {
	ProductPerformance(ctx context.Context, windowDays int) (analytics.Report, error)
}

// Handler serves product performance endpoints.
type Handler struct {
	logger  *slog.Logger
	service PerformanceService
	csvPool sync.Pool
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service PerformanceService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

type productResponse struct {
	ProductID       int64              `json:"productId"`
	SKU             string             `json:"sku"`
	Title           string             `json:"title"`
	Units           int                `json:"units"`
	PreviousUnits   int                `json:"previousUnits"`
	Revenue         decimal.Decimal    `json:"revenue"`
	PreviousRevenue decimal.Decimal    `json:"previousRevenue"`
	GrowthPct       float64            `json:"growthPct"`
	UnitsShare      float64            `json:"unitsShare"`
	Category        analytics.Category `json:"category"`
}

type reportResponse struct {
	From         time.Time                  `json:"from"`
	To           time.Time                  `json:"to"`
	WindowDays   int                        `json:"windowDays"`
	TotalUnits   int                        `json:"totalUnits"`
	TotalRevenue decimal.Decimal            `json:"totalRevenue"`
	Thresholds   analytics.Thresholds       `json:"thresholds"`
	ByCategory   map[analytics.Category]int `json:"byCategory"`
	Products     []productResponse          `json:"products"`
}

func toResponse(r analytics.Report) reportResponse {
	resp := reportResponse{
		From:         r.From,
		To:           r.To,
		WindowDays:   r.WindowDays,
		TotalUnits:   r.TotalUnits,
		TotalRevenue: shared.CentsToDecimal(r.TotalRevenueCents),
		Thresholds:   r.Thresholds,
		ByCategory:   r.ByCategory,
		Products:     make([]productResponse, len(r.Products)),
	}
	for i, p := range r.Products {
		resp.Products[i] = productResponse{
			ProductID:       p.ProductID,
			SKU:             p.SKU,
			Title:           p.Title,
			Units:           p.Units,
			PreviousUnits:   p.PreviousUnits,
			Revenue:         shared.CentsToDecimal(p.RevenueCents),
			PreviousRevenue: shared.CentsToDecimal(p.PreviousRevenueCents),
			GrowthPct:       p.GrowthPct,
			UnitsShare:      p.UnitsShare,
			Category:        p.Category,
		}
	}
	return resp
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(report))
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WritePerformanceCSV(buf, report); err != nil {
		h.fail(w, shared.Internal("analytics.csv", err))
		return
	}

	filename := fmt.Sprintf("product-performance-%s.csv", report.To.AddDate(0, 0, -1).Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (analytics.Report, bool) {
	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.fail(w, shared.InvalidArgument("analytics: invalid window %q", raw))
			return analytics.Report{}, false
		}
		window = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.ProductPerformance(ctx, window)
	if err != nil {
		h.fail(w, err)
		return analytics.Report{}, false
	}
	return report, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("analytics request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
