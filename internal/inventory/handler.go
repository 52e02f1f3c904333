package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/commerceops/opsdash/internal/platform/httpx"
	"github.com/commerceops/opsdash/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleView)
	r.Get("/reorder-report.xlsx", h.handleReorderReport)
	r.Post("/adjustments", h.handleAdjustment)
	r.Get("/{productID}/movements", h.handleMovements)
}

type statsResponse struct {
	Stats
	TotalValue decimal.Decimal `json:"totalValue"`
}

type viewResponse struct {
	Items  []Item        `json:"items"`
	Stats  statsResponse `json:"stats"`
	Alerts []Alert       `json:"alerts"`
}

type adjustmentRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,ne=0"`
	Reason    string `json:"reason" validate:"max=255"`
	CreatedBy string `json:"createdBy" validate:"max=128"`
}

func parseFilter(r *http.Request) (Filter, SortKey, error) {
	q := r.URL.Query()
	var f Filter
	if raw := q.Get("risk"); raw != "" {
		tier, err := ParseRiskTier(raw)
		if err != nil {
			return Filter{}, "", err
		}
		f.Risk = tier
	}
	f.Search = q.Get("search")
	f.LowStockOnly = q.Get("low_stock") == "true"
	f.IncludeInactive = q.Get("include_inactive") == "true"
	if raw := q.Get("channel_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filter{}, "", shared.InvalidArgument("inventory: invalid channel_id %q", raw)
		}
		f.ChannelID = id
	}
	key, err := ParseSortKey(q.Get("sort"))
	if err != nil {
		return Filter{}, "", err
	}
	return f, key, nil
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	filter, key, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	view, err := h.service.ComputeView(r.Context(), filter, key)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewResponse{
		Items:  view.Items,
		Stats:  statsResponse{Stats: view.Stats, TotalValue: shared.CentsToDecimal(view.Stats.TotalValueCents)},
		Alerts: view.Alerts,
	})
}

func (h *Handler) handleReorderReport(w http.ResponseWriter, r *http.Request) {
	filter, key, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	view, err := h.service.ComputeView(r.Context(), filter, key)
	if err != nil {
		h.fail(w, err)
		return
	}
	filename := "reorder-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := ExportReorderReport(w, view); err != nil {
		h.logger.Error("reorder report export failed", slog.Any("error", err))
	}
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	mv, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.fail(w, shared.InvalidArgument("inventory: invalid product id"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	mvs, err := h.service.Movements(r.Context(), productID, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": mvs})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("inventory request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
