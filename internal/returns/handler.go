package returns

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

// Handler exposes return endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the returns handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers return routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/summary", h.handleSummary)
	r.Route("/{returnID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/inspect", h.handleInspect)
		r.Post("/approve", h.handleApprove)
		r.Post("/reject", h.handleReject)
		r.Post("/complete", h.handleComplete)
	})
}

type createItemRequest struct {
	OrderItemID    int64  `json:"orderItemId" validate:"required,gt=0"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	ReasonCategory string `json:"reasonCategory" validate:"max=64"`
	ReasonDetail   string `json:"reasonDetail" validate:"max=2000"`
}

type createRequest struct {
	OrderID      int64               `json:"orderId" validate:"required,gt=0"`
	Items        []createItemRequest `json:"items" validate:"required,min=1,dive"`
	AutoApprove  bool                `json:"autoApprove"`
	AcceptKeepIt bool                `json:"acceptKeepIt"`
	Notes        string              `json:"notes" validate:"max=2000"`
	Actor        string              `json:"actor" validate:"max=128"`
}

type inspectItemRequest struct {
	ReturnItemID        int64  `json:"returnItemId" validate:"required,gt=0"`
	Condition           string `json:"condition" validate:"max=32"`
	QuantityRestockable *int   `json:"quantityRestockable" validate:"omitempty,gte=0"`
	QuantityDamaged     *int   `json:"quantityDamaged" validate:"omitempty,gte=0"`
}

type inspectRequest struct {
	Items              []inspectItemRequest `json:"items" validate:"dive"`
	RestockingFee      decimal.Decimal      `json:"restockingFee"`
	SupplierChargeback decimal.Decimal      `json:"supplierChargeback"`
	Actor              string               `json:"actor" validate:"max=128"`
}

type actionRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
	Actor  string `json:"actor" validate:"max=128"`
}

type itemResponse struct {
	ID                  int64           `json:"id"`
	OrderItemID         int64           `json:"orderItemId"`
	ProductID           int64           `json:"productId,omitempty"`
	SKU                 string          `json:"sku"`
	ProductTitle        string          `json:"productTitle"`
	QuantityReturned    int             `json:"quantityReturned"`
	QuantityRestockable int             `json:"quantityRestockable"`
	QuantityDamaged     int             `json:"quantityDamaged"`
	UnitPrice           decimal.Decimal `json:"unitPrice"`
	TotalValue          decimal.Decimal `json:"totalValue"`
	ReasonCategory      string          `json:"reasonCategory"`
	ReasonDetail        string          `json:"reasonDetail,omitempty"`
	Condition           Condition       `json:"condition"`
	ValueLoss           decimal.Decimal `json:"valueLoss"`
	ResaleValue         decimal.Decimal `json:"resaleValue"`
	ResaleChannel       ResaleChannel   `json:"resaleChannel,omitempty"`
	DisposalRequired    bool            `json:"disposalRequired"`
}

type returnResponse struct {
	ID                 int64           `json:"id"`
	ReturnNumber       string          `json:"returnNumber"`
	OrderID            int64           `json:"orderId"`
	ChannelID          int64           `json:"channelId,omitempty"`
	CustomerEmail      string          `json:"customerEmail,omitempty"`
	Status             Status          `json:"status"`
	TotalReturnValue   decimal.Decimal `json:"totalReturnValue"`
	ReturnShippingCost decimal.Decimal `json:"returnShippingCost"`
	ReturnLabelCost    decimal.Decimal `json:"returnLabelCost"`
	ProcessingCost     decimal.Decimal `json:"processingCost"`
	ProductValueLoss   decimal.Decimal `json:"productValueLoss"`
	TotalActualLoss    decimal.Decimal `json:"totalActualLoss"`
	RestockingFee      decimal.Decimal `json:"restockingFee"`
	SupplierChargeback decimal.Decimal `json:"supplierChargeback"`
	KeepItRefund       bool            `json:"keepItRefund"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Items              []itemResponse  `json:"items,omitempty"`
}

type keepItResponse struct {
	TotalReturnValue decimal.Decimal `json:"totalReturnValue"`
	EstimatedCost    decimal.Decimal `json:"estimatedCost"`
	Threshold        decimal.Decimal `json:"threshold"`
	Breakdown        Estimate        `json:"breakdown"`
}

type createResponse struct {
	Return          *returnResponse `json:"return,omitempty"`
	ShouldOfferKeep bool            `json:"shouldOfferKeepIt"`
	KeepItOffer     *keepItResponse `json:"keepItOffer,omitempty"`
}

func toResponse(r Return) returnResponse {
	resp := returnResponse{
		ID:                 r.ID,
		ReturnNumber:       r.ReturnNumber,
		OrderID:            r.OrderID,
		ChannelID:          r.ChannelID,
		CustomerEmail:      r.CustomerEmail,
		Status:             r.Status,
		TotalReturnValue:   shared.CentsToDecimal(r.TotalReturnValueCents),
		ReturnShippingCost: shared.CentsToDecimal(r.ReturnShippingCostCents),
		ReturnLabelCost:    shared.CentsToDecimal(r.ReturnLabelCostCents),
		ProcessingCost:     shared.CentsToDecimal(r.ProcessingCostCents),
		ProductValueLoss:   shared.CentsToDecimal(r.ProductValueLossCents),
		TotalActualLoss:    shared.CentsToDecimal(r.TotalActualLossCents),
		RestockingFee:      shared.CentsToDecimal(r.RestockingFeeCents),
		SupplierChargeback: shared.CentsToDecimal(r.SupplierChargebackCents),
		KeepItRefund:       r.KeepItRefund,
		Notes:              r.Notes,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	for _, it := range r.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:                  it.ID,
			OrderItemID:         it.OrderItemID,
			ProductID:           it.ProductID,
			SKU:                 it.SKU,
			ProductTitle:        it.ProductTitle,
			QuantityReturned:    it.QuantityReturned,
			QuantityRestockable: it.QuantityRestockable,
			QuantityDamaged:     it.QuantityDamaged,
			UnitPrice:           shared.CentsToDecimal(it.UnitPriceCents),
			TotalValue:          shared.CentsToDecimal(it.TotalValueCents),
			ReasonCategory:      it.ReasonCategory,
			ReasonDetail:        it.ReasonDetail,
			Condition:           it.Condition,
			ValueLoss:           shared.CentsToDecimal(it.ValueLossCents),
			ResaleValue:         shared.CentsToDecimal(it.ResaleValueCents),
			ResaleChannel:       it.ResaleChannel,
			DisposalRequired:    it.DisposalRequired,
		})
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	input := CreateInput{
		OrderID:      req.OrderID,
		AutoApprove:  req.AutoApprove,
		AcceptKeepIt: req.AcceptKeepIt,
		Notes:        req.Notes,
		Actor:        req.Actor,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, CreateItem{
			OrderItemID:    it.OrderItemID,
			Quantity:       it.Quantity,
			ReasonCategory: it.ReasonCategory,
			ReasonDetail:   it.ReasonDetail,
		})
	}
	res, err := h.service.CreateReturnWithCost(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}

	var resp createResponse
	status := http.StatusOK
	if res.Return != nil {
		ret := toResponse(*res.Return)
		resp.Return = &ret
		status = http.StatusCreated
	}
	if res.KeepIt != nil {
		resp.ShouldOfferKeep = true
		resp.KeepItOffer = &keepItResponse{
			TotalReturnValue: shared.CentsToDecimal(res.KeepIt.TotalReturnValueCents),
			EstimatedCost:    shared.CentsToDecimal(res.KeepIt.EstimatedCost.TotalCents),
			Threshold:        shared.CentsToDecimal(res.KeepIt.ThresholdCents),
			Breakdown:        res.KeepIt.EstimatedCost,
		}
	}
	httpx.JSON(w, status, resp)
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	id, ok := h.returnID(w, r)
	if !ok {
		return
	}
	var req inspectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	input := InspectInput{
		RestockingFeeCents:      shared.DecimalToCents(req.RestockingFee),
		SupplierChargebackCents: shared.DecimalToCents(req.SupplierChargeback),
		Actor:                   req.Actor,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInspection{
			ReturnItemID:        it.ReturnItemID,
			Condition:           ParseCondition(it.Condition),
			QuantityRestockable: it.QuantityRestockable,
			QuantityDamaged:     it.QuantityDamaged,
		})
	}
	breakdown, err := h.service.InspectReturn(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, func(id int64, req actionRequest) (Return, error) {
		return h.service.ApproveReturn(r.Context(), id, req.Actor)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, func(id int64, req actionRequest) (Return, error) {
		return h.service.RejectReturn(r.Context(), id, req.Reason, req.Actor)
	})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, func(id int64, req actionRequest) (Return, error) {
		return h.service.CompleteReturn(r.Context(), id, req.Actor)
	})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, apply func(int64, actionRequest) (Return, error)) {
	id, ok := h.returnID(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, err)
			return
		}
	}
	ret, err := apply(id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(ret))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.returnID(w, r)
	if !ok {
		return
	}
	ret, err := h.service.GetReturn(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(ret))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("search")}
	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			h.fail(w, err)
			return
		}
		filter.Status = status
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	rets, total, err := h.service.ListReturns(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]returnResponse, len(rets))
	for i, ret := range rets {
		out[i] = toResponse(ret)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"returns": out, "total": total})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		h.fail(w, err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		h.fail(w, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.InvalidArgument("returns: invalid date %q", raw)
	}
	return t, nil
}

func (h *Handler) returnID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "returnID"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, shared.InvalidArgument("returns: invalid return id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("returns request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
