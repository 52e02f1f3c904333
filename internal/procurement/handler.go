package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/platform/httpx"
	"github.com/commerceops/opsdash/internal/shared"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Post("/reorder", h.handleReorder)
	r.Get("/suppliers/{productID}", h.handleSuppliers)
	r.Route("/{poID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
		r.Post("/send", h.handleSend)
		r.Post("/confirm", h.handleConfirm)
		r.Post("/ship", h.handleShip)
		r.Post("/cancel", h.handleCancel)
		r.Post("/receive", h.handleReceive)
	})
}

type lineRequest struct {
	ProductID   int64           `json:"productId" validate:"required,gt=0"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	SupplierSKU string          `json:"supplierSku" validate:"max=64"`
}

type createRequest struct {
	SupplierID     int64           `json:"supplierId" validate:"required,gt=0"`
	Items          []lineRequest   `json:"items" validate:"required,min=1,dive"`
	FreightCost    decimal.Decimal `json:"freightCost"`
	InsuranceCost  decimal.Decimal `json:"insuranceCost"`
	CustomsDuty    decimal.Decimal `json:"customsDuty"`
	OtherFees      decimal.Decimal `json:"otherFees"`
	Currency       string          `json:"currency" validate:"omitempty,len=3"`
	ExchangeRate   decimal.Decimal `json:"exchangeRate"`
	OrderDate      *time.Time      `json:"orderDate"`
	ExpectedDate   *time.Time      `json:"expectedDate"`
	ShippingMethod string          `json:"shippingMethod" validate:"max=64"`
	Notes          string          `json:"notes" validate:"max=2000"`
	Actor          string          `json:"actor" validate:"max=128"`
}

type updateRequest struct {
	Status         *string          `json:"status"`
	SupplierID     *int64           `json:"supplierId" validate:"omitempty,gt=0"`
	Items          []lineRequest    `json:"items" validate:"omitempty,min=1,dive"`
	FreightCost    *decimal.Decimal `json:"freightCost"`
	InsuranceCost  *decimal.Decimal `json:"insuranceCost"`
	CustomsDuty    *decimal.Decimal `json:"customsDuty"`
	OtherFees      *decimal.Decimal `json:"otherFees"`
	Currency       *string          `json:"currency" validate:"omitempty,len=3"`
	ExchangeRate   *decimal.Decimal `json:"exchangeRate"`
	ExpectedDate   *time.Time       `json:"expectedDate"`
	TrackingNumber *string          `json:"trackingNumber" validate:"omitempty,max=128"`
	ShippingMethod *string          `json:"shippingMethod" validate:"omitempty,max=64"`
	Notes          *string          `json:"notes" validate:"omitempty,max=2000"`
	Actor          string           `json:"actor" validate:"max=128"`
}

type actorRequest struct {
	Actor          string `json:"actor" validate:"max=128"`
	TrackingNumber string `json:"trackingNumber" validate:"max=128"`
	ShippingMethod string `json:"shippingMethod" validate:"max=64"`
}

type receiveLineRequest struct {
	POItemID         int64 `json:"poItemId" validate:"required,gt=0"`
	QuantityReceived int   `json:"quantityReceived" validate:"gte=0"`
	QuantityRejected int   `json:"quantityRejected" validate:"gte=0"`
}

type receiveRequest struct {
	Items        []receiveLineRequest `json:"items" validate:"required,min=1,dive"`
	ReceivedDate *time.Time           `json:"receivedDate"`
	Actor        string               `json:"actor" validate:"max=128"`
}

type reorderRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Actor     string `json:"actor" validate:"max=128"`
}

type itemResponse struct {
	ID                  int64           `json:"id"`
	ProductID           int64           `json:"productId"`
	SupplierSKU         string          `json:"supplierSku,omitempty"`
	QuantityOrdered     int             `json:"quantityOrdered"`
	QuantityReceived    int             `json:"quantityReceived"`
	QuantityRejected    int             `json:"quantityRejected"`
	UnitCost            decimal.Decimal `json:"unitCost"`
	FreightAllocation   decimal.Decimal `json:"freightAllocation"`
	DutyAllocation      decimal.Decimal `json:"dutyAllocation"`
	OtherCostAllocation decimal.Decimal `json:"otherCostAllocation"`
	LandedUnitCost      decimal.Decimal `json:"landedUnitCost"`
	ReceivedDate        *time.Time      `json:"receivedDate,omitempty"`
}

type poResponse struct {
	ID             int64           `json:"id"`
	PONumber       string          `json:"poNumber"`
	SupplierID     int64           `json:"supplierId"`
	Status         POStatus        `json:"status"`
	OrderDate      time.Time       `json:"orderDate"`
	ExpectedDate   *time.Time      `json:"expectedDate,omitempty"`
	ReceivedDate   *time.Time      `json:"receivedDate,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	FreightCost    decimal.Decimal `json:"freightCost"`
	InsuranceCost  decimal.Decimal `json:"insuranceCost"`
	CustomsDuty    decimal.Decimal `json:"customsDuty"`
	OtherFees      decimal.Decimal `json:"otherFees"`
	TotalCost      decimal.Decimal `json:"totalCost"`
	Currency       string          `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchangeRate"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
	ShippingMethod string          `json:"shippingMethod,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Items          []itemResponse  `json:"items,omitempty"`
}

type receiptResponse struct {
	PurchaseOrder poResponse           `json:"purchaseOrder"`
	BatchID       uuid.UUID            `json:"batchId"`
	Movements     []inventory.Movement `json:"movements"`
}

func toResponse(po PurchaseOrder) poResponse {
	resp := poResponse{
		ID:             po.ID,
		PONumber:       po.PONumber,
		SupplierID:     po.SupplierID,
		Status:         po.Status,
		OrderDate:      po.OrderDate,
		ExpectedDate:   po.ExpectedDate,
		ReceivedDate:   po.ReceivedDate,
		Subtotal:       shared.CentsToDecimal(po.SubtotalCents),
		FreightCost:    shared.CentsToDecimal(po.FreightCostCents),
		InsuranceCost:  shared.CentsToDecimal(po.InsuranceCostCents),
		CustomsDuty:    shared.CentsToDecimal(po.CustomsDutyCents),
		OtherFees:      shared.CentsToDecimal(po.OtherFeesCents),
		TotalCost:      shared.CentsToDecimal(po.TotalCostCents),
		Currency:       po.Currency,
		ExchangeRate:   po.ExchangeRate,
		TrackingNumber: po.TrackingNumber,
		ShippingMethod: po.ShippingMethod,
		Notes:          po.Notes,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
	}
	for _, it := range po.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:                  it.ID,
			ProductID:           it.ProductID,
			SupplierSKU:         it.SupplierSKU,
			QuantityOrdered:     it.QuantityOrdered,
			QuantityReceived:    it.QuantityReceived,
			QuantityRejected:    it.QuantityRejected,
			UnitCost:            shared.CentsToDecimal(it.UnitCostCents),
			FreightAllocation:   shared.CentsToDecimal(it.FreightAllocationCents),
			DutyAllocation:      shared.CentsToDecimal(it.DutyAllocationCents),
			OtherCostAllocation: shared.CentsToDecimal(it.OtherCostAllocationCents),
			LandedUnitCost:      shared.CentsToDecimal(it.LandedUnitCostCents),
			ReceivedDate:        it.ReceivedDate,
		})
	}
	return resp
}

func toLines(reqs []lineRequest) []LineInput {
	if reqs == nil {
		return nil
	}
	lines := make([]LineInput, len(reqs))
	for i, l := range reqs {
		lines[i] = LineInput{
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			UnitCostCents: shared.DecimalToCents(l.UnitCost),
			SupplierSKU:   l.SupplierSKU,
		}
	}
	return lines
}

func optCents(d *decimal.Decimal) *int64 {
	if d == nil {
		return nil
	}
	c := shared.DecimalToCents(*d)
	return &c
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("search")}
	if raw := q.Get("status"); raw != "" {
		status, err := ParsePOStatus(raw)
		if err != nil {
			h.fail(w, err)
			return
		}
		filter.Status = status
	}
	filter.SupplierID, _ = strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	pos, total, err := h.service.ListPurchaseOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]poResponse, len(pos))
	for i, po := range pos {
		out[i] = toResponse(po)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchaseOrders": out, "total": total})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	input := CreatePOInput{
		SupplierID:         req.SupplierID,
		Items:              toLines(req.Items),
		FreightCostCents:   shared.DecimalToCents(req.FreightCost),
		InsuranceCostCents: shared.DecimalToCents(req.InsuranceCost),
		CustomsDutyCents:   shared.DecimalToCents(req.CustomsDuty),
		OtherFeesCents:     shared.DecimalToCents(req.OtherFees),
		Currency:           req.Currency,
		ExchangeRate:       req.ExchangeRate,
		ExpectedDate:       req.ExpectedDate,
		ShippingMethod:     req.ShippingMethod,
		Notes:              req.Notes,
		Actor:              req.Actor,
	}
	if req.OrderDate != nil {
		input.OrderDate = *req.OrderDate
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(po))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.poID(w, r)
	if !ok {
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(po))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.poID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	input := UpdatePOInput{
		SupplierID:         req.SupplierID,
		Items:              toLines(req.Items),
		FreightCostCents:   optCents(req.FreightCost),
		InsuranceCostCents: optCents(req.InsuranceCost),
		CustomsDutyCents:   optCents(req.CustomsDuty),
		OtherFeesCents:     optCents(req.OtherFees),
		Currency:           req.Currency,
		ExchangeRate:       req.ExchangeRate,
		ExpectedDate:       req.ExpectedDate,
		TrackingNumber:     req.TrackingNumber,
		ShippingMethod:     req.ShippingMethod,
		Notes:              req.Notes,
		Actor:              req.Actor,
	}
	if req.Status != nil {
		status, err := ParsePOStatus(*req.Status)
		if err != nil {
			h.fail(w, err)
			return
		}
		input.Status = &status
	}
	po, err := h.service.UpdatePurchaseOrder(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(po))
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, func(id int64, req actorRequest) (PurchaseOrder, error) {
		return h.service.SendPurchaseOrder(r.Context(), id, req.Actor)
	})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, func(id int64, req actorRequest) (PurchaseOrder, error) {
		return h.service.ConfirmPurchaseOrder(r.Context(), id, req.Actor)
	})
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, func(id int64, req actorRequest) (PurchaseOrder, error) {
		return h.service.ShipPurchaseOrder(r.Context(), id, req.TrackingNumber, req.ShippingMethod, req.Actor)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, func(id int64, req actorRequest) (PurchaseOrder, error) {
		return h.service.CancelPurchaseOrder(r.Context(), id, req.Actor)
	})
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, apply func(int64, actorRequest) (PurchaseOrder, error)) {
	id, ok := h.poID(w, r)
	if !ok {
		return
	}
	var req actorRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, err)
			return
		}
	}
	po, err := apply(id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(po))
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.poID(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	input := ReceiveInput{
		POID:           id,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Actor:          req.Actor,
	}
	if req.ReceivedDate != nil {
		input.ReceivedDate = *req.ReceivedDate
	}
	for _, l := range req.Items {
		input.Lines = append(input.Lines, ReceiveLine{
			POItemID:         l.POItemID,
			QuantityReceived: l.QuantityReceived,
			QuantityRejected: l.QuantityRejected,
		})
	}
	receipt, err := h.service.ReceivePurchaseOrder(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receiptResponse{
		PurchaseOrder: toResponse(receipt.Order),
		BatchID:       receipt.BatchID,
		Movements:     receipt.Movements,
	})
}

func (h *Handler) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.fail(w, shared.InvalidArgument("procurement: invalid product id"))
		return
	}
	candidates, err := h.service.SuppliersForProduct(r.Context(), productID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": candidates})
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	po, err := h.service.ReorderDraft(r.Context(), req.ProductID, req.Quantity, req.Actor)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(po))
}

func (h *Handler) poID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "poID"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, shared.InvalidArgument("procurement: invalid purchase order id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error("procurement request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
