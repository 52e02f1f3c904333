package returns

import (
	"time"

	"github.com/commerceops/opsdash/internal/shared"
)

// Return is a return merchandise authorization with its items.
type Return struct {
	ID                      int64
	ReturnNumber            string
	OrderID                 int64
	ChannelID               int64
	CustomerEmail           string
	Status                  Status
	TotalReturnValueCents   int64
	ReturnShippingCostCents int64
	ReturnLabelCostCents    int64
	ProcessingCostCents     int64
	ProductValueLossCents   int64
	TotalActualLossCents    int64
	RestockingFeeCents      int64
	SupplierChargebackCents int64
	KeepItRefund            bool
	Notes                   string
	CreatedAt               time.Time
	UpdatedAt               time.Time
	Items                   []Item
}

// Item is a returned order line. ProductID is zero for lines not matched to
// a catalog product; those are never restocked.
type Item struct {
	ID                  int64
	ReturnID            int64
	OrderItemID         int64
	ProductID           int64
	SKU                 string
	ProductTitle        string
	QuantityReturned    int
	QuantityRestockable int
	QuantityDamaged     int
	UnitPriceCents      int64
	TotalValueCents     int64
	ReasonCategory      string
	ReasonDetail        string
	Condition           Condition
	ValueLossCents      int64
	ResaleValueCents    int64
	ResaleChannel       ResaleChannel
	DisposalRequired    bool
}

// CreateItem selects an order line to return.
type CreateItem struct {
	OrderItemID    int64
	Quantity       int
	ReasonCategory string
	ReasonDetail   string
}

// CreateInput describes a return request.
type CreateInput struct {
	OrderID     int64
	Items       []CreateItem
	AutoApprove bool
	// AcceptKeepIt persists a recommended keep-it refund instead of
	// returning the offer.
	AcceptKeepIt bool
	Notes        string
	Actor        string
}

// KeepItOffer recommends refunding without taking the goods back.
type KeepItOffer struct {
	TotalReturnValueCents int64    `json:"totalReturnValueCents"`
	EstimatedCost         Estimate `json:"estimatedCost"`
	ThresholdCents        int64    `json:"thresholdCents"`
}

// CreateResult carries the persisted return, the keep-it recommendation, or
// both when a recommended return was auto-approved or accepted.
type CreateResult struct {
	Return *Return
	KeepIt *KeepItOffer
}

// ItemInspection reports the condition of one returned item. Nil quantities
// are derived from the resale channel.
type ItemInspection struct {
	ReturnItemID        int64
	Condition           Condition
	QuantityRestockable *int
	QuantityDamaged     *int
}

// InspectInput describes an inspection.
type InspectInput struct {
	Items                   []ItemInspection
	RestockingFeeCents      int64
	SupplierChargebackCents int64
	Actor                   string
}

// ItemDisposition is the inspection outcome of one item.
type ItemDisposition struct {
	ReturnItemID        int64         `json:"returnItemId"`
	Condition           Condition     `json:"condition"`
	LossBps             int64         `json:"lossBps"`
	ValueLossCents      int64         `json:"valueLossCents"`
	ResaleValueCents    int64         `json:"resaleValueCents"`
	ResaleChannel       ResaleChannel `json:"resaleChannel"`
	DisposalRequired    bool          `json:"disposalRequired"`
	QuantityRestockable int           `json:"quantityRestockable"`
	QuantityDamaged     int           `json:"quantityDamaged"`
}

// CostBreakdown is the loss computed by an inspection.
type CostBreakdown struct {
	ReturnID                int64             `json:"returnId"`
	TotalReturnValueCents   int64             `json:"totalReturnValueCents"`
	ReturnShippingCostCents int64             `json:"returnShippingCostCents"`
	ReturnLabelCostCents    int64             `json:"returnLabelCostCents"`
	ProcessingCostCents     int64             `json:"processingCostCents"`
	ProductValueLossCents   int64             `json:"productValueLossCents"`
	RestockingFeeCents      int64             `json:"restockingFeeCents"`
	SupplierChargebackCents int64             `json:"supplierChargebackCents"`
	TotalActualLossCents    int64             `json:"totalActualLossCents"`
	Items                   []ItemDisposition `json:"items"`
}

// ListFilter narrows ListReturns.
type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}

// ReasonSummary aggregates returns sharing a reason category.
type ReasonSummary struct {
	Items      int   `json:"items"`
	Units      int   `json:"units"`
	ValueCents int64 `json:"valueCents"`
	LossCents  int64 `json:"lossCents"`
}

// Summary is the return-cost analytics over a period.
type Summary struct {
	From                 time.Time                `json:"from"`
	To                   time.Time                `json:"to"`
	Count                int                      `json:"count"`
	TotalValueCents      int64                    `json:"totalValueCents"`
	TotalActualLossCents int64                    `json:"totalActualLossCents"`
	KeepItCount          int                      `json:"keepItCount"`
	ByStatus             map[string]int           `json:"byStatus"`
	ByReason             map[string]ReasonSummary `json:"byReason"`
}

var (
	// ErrReturnNotFound indicates a missing return.
	ErrReturnNotFound = shared.NewError(shared.KindNotFound, "returns: return not found")
	// ErrItemNotFound indicates an order line or return item outside the
	// return's order.
	ErrItemNotFound = shared.NewError(shared.KindNotFound, "returns: item not found")
	// ErrEmptyItems indicates a request without items.
	ErrEmptyItems = shared.NewError(shared.KindInvalidArgument, "returns: at least one item required")
	// ErrInvalidQuantity indicates a quantity outside 1..ordered or
	// inconsistent restockable/damaged counts.
	ErrInvalidQuantity = shared.NewError(shared.KindInvalidArgument, "returns: invalid quantity")
	// ErrInvalidAmount indicates a negative fee.
	ErrInvalidAmount = shared.NewError(shared.KindInvalidArgument, "returns: amounts must be >= 0")
	// ErrUnknownStatus indicates an unparseable status name.
	ErrUnknownStatus = shared.NewError(shared.KindInvalidArgument, "returns: unknown status")
	// ErrInvalidState indicates an operation not allowed in the current status.
	ErrInvalidState = shared.NewError(shared.KindInvalidTransition, "returns: invalid state transition")
	// ErrDuplicateReturnNumber is reported by stores on an RMA number collision.
	ErrDuplicateReturnNumber = shared.NewError(shared.KindConflict, "returns: duplicate return number")
)
