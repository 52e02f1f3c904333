package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/commerceops/opsdash/internal/shared"
)

// PurchaseOrder is the PO aggregate. Amounts are integer cents in the PO
// currency.
type PurchaseOrder struct {
	ID                 int64
	PONumber           string
	SupplierID         int64
	Status             POStatus
	OrderDate          time.Time
	ExpectedDate       *time.Time
	ReceivedDate       *time.Time
	SubtotalCents      int64
	FreightCostCents   int64
	InsuranceCostCents int64
	CustomsDutyCents   int64
	OtherFeesCents     int64
	TotalCostCents     int64
	Currency           string
	ExchangeRate       decimal.Decimal
	TrackingNumber     string
	ShippingMethod     string
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Items              []POItem
}

// Charges returns the PO-level costs allocated across lines.
func (po PurchaseOrder) Charges() Charges {
	return Charges{
		FreightCents:   po.FreightCostCents,
		InsuranceCents: po.InsuranceCostCents,
		DutyCents:      po.CustomsDutyCents,
		OtherFeesCents: po.OtherFeesCents,
	}
}

// POItem is a purchase order line.
type POItem struct {
	ID                       int64
	POID                     int64
	ProductID                int64
	SupplierSKU              string
	QuantityOrdered          int
	QuantityReceived         int
	QuantityRejected         int
	UnitCostCents            int64
	FreightAllocationCents   int64
	DutyAllocationCents      int64
	OtherCostAllocationCents int64
	LandedUnitCostCents      int64
	ReceivedDate             *time.Time
}

// LineTotalCents is quantity × unit cost.
func (i POItem) LineTotalCents() int64 {
	return int64(i.QuantityOrdered) * i.UnitCostCents
}

// Outstanding is the quantity not yet received or rejected.
func (i POItem) Outstanding() int {
	return i.QuantityOrdered - i.QuantityReceived - i.QuantityRejected
}

// Settled reports whether the line is fully accounted for.
func (i POItem) Settled() bool {
	return i.QuantityReceived+i.QuantityRejected >= i.QuantityOrdered
}

// Supplier is a vendor POs are raised against.
type Supplier struct {
	ID       int64
	Name     string
	Email    string
	Currency string
	Active   bool
}

// SupplierCandidate is a supplier able to provide a product.
type SupplierCandidate struct {
	SupplierID    int64  `json:"supplierId"`
	SupplierName  string `json:"supplierName"`
	SupplierSKU   string `json:"supplierSku"`
	Currency      string `json:"currency"`
	UnitCostCents int64  `json:"unitCostCents"`
	LeadTimeDays  int    `json:"leadTimeDays"`
	MOQ           int    `json:"moq"`
	Preferred     bool   `json:"preferred"`
}

// LineInput describes a requested PO line.
type LineInput struct {
	ProductID     int64
	Quantity      int
	UnitCostCents int64
	SupplierSKU   string
}

// CreatePOInput describes a new purchase order.
type CreatePOInput struct {
	SupplierID         int64
	Items              []LineInput
	FreightCostCents   int64
	InsuranceCostCents int64
	CustomsDutyCents   int64
	OtherFeesCents     int64
	Currency           string
	ExchangeRate       decimal.Decimal
	OrderDate          time.Time
	ExpectedDate       *time.Time
	ShippingMethod     string
	Notes              string
	Actor              string
}

// UpdatePOInput carries optional changes; nil fields are left untouched.
type UpdatePOInput struct {
	Status             *POStatus
	SupplierID         *int64
	Items              []LineInput
	FreightCostCents   *int64
	InsuranceCostCents *int64
	CustomsDutyCents   *int64
	OtherFeesCents     *int64
	Currency           *string
	ExchangeRate       *decimal.Decimal
	ExpectedDate       *time.Time
	TrackingNumber     *string
	ShippingMethod     *string
	Notes              *string
	Actor              string
}

func (in UpdatePOInput) touchesDraftFields() bool {
	return in.SupplierID != nil || in.Items != nil || in.FreightCostCents != nil ||
		in.InsuranceCostCents != nil || in.CustomsDutyCents != nil || in.OtherFeesCents != nil ||
		in.Currency != nil || in.ExchangeRate != nil
}

// ReceiveLine reports quantities for one PO item.
type ReceiveLine struct {
	POItemID         int64
	QuantityReceived int
	QuantityRejected int
}

// ReceiveInput describes a goods receipt against a PO.
type ReceiveInput struct {
	POID           int64
	Lines          []ReceiveLine
	ReceivedDate   time.Time
	IdempotencyKey string
	Actor          string
}

// ListFilter narrows ListPurchaseOrders.
type ListFilter struct {
	Status     POStatus
	SupplierID int64
	Search     string
	Limit      int
	Offset     int
}

var (
	// ErrPONotFound indicates a missing purchase order.
	ErrPONotFound = shared.NewError(shared.KindNotFound, "procurement: purchase order not found")
	// ErrPOItemNotFound indicates a receive line that is not part of the PO.
	ErrPOItemNotFound = shared.NewError(shared.KindNotFound, "procurement: purchase order item not found")
	// ErrSupplierNotFound indicates a missing supplier.
	ErrSupplierNotFound = shared.NewError(shared.KindNotFound, "procurement: supplier not found")
	// ErrNoSupplier indicates no supplier carries the product.
	ErrNoSupplier = shared.NewError(shared.KindNotFound, "procurement: no supplier for product")
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = shared.NewError(shared.KindInvalidTransition, "procurement: invalid state transition")
	// ErrEmptyItems indicates a PO or receipt without lines.
	ErrEmptyItems = shared.NewError(shared.KindInvalidArgument, "procurement: at least one line required")
	// ErrInvalidQuantity indicates a non-positive or negative quantity.
	ErrInvalidQuantity = shared.NewError(shared.KindInvalidArgument, "procurement: invalid quantity")
	// ErrOverReceipt indicates received plus rejected would exceed ordered.
	ErrOverReceipt = shared.NewError(shared.KindInvalidArgument, "procurement: quantity exceeds outstanding")
	// ErrInvalidAmount indicates a negative cost or charge.
	ErrInvalidAmount = shared.NewError(shared.KindInvalidArgument, "procurement: amounts must be >= 0")
	// ErrInvalidCurrency indicates a non ISO-4217 currency code.
	ErrInvalidCurrency = shared.NewError(shared.KindInvalidArgument, "procurement: invalid currency")
	// ErrInvalidExchangeRate indicates a non-positive exchange rate.
	ErrInvalidExchangeRate = shared.NewError(shared.KindInvalidArgument, "procurement: exchange rate must be > 0")
	// ErrUnknownStatus indicates an unparseable status name.
	ErrUnknownStatus = shared.NewError(shared.KindInvalidArgument, "procurement: unknown status")
	// ErrDuplicatePONumber is reported by stores when the generated number
	// collides with a concurrently created PO.
	ErrDuplicatePONumber = shared.NewError(shared.KindConflict, "procurement: duplicate po number")
)
