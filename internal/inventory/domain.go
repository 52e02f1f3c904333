package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/commerceops/opsdash/internal/shared"
)

// MovementType enumerates ledger entry kinds.
type MovementType string

const (
	// MovementReceipt records stock received against a purchase order.
	MovementReceipt MovementType = "RECEIPT"
	// MovementAdjustment records manual corrections and return restocks.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementSale records stock leaving through a sale.
	MovementSale MovementType = "SALE"
)

// Product is the catalog view the engine needs.
type Product struct {
	ID              int64
	SKU             string
	Title           string
	ChannelID       int64
	PriceCents      int64
	LeadTimeDays    int
	SafetyStockDays int
	BatchSize       int
	MOQ             int
	Active          bool
}

// Record is the per-product inventory row. Available is always
// Quantity - Reserved.
type Record struct {
	ProductID       int64
	Quantity        int
	Reserved        int
	Available       int
	Incoming        int
	ReorderPoint    int
	ReorderQuantity int
	LeadTimeDays    *int
	SafetyStock     int
	LastRestockDate *time.Time
	NextRestockDate *time.Time
	UpdatedAt       time.Time
}

// Movement is an append-only ledger entry.
type Movement struct {
	ID              int64        `json:"id"`
	ProductID       int64        `json:"productId"`
	Type            MovementType `json:"movementType"`
	Quantity        int          `json:"quantity"`
	Reason          string       `json:"reason"`
	ReferenceType   string       `json:"referenceType,omitempty"`
	ReferenceID     int64        `json:"referenceId,omitempty"`
	CostImpactCents int64        `json:"costImpactCents"`
	BatchID         uuid.UUID    `json:"batchId"`
	CreatedBy       string       `json:"createdBy,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// StockChange describes a signed quantity change applied through the ledger.
type StockChange struct {
	ProductID       int64
	Delta           int
	Type            MovementType
	Reason          string
	ReferenceType   string
	ReferenceID     int64
	CostImpactCents int64
	BatchID         uuid.UUID
	CreatedBy       string
	At              time.Time
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	ProductID int64
	Quantity  int
	Reason    string
	CreatedBy string
}

// ReorderUpdate carries the persisted output of a reorder refresh.
type ReorderUpdate struct {
	ReorderPoint    int
	ReorderQuantity int
	SafetyStock     int
	NextRestockDate *time.Time
}

var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = shared.NewError(shared.KindNotFound, "inventory: product not found")
	// ErrNegativeStock triggered when a change would drive quantity below zero.
	ErrNegativeStock = shared.NewError(shared.KindInvalidArgument, "inventory: negative stock not allowed")
	// ErrInvalidQuantity indicates a zero quantity change.
	ErrInvalidQuantity = shared.NewError(shared.KindInvalidArgument, "inventory: quantity must be non zero")
	// ErrUnknownSortKey indicates an unsupported view sort key.
	ErrUnknownSortKey = shared.NewError(shared.KindInvalidArgument, "inventory: unknown sort key")
)
