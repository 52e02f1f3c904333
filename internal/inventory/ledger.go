package inventory

import (
	"context"
	"time"
)

// TxRepository exposes the transactional inventory operations. Procurement
// and returns obtain one bound to their own transaction so stock changes
// commit together with their status updates.
type TxRepository interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	// LockRecord returns the product's inventory row locked for update,
	// creating an empty row first when none exists.
	LockRecord(ctx context.Context, productID int64) (Record, error)
	UpdateRecord(ctx context.Context, rec Record) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
}

// ApplyStockChange applies a signed quantity change to a product and appends
// exactly one movement. Quantity never drops below zero and Available stays
// Quantity - Reserved.
func ApplyStockChange(ctx context.Context, tx TxRepository, change StockChange) (Record, Movement, error) {
	if change.Delta == 0 {
		return Record{}, Movement{}, ErrInvalidQuantity
	}
	at := change.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	rec, err := tx.LockRecord(ctx, change.ProductID)
	if err != nil {
		return Record{}, Movement{}, err
	}
	next := rec.Quantity + change.Delta
	if next < 0 {
		return Record{}, Movement{}, ErrNegativeStock
	}
	rec.Quantity = next
	rec.Available = rec.Quantity - rec.Reserved
	if change.Type == MovementReceipt {
		rec.LastRestockDate = &at
	}
	rec.UpdatedAt = at
	if err := tx.UpdateRecord(ctx, rec); err != nil {
		return Record{}, Movement{}, err
	}

	mv := Movement{
		ProductID:       change.ProductID,
		Type:            change.Type,
		Quantity:        change.Delta,
		Reason:          change.Reason,
		ReferenceType:   change.ReferenceType,
		ReferenceID:     change.ReferenceID,
		CostImpactCents: change.CostImpactCents,
		BatchID:         change.BatchID,
		CreatedBy:       change.CreatedBy,
		CreatedAt:       at,
	}
	id, err := tx.InsertMovement(ctx, mv)
	if err != nil {
		return Record{}, Movement{}, err
	}
	mv.ID = id
	return rec, mv, nil
}
