// Package orders exposes the read model over channel orders. Rows are owned
// by the channel sync and are never written here.
package orders

import (
	"time"

	"github.com/commerceops/opsdash/internal/shared"
)

// Order is a channel order with its line items.
type Order struct {
	ID                int64
	ChannelID         int64
	ExternalID        string
	CustomerEmail     string
	Status            string
	ShippingCostCents int64
	OrderedAt         time.Time
	Items             []Item
}

// Item is a single order line. ProductID is zero when the line could not be
// matched to a catalog product.
type Item struct {
	ID             int64
	OrderID        int64
	ProductID      int64
	SKU            string
	Title          string
	Quantity       int
	UnitPriceCents int64
}

// FindItem returns the order line with the given id.
func (o Order) FindItem(id int64) (Item, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// SaleLine is one sold order line attributed to a catalog product.
type SaleLine struct {
	ProductID      int64     `json:"productId"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	OrderedAt      time.Time `json:"orderedAt"`
}

// ErrOrderNotFound indicates a missing order.
var ErrOrderNotFound = shared.NewError(shared.KindNotFound, "orders: order not found")
