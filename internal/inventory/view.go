package inventory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/commerceops/opsdash/internal/orders"
)

// SortKey orders the items of a View.
type SortKey string

const (
	// SortRisk orders critical first.
	SortRisk SortKey = "risk"
	// SortQuantity orders by on-hand quantity ascending.
	SortQuantity SortKey = "quantity"
	// SortDaysUntilStockout orders by days of cover ascending.
	SortDaysUntilStockout SortKey = "days_until_stockout"
)

// ParseSortKey maps the empty string to SortRisk and rejects unknown keys.
func ParseSortKey(s string) (SortKey, error) {
	key := SortKey(strings.TrimSpace(s))
	if key == "" {
		return SortRisk, nil
	}
	switch key {
	case SortRisk, SortQuantity, SortDaysUntilStockout:
		return key, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// Filter narrows the items of a View. The zero value lists every active
// product.
type Filter struct {
	Risk            RiskTier
	Search          string
	LowStockOnly    bool
	ChannelID       int64
	IncludeInactive bool
}

func (f Filter) cacheKey() string {
	return strings.Join([]string{
		f.Risk.String(),
		strings.ToLower(strings.TrimSpace(f.Search)),
		strconv.FormatBool(f.LowStockOnly),
		strconv.FormatInt(f.ChannelID, 10),
		strconv.FormatBool(f.IncludeInactive),
	}, "|")
}

func (f Filter) inScope(p Product) bool {
	if !f.IncludeInactive && !p.Active {
		return false
	}
	return f.ChannelID == 0 || p.ChannelID == f.ChannelID
}

func (f Filter) matches(it Item) bool {
	if f.Risk != 0 && it.Risk != f.Risk {
		return false
	}
	if f.LowStockOnly && !it.Reorder.ShouldReorderNow {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(it.SKU), q) && !strings.Contains(strings.ToLower(it.Title), q) {
			return false
		}
	}
	return true
}

// Item is one product row of the inventory view.
type Item struct {
	ProductID         int64       `json:"productId"`
	SKU               string      `json:"sku"`
	Title             string      `json:"title"`
	ChannelID         int64       `json:"channelId"`
	PriceCents        int64       `json:"priceCents"`
	Quantity          int         `json:"quantity"`
	Available         int         `json:"available"`
	Reserved          int         `json:"reserved"`
	Incoming          int         `json:"incoming"`
	SalesVelocity     float64     `json:"salesVelocity"`
	DaysUntilStockout int         `json:"daysUntilStockout"`
	Risk              RiskTier    `json:"stockoutRisk"`
	LeadTimeDays      int         `json:"leadTimeDays"`
	SafetyStockDays   int         `json:"safetyStockDays"`
	Reorder           ReorderPlan `json:"reorder"`
	LastRestockDate   *time.Time  `json:"lastRestockDate"`
}

// Stats aggregates the products in scope.
type Stats struct {
	TotalProducts   int   `json:"totalProducts"`
	TotalUnits      int   `json:"totalUnits"`
	TotalValueCents int64 `json:"totalValueCents"`
	Critical        int   `json:"critical"`
	High            int   `json:"high"`
	Medium          int   `json:"medium"`
	Low             int   `json:"low"`
	LowStockCount   int   `json:"lowStockCount"`
	OutOfStockCount int   `json:"outOfStockCount"`
}

// Alert is raised for every product at or below its reorder point.
type Alert struct {
	ProductID    int64    `json:"productId"`
	SKU          string   `json:"sku"`
	Title        string   `json:"title"`
	CurrentStock int      `json:"currentStock"`
	ReorderPoint int      `json:"reorderPoint"`
	Risk         RiskTier `json:"stockoutRisk"`
}

// View is the derived inventory dashboard.
type View struct {
	Items  []Item  `json:"items"`
	Stats  Stats   `json:"stats"`
	Alerts []Alert `json:"alerts"`
}

// Settings carries the engine defaults.
type Settings struct {
	VelocityWindowDays     int
	DefaultLeadTimeDays    int
	DefaultSafetyStockDays int
}

func (s Settings) leadTime(p Product, rec Record) int {
	if rec.LeadTimeDays != nil && *rec.LeadTimeDays > 0 {
		return *rec.LeadTimeDays
	}
	if p.LeadTimeDays > 0 {
		return p.LeadTimeDays
	}
	return s.DefaultLeadTimeDays
}

func (s Settings) safetyDays(p Product) int {
	if p.SafetyStockDays > 0 {
		return p.SafetyStockDays
	}
	return s.DefaultSafetyStockDays
}

// assembleView derives the view from loaded rows. Stats and alerts cover
// every product in scope (channel and active flag); risk, search and
// low-stock filters only narrow Items.
func assembleView(products []Product, records map[int64]Record, sales map[int64][]orders.SaleLine, settings Settings, filter Filter, key SortKey, now time.Time) View {
	view := View{Items: []Item{}, Alerts: []Alert{}}
	all := make([]Item, 0, len(products))
	for _, p := range products {
		if !filter.inScope(p) {
			continue
		}
		rec := records[p.ID]
		velocity := SalesVelocity(sales[p.ID], settings.VelocityWindowDays)
		lead := settings.leadTime(p, rec)
		safety := settings.safetyDays(p)
		it := Item{
			ProductID:         p.ID,
			SKU:               p.SKU,
			Title:             p.Title,
			ChannelID:         p.ChannelID,
			PriceCents:        p.PriceCents,
			Quantity:          rec.Quantity,
			Available:         rec.Quantity - rec.Reserved,
			Reserved:          rec.Reserved,
			Incoming:          rec.Incoming,
			SalesVelocity:     velocity,
			DaysUntilStockout: DaysUntilStockout(rec.Quantity, velocity),
			Risk:              ClassifyRisk(rec.Quantity, velocity),
			LeadTimeDays:      lead,
			SafetyStockDays:   safety,
			LastRestockDate:   rec.LastRestockDate,
			Reorder: PlanReorder(ReorderInput{
				Stock:           rec.Quantity,
				Velocity:        velocity,
				LeadTimeDays:    lead,
				SafetyStockDays: safety,
				BatchSize:       p.BatchSize,
				MOQ:             p.MOQ,
			}, now),
		}
		all = append(all, it)
	}
	sortItems(all, key)

	for _, it := range all {
		view.Stats.add(it)
		if it.Reorder.ShouldReorderNow {
			view.Alerts = append(view.Alerts, Alert{
				ProductID:    it.ProductID,
				SKU:          it.SKU,
				Title:        it.Title,
				CurrentStock: it.Quantity,
				ReorderPoint: it.Reorder.ReorderPoint,
				Risk:         it.Risk,
			})
		}
		if filter.matches(it) {
			view.Items = append(view.Items, it)
		}
	}
	return view
}

func (s *Stats) add(it Item) {
	s.TotalProducts++
	s.TotalUnits += it.Quantity
	s.TotalValueCents += int64(it.Quantity) * it.PriceCents
	switch it.Risk {
	case RiskCritical:
		s.Critical++
	case RiskHigh:
		s.High++
	case RiskMedium:
		s.Medium++
	case RiskLow:
		s.Low++
	}
	if it.Reorder.ShouldReorderNow {
		s.LowStockCount++
	}
	if it.Quantity == 0 {
		s.OutOfStockCount++
	}
}

func sortItems(items []Item, key SortKey) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch key {
		case SortQuantity:
			if a.Quantity != b.Quantity {
				return a.Quantity < b.Quantity
			}
		case SortDaysUntilStockout:
			if a.DaysUntilStockout != b.DaysUntilStockout {
				return a.DaysUntilStockout < b.DaysUntilStockout
			}
		default:
			if a.Risk.Rank() != b.Risk.Rank() {
				return a.Risk.Rank() < b.Risk.Rank()
			}
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.ProductID < b.ProductID
	})
}
