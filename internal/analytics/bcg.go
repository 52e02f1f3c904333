package analytics

import (
	"sort"
	"time"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/orders"
)

// Categorize places a product in the BCG matrix.
func Categorize(growthPct, unitsShare float64, t Thresholds) Category {
	highGrowth := growthPct >= t.GrowthPct
	highShare := unitsShare >= t.UnitsShare
	switch {
	case highGrowth && highShare:
		return CategoryStar
	case highShare:
		return CategoryCashCow
	case highGrowth:
		return CategoryQuestionMark
	default:
		return CategoryDog
	}
}

// growthPct is revenue growth against the previous window. A product with
// no previous revenue but current sales counts as 100% growth.
func growthPct(current, previous int64) float64 {
	switch {
	case previous > 0:
		return float64(current-previous) / float64(previous) * 100
	case current > 0:
		return 100
	default:
		return 0
	}
}

type salesTotals struct {
	units   int
	revenue int64
}

func sumByProduct(lines []orders.SaleLine) map[int64]salesTotals {
	out := make(map[int64]salesTotals)
	for _, l := range lines {
		t := out[l.ProductID]
		t.units += l.Quantity
		t.revenue += l.UnitPriceCents * int64(l.Quantity)
		out[l.ProductID] = t
	}
	return out
}

// buildReport covers active products and any product sold in either window.
// A zero-valued override keeps the default for that axis.
func buildReport(products []inventory.Product, current, previous []orders.SaleLine, override Thresholds, from, to time.Time, window int) Report {
	cur := sumByProduct(current)
	prev := sumByProduct(previous)

	rows := make(map[int64]*ProductPerformance)
	add := func(id int64) *ProductPerformance {
		if row, ok := rows[id]; ok {
			return row
		}
		row := &ProductPerformance{ProductID: id}
		rows[id] = row
		return row
	}
	for _, p := range products {
		_, sold := cur[p.ID]
		_, soldBefore := prev[p.ID]
		if !p.Active && !sold && !soldBefore {
			continue
		}
		row := add(p.ID)
		row.SKU = p.SKU
		row.Title = p.Title
	}
	for id := range cur {
		add(id)
	}
	for id := range prev {
		add(id)
	}

	report := Report{
		From:       from,
		To:         to,
		WindowDays: window,
		ByCategory: make(map[Category]int),
		Products:   make([]ProductPerformance, 0, len(rows)),
	}
	for id, row := range rows {
		row.Units, row.RevenueCents = cur[id].units, cur[id].revenue
		row.PreviousUnits, row.PreviousRevenueCents = prev[id].units, prev[id].revenue
		row.GrowthPct = growthPct(row.RevenueCents, row.PreviousRevenueCents)
		report.TotalUnits += row.Units
		report.TotalRevenueCents += row.RevenueCents
	}

	th := DefaultThresholds(len(rows))
	if override.GrowthPct != 0 {
		th.GrowthPct = override.GrowthPct
	}
	if override.UnitsShare > 0 {
		th.UnitsShare = override.UnitsShare
	}
	report.Thresholds = th

	for _, row := range rows {
		if report.TotalUnits > 0 {
			row.UnitsShare = float64(row.Units) / float64(report.TotalUnits)
		}
		row.Category = Categorize(row.GrowthPct, row.UnitsShare, th)
		report.ByCategory[row.Category]++
		report.Products = append(report.Products, *row)
	}
	sort.Slice(report.Products, func(i, j int) bool {
		a, b := report.Products[i], report.Products[j]
		if a.RevenueCents != b.RevenueCents {
			return a.RevenueCents > b.RevenueCents
		}
		return a.ProductID < b.ProductID
	})
	return report
}
