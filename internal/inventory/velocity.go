package inventory

import (
	"math"

	"github.com/commerceops/opsdash/internal/orders"
)

// NoStockoutDays is reported when a product is not selling.
const NoStockoutDays = 999

// floatSlack absorbs binary representation error before floor/ceil, so that
// 3 units at 0.1/day is 30 days and not 29.
const floatSlack = 1e-9

// SalesVelocity returns units sold per day over the window. The window is
// clamped to at least one day and non-positive quantities are ignored.
func SalesVelocity(lines []orders.SaleLine, windowDays int) float64 {
	if windowDays < 1 {
		windowDays = 1
	}
	total := 0
	for _, l := range lines {
		if l.Quantity > 0 {
			total += l.Quantity
		}
	}
	if total == 0 {
		return 0
	}
	return float64(total) / float64(windowDays)
}

// DaysUntilStockout is floor(stock / velocity), or NoStockoutDays when the
// velocity is zero.
func DaysUntilStockout(stock int, velocity float64) int {
	if velocity <= 0 || math.IsNaN(velocity) {
		return NoStockoutDays
	}
	if stock <= 0 {
		return 0
	}
	days := math.Floor(float64(stock)/velocity + floatSlack)
	if math.IsInf(days, 0) || days > NoStockoutDays {
		return NoStockoutDays
	}
	return int(days)
}
