package inventory

import (
	"math"
	"time"
)

// maxForecastDays bounds forecast reorder dates to something a calendar can
// represent meaningfully.
const maxForecastDays = 3650

// ReorderInput gathers the inputs of the reorder point engine.
type ReorderInput struct {
	Stock           int
	Velocity        float64
	LeadTimeDays    int
	SafetyStockDays int
	BatchSize       int
	MOQ             int
}

// ReorderPlan is the derived reorder decision for one product.
type ReorderPlan struct {
	ReorderPoint     int        `json:"reorderPoint"`
	ReorderQuantity  int        `json:"reorderQuantity"`
	SafetyStock      int        `json:"safetyStock"`
	ShouldReorderNow bool       `json:"shouldReorderNow"`
	ReorderDate      *time.Time `json:"reorderDate"`
}

// PlanReorder computes the reorder point, quantity and date. It is pure: the
// same input and now always give the same plan.
func PlanReorder(in ReorderInput, now time.Time) ReorderPlan {
	velocity := in.Velocity
	if velocity < 0 || math.IsNaN(velocity) || math.IsInf(velocity, 0) {
		velocity = 0
	}
	lead := max(in.LeadTimeDays, 0)
	safety := max(in.SafetyStockDays, 0)

	plan := ReorderPlan{
		ReorderPoint: ceilUnits(velocity * float64(lead+safety)),
		SafetyStock:  ceilUnits(velocity * float64(safety)),
	}
	plan.ShouldReorderNow = in.Stock <= plan.ReorderPoint
	plan.ReorderQuantity = reorderQuantity(in, velocity, lead+safety)

	switch {
	case plan.ShouldReorderNow:
		at := now
		plan.ReorderDate = &at
	case velocity > 0:
		days := float64(in.Stock-plan.ReorderPoint) / velocity
		if !math.IsNaN(days) && !math.IsInf(days, 0) && days >= 0 && days <= maxForecastDays {
			at := now.Add(time.Duration(days * float64(24*time.Hour)))
			plan.ReorderDate = &at
		}
	}
	return plan
}

func reorderQuantity(in ReorderInput, velocity float64, coverDays int) int {
	if velocity == 0 && in.Stock > 0 {
		return 0
	}
	qty := max(ceilUnits(velocity*float64(coverDays)), in.MOQ, in.BatchSize, 0)
	if in.BatchSize > 1 && qty%in.BatchSize != 0 {
		qty = (qty/in.BatchSize + 1) * in.BatchSize
	}
	return qty
}

func ceilUnits(v float64) int {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Ceil(v - floatSlack))
}
