// Package analytics computes product performance and the BCG categorisation
// shown on the dashboard.
package analytics

import "time"

// Category is a BCG matrix quadrant.
type Category string

const (
	CategoryStar         Category = "star"
	CategoryCashCow      Category = "cash_cow"
	CategoryQuestionMark Category = "question_mark"
	CategoryDog          Category = "dog"
)

// Thresholds split the growth and share axes of the matrix. Values at or
// above a threshold count as high.
type Thresholds struct {
	GrowthPct  float64 `json:"growthPct"`
	UnitsShare float64 `json:"unitsShare"`
}

const (
	defaultGrowthPct  = 10
	defaultWindowDays = 30
	maxWindowDays     = 365
)

// DefaultThresholds returns 10% growth and the average share of n products.
func DefaultThresholds(n int) Thresholds {
	t := Thresholds{GrowthPct: defaultGrowthPct}
	if n > 0 {
		t.UnitsShare = 1 / float64(n)
	}
	return t
}

// ProductPerformance is one product's sales over the window compared with
// the previous window of equal length.
type ProductPerformance struct {
	ProductID            int64    `json:"productId"`
	SKU                  string   `json:"sku"`
	Title                string   `json:"title"`
	Units                int      `json:"units"`
	PreviousUnits        int      `json:"previousUnits"`
	RevenueCents         int64    `json:"revenueCents"`
	PreviousRevenueCents int64    `json:"previousRevenueCents"`
	GrowthPct            float64  `json:"growthPct"`
	UnitsShare           float64  `json:"unitsShare"`
	Category             Category `json:"category"`
}

// Report is the product performance over [From, To).
type Report struct {
	From              time.Time            `json:"from"`
	To                time.Time            `json:"to"`
	WindowDays        int                  `json:"windowDays"`
	TotalUnits        int                  `json:"totalUnits"`
	TotalRevenueCents int64                `json:"totalRevenueCents"`
	Thresholds        Thresholds           `json:"thresholds"`
	ByCategory        map[Category]int     `json:"byCategory"`
	Products          []ProductPerformance `json:"products"`
}
