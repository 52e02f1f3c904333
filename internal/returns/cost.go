package returns

import "github.com/commerceops/opsdash/internal/shared"

// CostSettings are the fixed reverse-logistics costs in cents.
type CostSettings struct {
	DefaultShippingCents int64
	LabelCents           int64
	ProcessingCents      int64
	// KeepItRatioPercent is the share of return value the handling cost
	// must exceed before a keep-it refund is recommended.
	KeepItRatioPercent int64
}

// DefaultCostSettings returns $12 shipping, $15 label, $5 processing and a
// 50% keep-it threshold. Zero fields of a configured CostSettings take these
// values.
func DefaultCostSettings() CostSettings {
	return CostSettings{
		DefaultShippingCents: 1200,
		LabelCents:           1500,
		ProcessingCents:      500,
		KeepItRatioPercent:   50,
	}
}

func (c CostSettings) withDefaults() CostSettings {
	d := DefaultCostSettings()
	if c.DefaultShippingCents <= 0 {
		c.DefaultShippingCents = d.DefaultShippingCents
	}
	if c.LabelCents <= 0 {
		c.LabelCents = d.LabelCents
	}
	if c.ProcessingCents <= 0 {
		c.ProcessingCents = d.ProcessingCents
	}
	if c.KeepItRatioPercent <= 0 || c.KeepItRatioPercent > 100 {
		c.KeepItRatioPercent = d.KeepItRatioPercent
	}
	return c
}

// Estimate is the expected handling cost of a return.
type Estimate struct {
	ShippingCents   int64 `json:"shippingCents"`
	LabelCents      int64 `json:"labelCents"`
	ProcessingCents int64 `json:"processingCents"`
	TotalCents      int64 `json:"totalCents"`
}

// EstimateCost uses the order's shipping cost when recorded, the default
// otherwise.
func (c CostSettings) EstimateCost(orderShippingCents int64) Estimate {
	shipping := orderShippingCents
	if shipping <= 0 {
		shipping = c.DefaultShippingCents
	}
	return Estimate{
		ShippingCents:   shipping,
		LabelCents:      c.LabelCents,
		ProcessingCents: c.ProcessingCents,
		TotalCents:      shipping + c.LabelCents + c.ProcessingCents,
	}
}

// ShouldOfferKeepIt reports estimated > ratio% of value.
func (c CostSettings) ShouldOfferKeepIt(estimatedCents, valueCents int64) bool {
	return estimatedCents*100 > valueCents*c.KeepItRatioPercent
}

// ItemLoss returns the value lost and the resale value of an item.
func ItemLoss(totalValueCents int64, cond Condition) (loss, resale int64) {
	loss = shared.MulDivRound(totalValueCents, cond.LossBps(), fullLossBps)
	return loss, totalValueCents - loss
}

// ActualLoss is shipping + label + processing + item losses - restocking fee.
func ActualLoss(r Return, itemLossCents int64) int64 {
	return r.ReturnShippingCostCents + r.ReturnLabelCostCents + r.ProcessingCostCents +
		itemLossCents - r.RestockingFeeCents
}
