package procurement

import (
	"math/big"

	"github.com/commerceops/opsdash/internal/shared"
)

// Charges are the PO-level costs spread over lines.
type Charges struct {
	FreightCents   int64
	InsuranceCents int64
	DutyCents      int64
	OtherFeesCents int64
}

// Total sums every charge.
func (c Charges) Total() int64 {
	return c.FreightCents + c.InsuranceCents + c.DutyCents + c.OtherFeesCents
}

func (c Charges) valid() bool {
	return c.FreightCents >= 0 && c.InsuranceCents >= 0 && c.DutyCents >= 0 && c.OtherFeesCents >= 0
}

// AllocateCosts returns a copy of items with freight, duty and other
// (insurance plus fees) allocations and landed unit costs filled in. Each
// charge is split by line-total share, floored, with the remainder on the
// last line carrying value, so allocations sum to the charge exactly. A zero
// subtotal allocates nothing.
func AllocateCosts(items []POItem, charges Charges) []POItem {
	out := make([]POItem, len(items))
	copy(out, items)

	totals := make([]int64, len(out))
	for i, it := range out {
		totals[i] = it.LineTotalCents()
	}
	freight := split(totals, charges.FreightCents)
	duty := split(totals, charges.DutyCents)
	other := split(totals, charges.InsuranceCents+charges.OtherFeesCents)

	for i := range out {
		out[i].FreightAllocationCents = freight[i]
		out[i].DutyAllocationCents = duty[i]
		out[i].OtherCostAllocationCents = other[i]
		out[i].LandedUnitCostCents = landedUnitCost(out[i])
	}
	return out
}

// Totals returns the PO subtotal and total cost.
func Totals(items []POItem, charges Charges) (subtotal, total int64) {
	for _, it := range items {
		subtotal += it.LineTotalCents()
	}
	return subtotal, subtotal + charges.Total()
}

func landedUnitCost(it POItem) int64 {
	if it.QuantityOrdered <= 0 {
		return it.UnitCostCents
	}
	extra := it.FreightAllocationCents + it.DutyAllocationCents + it.OtherCostAllocationCents
	return it.UnitCostCents + shared.MulDivRound(extra, 1, int64(it.QuantityOrdered))
}

// split distributes charge proportionally to weights.
func split(weights []int64, charge int64) []int64 {
	out := make([]int64, len(weights))
	var sum int64
	last := -1
	for i, w := range weights {
		sum += w
		if w > 0 {
			last = i
		}
	}
	if sum <= 0 || charge == 0 || last < 0 {
		return out
	}

	bigSum := big.NewInt(sum)
	bigCharge := big.NewInt(charge)
	var allocated int64
	for i, w := range weights {
		if i == last {
			break
		}
		if w <= 0 {
			continue
		}
		share := new(big.Int).Mul(big.NewInt(w), bigCharge)
		share.Quo(share, bigSum)
		out[i] = share.Int64()
		allocated += out[i]
	}
	out[last] = charge - allocated
	return out
}
