package procurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllocateCostsSumsExactly(t *testing.T) {
	items := []POItem{
		{QuantityOrdered: 10, UnitCostCents: 1000},
		{QuantityOrdered: 3, UnitCostCents: 333},
		{QuantityOrdered: 7, UnitCostCents: 1},
	}
	charges := Charges{FreightCents: 1000, InsuranceCents: 77, DutyCents: 313, OtherFeesCents: 19}

	out := AllocateCosts(items, charges)

	var freight, duty, other int64
	for _, it := range out {
		freight += it.FreightAllocationCents
		duty += it.DutyAllocationCents
		other += it.OtherCostAllocationCents
	}
	require.Equal(t, charges.FreightCents, freight)
	require.Equal(t, charges.DutyCents, duty)
	require.Equal(t, charges.InsuranceCents+charges.OtherFeesCents, other)

	require.Equal(t, int64(908), out[0].FreightAllocationCents)
	require.Equal(t, int64(90), out[1].FreightAllocationCents)
	require.Equal(t, int64(2), out[2].FreightAllocationCents)
	require.Zero(t, items[0].FreightAllocationCents, "input must not be mutated")
}

func TestAllocateCostsLandedUnitCost(t *testing.T) {
	items := []POItem{{QuantityOrdered: 4, UnitCostCents: 250}}
	charges := Charges{FreightCents: 100, InsuranceCents: 30, DutyCents: 50, OtherFeesCents: 20}

	out := AllocateCosts(items, charges)
	require.Equal(t, int64(100), out[0].FreightAllocationCents)
	require.Equal(t, int64(50), out[0].DutyAllocationCents)
	require.Equal(t, int64(50), out[0].OtherCostAllocationCents)
	require.Equal(t, int64(300), out[0].LandedUnitCostCents)

	subtotal, total := Totals(out, charges)
	require.Equal(t, int64(1000), subtotal)
	require.Equal(t, int64(1200), total)
}

func TestAllocateCostsZeroSubtotal(t *testing.T) {
	items := []POItem{{QuantityOrdered: 5, UnitCostCents: 0}, {QuantityOrdered: 1, UnitCostCents: 0}}
	out := AllocateCosts(items, Charges{FreightCents: 500})
	for _, it := range out {
		require.Zero(t, it.FreightAllocationCents)
		require.Zero(t, it.LandedUnitCostCents)
	}
}

func TestAllocateCostsRemainderSkipsZeroValueTail(t *testing.T) {
	items := []POItem{
		{QuantityOrdered: 1, UnitCostCents: 100},
		{QuantityOrdered: 1, UnitCostCents: 200},
		{QuantityOrdered: 2, UnitCostCents: 0},
	}
	out := AllocateCosts(items, Charges{FreightCents: 10})
	require.Equal(t, int64(3), out[0].FreightAllocationCents)
	require.Equal(t, int64(7), out[1].FreightAllocationCents)
	require.Zero(t, out[2].FreightAllocationCents)
}

func TestFormatPONumber(t *testing.T) {
	at := time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC)
	require.Equal(t, "PO-202403-0007", FormatPONumber(at, 7))

	from, to := monthBounds(at)
	require.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), to)
}
