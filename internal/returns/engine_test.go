package returns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConditionLossTable(t *testing.T) {
	cases := []struct {
		name    string
		bps     int64
		channel ResaleChannel
	}{
		{"new_unopened", 0, ResaleOpenBox},
		{"opened_unused", 1000, ResaleOpenBox},
		{"like_new", 1500, ResaleOpenBox},
		{"good", 3000, ResaleRefurbished},
		{"fair", 5000, ResaleRefurbished},
		{"poor", 7000, ResaleClearance},
		{"damaged", 9000, ResaleClearance},
		{"defective", 10000, ResaleScrap},
		{"smells funny", 3000, ResaleRefurbished},
	}
	for _, tc := range cases {
		cond := ParseCondition(tc.name)
		require.Equal(t, tc.bps, cond.LossBps(), tc.name)
		channel := ChannelForLoss(cond.LossBps())
		require.Equal(t, tc.channel, channel, tc.name)
		require.Equal(t, tc.channel == ResaleScrap, channel.DisposalRequired(), tc.name)
	}
	require.Equal(t, ConditionUnknown, ParseCondition(""))
	require.Equal(t, ConditionLikeNew, ParseCondition(" Like_New "))
}

func TestItemLoss(t *testing.T) {
	loss, resale := ItemLoss(10000, ConditionGood)
	require.Equal(t, int64(3000), loss)
	require.Equal(t, int64(7000), resale)
	require.Equal(t, ResaleRefurbished, ChannelForLoss(ConditionGood.LossBps()))

	loss, resale = ItemLoss(999, ConditionGood)
	require.Equal(t, int64(300), loss)
	require.Equal(t, int64(699), resale)

	loss, resale = ItemLoss(4321, ConditionDefective)
	require.Equal(t, int64(4321), loss)
	require.Zero(t, resale)
}

func TestEstimateCostAndKeepIt(t *testing.T) {
	costs := DefaultCostSettings()

	est := costs.EstimateCost(0)
	require.Equal(t, Estimate{ShippingCents: 1200, LabelCents: 1500, ProcessingCents: 500, TotalCents: 3200}, est)
	require.Equal(t, int64(2899), costs.EstimateCost(899).TotalCents)

	require.True(t, costs.ShouldOfferKeepIt(3200, 2000))
	require.True(t, costs.ShouldOfferKeepIt(3200, 6399))
	require.False(t, costs.ShouldOfferKeepIt(3200, 6400))
	require.False(t, costs.ShouldOfferKeepIt(3200, 100000))
}

func TestCostSettingsDefaults(t *testing.T) {
	c := CostSettings{KeepItRatioPercent: 250}.withDefaults()
	require.Equal(t, int64(1200), c.DefaultShippingCents)
	require.Equal(t, int64(50), c.KeepItRatioPercent)
	require.Equal(t, int64(1500), c.LabelCents)
	require.Equal(t, int64(500), c.ProcessingCents)

	svc := NewService(nil, nil, nil, nil, ServiceConfig{})
	require.Equal(t, int64(3200), svc.costs.EstimateCost(0).TotalCents)
	require.True(t, svc.costs.ShouldOfferKeepIt(svc.costs.EstimateCost(0).TotalCents, 4000))
}

func TestActualLoss(t *testing.T) {
	r := Return{
		ReturnShippingCostCents: 1200,
		ReturnLabelCostCents:    1500,
		ProcessingCostCents:     500,
		RestockingFeeCents:      700,
	}
	require.Equal(t, int64(5500), ActualLoss(r, 3000))
}

func TestReturnTransitions(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusApproved))
	require.True(t, CanTransition(StatusPending, StatusInspected))
	require.True(t, CanTransition(StatusPending, StatusRejected))
	require.True(t, CanTransition(StatusApproved, StatusInspected))
	require.True(t, CanTransition(StatusApproved, StatusRejected))
	require.True(t, CanTransition(StatusInspected, StatusCompleted))

	require.False(t, CanTransition(StatusPending, StatusCompleted))
	require.False(t, CanTransition(StatusInspected, StatusRejected))
	require.False(t, CanTransition(StatusInspected, StatusInspected))
	for _, to := range []Status{StatusPending, StatusApproved, StatusInspected, StatusCompleted, StatusRejected} {
		require.False(t, CanTransition(StatusCompleted, to))
		require.False(t, CanTransition(StatusRejected, to))
	}
	require.True(t, StatusRejected.Terminal())
	require.False(t, StatusApproved.Terminal())

	s, err := ParseStatus("Inspected")
	require.NoError(t, err)
	require.Equal(t, StatusInspected, s)
	_, err = ParseStatus("lost")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestFormatReturnNumber(t *testing.T) {
	at := time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC)
	require.Equal(t, "RMA-2024-00042", FormatReturnNumber(at, 42))
	from, to := yearBounds(at)
	require.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), to)
}
