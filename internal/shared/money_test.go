package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCentsRoundTrip(t *testing.T) {
	require.Equal(t, "12.5", CentsToDecimal(1250).String())
	require.Equal(t, int64(1250), DecimalToCents(decimal.RequireFromString("12.50")))
	require.Equal(t, int64(1), DecimalToCents(decimal.RequireFromString("0.005")))

	cents, err := ParseCents("32.00")
	require.NoError(t, err)
	require.Equal(t, int64(3200), cents)

	_, err = ParseCents("abc")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMulDivRound(t *testing.T) {
	require.Equal(t, int64(3000), MulDivRound(10000, 3000, 10000))
	require.Equal(t, int64(33), MulDivRound(100, 1, 3))
	require.Equal(t, int64(67), MulDivRound(200, 1, 3))
	require.Equal(t, int64(-67), MulDivRound(-200, 1, 3))
}
