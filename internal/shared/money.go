package shared

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CentsToDecimal converts integer cents into currency units for API output.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred).Round(2)
}

// DecimalToCents converts currency units into integer cents, rounding half
// away from zero.
func DecimalToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// ParseCents parses a decimal string such as "12.50" into cents. The empty
// string parses as zero.
func ParseCents(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, InvalidArgument("invalid amount %q", raw)
	}
	return DecimalToCents(d), nil
}

// MulDivRound computes round(v*num/den) on integers, half away from zero.
// den must be positive.
func MulDivRound(v, num, den int64) int64 {
	p := v * num
	if p >= 0 {
		return (p + den/2) / den
	}
	return -((-p + den/2) / den)
}
