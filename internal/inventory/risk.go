package inventory

import (
	"fmt"
	"strings"

	"github.com/commerceops/opsdash/internal/shared"
)

// RiskTier classifies how close a product is to running out.
type RiskTier uint8

const (
	// RiskCritical covers empty stock and at most one day of cover.
	RiskCritical RiskTier = iota + 1
	// RiskHigh covers at most three days of cover.
	RiskHigh
	// RiskMedium covers at most seven days of cover.
	RiskMedium
	// RiskLow covers everything else.
	RiskLow
)

// Rank orders tiers from most to least urgent.
func (r RiskTier) Rank() int {
	switch r {
	case RiskCritical:
		return 0
	case RiskHigh:
		return 1
	case RiskMedium:
		return 2
	case RiskLow:
		return 3
	default:
		return 4
	}
}

func (r RiskTier) String() string {
	switch r {
	case RiskCritical:
		return "critical"
	case RiskHigh:
		return "high"
	case RiskMedium:
		return "medium"
	case RiskLow:
		return "low"
	default:
		return ""
	}
}

// ParseRiskTier parses the lowercase tier name.
func ParseRiskTier(s string) (RiskTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return RiskCritical, nil
	case "high":
		return RiskHigh, nil
	case "medium":
		return RiskMedium, nil
	case "low":
		return RiskLow, nil
	}
	return 0, shared.InvalidArgument("inventory: unknown risk tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskTier) MarshalText() ([]byte, error) {
	if r.String() == "" {
		return nil, fmt.Errorf("inventory: invalid risk tier %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskTier) UnmarshalText(b []byte) error {
	tier, err := ParseRiskTier(string(b))
	if err != nil {
		return err
	}
	*r = tier
	return nil
}

// ClassifyRisk maps stock and velocity to a tier. First match wins: empty
// stock, then days of cover at 1, 3 and 7.
func ClassifyRisk(stock int, velocity float64) RiskTier {
	if stock <= 0 {
		return RiskCritical
	}
	days := DaysUntilStockout(stock, velocity)
	switch {
	case days <= 1:
		return RiskCritical
	case days <= 3:
		return RiskHigh
	case days <= 7:
		return RiskMedium
	default:
		return RiskLow
	}
}
