package returns

import "strings"

// Condition is the inspected state of a returned item.
type Condition uint8

const (
	// ConditionUnknown applies to items never inspected or reported with an
	// unrecognised condition.
	ConditionUnknown Condition = iota
	ConditionNewUnopened
	ConditionOpenedUnused
	ConditionLikeNew
	ConditionGood
	ConditionFair
	ConditionPoor
	ConditionDamaged
	ConditionDefective
)

const (
	fullLossBps    = 10000
	unknownLossBps = 3000
)

var conditionNames = map[Condition]string{
	ConditionUnknown:      "unknown",
	ConditionNewUnopened:  "new_unopened",
	ConditionOpenedUnused: "opened_unused",
	ConditionLikeNew:      "like_new",
	ConditionGood:         "good",
	ConditionFair:         "fair",
	ConditionPoor:         "poor",
	ConditionDamaged:      "damaged",
	ConditionDefective:    "defective",
}

func (c Condition) String() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCondition maps a condition name to its value. Unrecognised names are
// ConditionUnknown.
func ParseCondition(s string) Condition {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range conditionNames {
		if name == s {
			return c
		}
	}
	return ConditionUnknown
}

// MarshalText implements encoding.TextMarshaler.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Condition) UnmarshalText(b []byte) error {
	*c = ParseCondition(string(b))
	return nil
}

// LossBps is the share of item value lost, in basis points.
func (c Condition) LossBps() int64 {
	switch c {
	case ConditionNewUnopened:
		return 0
	case ConditionOpenedUnused:
		return 1000
	case ConditionLikeNew:
		return 1500
	case ConditionGood:
		return 3000
	case ConditionFair:
		return 5000
	case ConditionPoor:
		return 7000
	case ConditionDamaged:
		return 9000
	case ConditionDefective:
		return fullLossBps
	default:
		return unknownLossBps
	}
}

// ResaleChannel is where an inspected item is sold on.
type ResaleChannel string

const (
	ResaleOpenBox     ResaleChannel = "open_box"
	ResaleRefurbished ResaleChannel = "refurbished"
	ResaleClearance   ResaleChannel = "clearance"
	ResaleScrap       ResaleChannel = "scrap"
)

// ChannelForLoss picks the resale channel for a loss share.
func ChannelForLoss(bps int64) ResaleChannel {
	switch {
	case bps <= 1500:
		return ResaleOpenBox
	case bps <= 5000:
		return ResaleRefurbished
	case bps < fullLossBps:
		return ResaleClearance
	default:
		return ResaleScrap
	}
}

// DisposalRequired is true only for scrapped items.
func (r ResaleChannel) DisposalRequired() bool {
	return r == ResaleScrap
}
