package procurement

import (
	"fmt"
	"strings"
)

// POStatus is the purchase order lifecycle state.
type POStatus uint8

const (
	POStatusDraft POStatus = iota + 1
	POStatusSent
	POStatusConfirmed
	POStatusShipped
	POStatusPartialReceived
	POStatusReceived
	POStatusCancelled
)

func (s POStatus) String() string {
	switch s {
	case POStatusDraft:
		return "DRAFT"
	case POStatusSent:
		return "SENT"
	case POStatusConfirmed:
		return "CONFIRMED"
	case POStatusShipped:
		return "SHIPPED"
	case POStatusPartialReceived:
		return "PARTIAL_RECEIVED"
	case POStatusReceived:
		return "RECEIVED"
	case POStatusCancelled:
		return "CANCELLED"
	default:
		return ""
	}
}

// ParsePOStatus parses the upper-case status name.
func ParsePOStatus(s string) (POStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DRAFT":
		return POStatusDraft, nil
	case "SENT":
		return POStatusSent, nil
	case "CONFIRMED":
		return POStatusConfirmed, nil
	case "SHIPPED":
		return POStatusShipped, nil
	case "PARTIAL_RECEIVED":
		return POStatusPartialReceived, nil
	case "RECEIVED":
		return POStatusReceived, nil
	case "CANCELLED":
		return POStatusCancelled, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s POStatus) MarshalText() ([]byte, error) {
	if s.String() == "" {
		return nil, fmt.Errorf("procurement: invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *POStatus) UnmarshalText(b []byte) error {
	v, err := ParsePOStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Receivable reports whether goods may be received against the PO.
func (s POStatus) Receivable() bool {
	switch s {
	case POStatusSent, POStatusConfirmed, POStatusShipped, POStatusPartialReceived:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s POStatus) Terminal() bool {
	return s == POStatusReceived || s == POStatusCancelled
}

// CanTransition reports whether a manual status change is allowed.
// PARTIAL_RECEIVED and RECEIVED are reached only by receiving goods.
func CanTransition(from, to POStatus) bool {
	switch from {
	case POStatusDraft:
		return to == POStatusSent || to == POStatusCancelled
	case POStatusSent:
		return to == POStatusConfirmed || to == POStatusShipped || to == POStatusCancelled
	case POStatusConfirmed:
		return to == POStatusShipped || to == POStatusCancelled
	case POStatusShipped:
		return to == POStatusCancelled
	case POStatusPartialReceived, POStatusReceived, POStatusCancelled:
		return false
	default:
		return false
	}
}
