package returns

import (
	"fmt"
	"strings"
)

// Status is the return lifecycle state.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusApproved
	StatusInspected
	StatusCompleted
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusInspected:
		return "inspected"
	case StatusCompleted:
		return "completed"
	case StatusRejected:
		return "rejected"
	default:
		return ""
	}
}

// ParseStatus parses a lower-case status name.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "inspected":
		return StatusInspected, nil
	case "completed":
		return StatusCompleted, nil
	case "rejected":
		return StatusRejected, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s.String() == "" {
		return nil, fmt.Errorf("returns: invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransition reports whether a return may move from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusInspected
	case StatusApproved:
		return to == StatusInspected || to == StatusRejected
	case StatusInspected:
		return to == StatusCompleted
	case StatusCompleted, StatusRejected:
		return false
	default:
		return false
	}
}
