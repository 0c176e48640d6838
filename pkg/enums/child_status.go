package enums

import "fmt"

// ChildStatus mirrors the enrollment lifecycle of a child. Billing only reads it,
// except for the INACTIVE transition applied on non-payment.
type ChildStatus string

const (
	ChildStatusNotAssigned ChildStatus = "NOT_ASSIGNED"
	ChildStatusRequested   ChildStatus = "REQUESTED"
	ChildStatusAtHome      ChildStatus = "AT_HOME"
	ChildStatusActive      ChildStatus = "ACTIVE"
	ChildStatusInactive    ChildStatus = "INACTIVE"
)

var validChildStatuses = []ChildStatus{
	ChildStatusNotAssigned,
	ChildStatusRequested,
	ChildStatusAtHome,
	ChildStatusActive,
	ChildStatusInactive,
}

// ChildStatuses returns every known status.
func ChildStatuses() []ChildStatus {
	return append([]ChildStatus(nil), validChildStatuses...)
}

func (c ChildStatus) String() string {
	return string(c)
}

// Billable reports whether a child in this status receives a monthly fee.
func (c ChildStatus) Billable() bool {
	return c.IsValid() && c != ChildStatusNotAssigned
}

func (c ChildStatus) IsValid() bool {
	for _, candidate := range validChildStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseChildStatus(value string) (ChildStatus, error) {
	for _, candidate := range validChildStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid child status %q", value)
}
