package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePayment OutboxAggregateType = "payment"
	AggregatePayroll OutboxAggregateType = "payroll"
	AggregateChild   OutboxAggregateType = "child"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePayment,
	AggregatePayroll,
	AggregateChild,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentCreated   OutboxEventType = "payment_created"
	EventPaymentPaid      OutboxEventType = "payment_paid"
	EventPayrollCreated   OutboxEventType = "payroll_created"
	EventPayrollComplete  OutboxEventType = "payroll_completed"
	EventChildSuspended   OutboxEventType = "child_suspended"
	EventChildReactivated OutboxEventType = "child_reactivated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentCreated,
	EventPaymentPaid,
	EventPayrollCreated,
	EventPayrollComplete,
	EventChildSuspended,
	EventChildReactivated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
