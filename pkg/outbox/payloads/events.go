package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/pkg/enums"
)

// PaymentCreatedEvent announces a new monthly obligation so the parent can be notified.
type PaymentCreatedEvent struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	ChildID       uuid.UUID       `json:"child_id"`
	PayerID       uuid.UUID       `json:"payer_id"`
	Amount        decimal.Decimal `json:"amount"`
	BillingPeriod string          `json:"billing_period"`
}

// PaymentPaidEvent is emitted once, by whichever reconciliation path won the transition.
type PaymentPaidEvent struct {
	PaymentID     uuid.UUID                `json:"payment_id"`
	PayerID       uuid.UUID                `json:"payer_id"`
	Amount        decimal.Decimal          `json:"amount"`
	BillingPeriod string                   `json:"billing_period"`
	SessionID     string                   `json:"session_id,omitempty"`
	Source        enums.ConfirmationSource `json:"source"`
	PaidAt        time.Time                `json:"paid_at"`
}

// PayrollLine is one recipient share inside PayrollCreatedEvent.
type PayrollLine struct {
	PayrollID     uuid.UUID         `json:"payroll_id"`
	RecipientID   uuid.UUID         `json:"recipient_id"`
	RecipientRole enums.PayrollRole `json:"recipient_role"`
	Amount        decimal.Decimal   `json:"amount"`
}

// PayrollCreatedEvent summarizes the settlement of a single paid payment.
type PayrollCreatedEvent struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	BillingPeriod string          `json:"billing_period"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	Lines         []PayrollLine   `json:"lines"`
}

// PayrollCompletedEvent marks a payroll line as disbursed.
type PayrollCompletedEvent struct {
	PayrollID   uuid.UUID       `json:"payroll_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	CompletedAt time.Time       `json:"completed_at"`
}

// ChildSuspendedEvent signals service suspension for non-payment.
type ChildSuspendedEvent struct {
	ChildID       uuid.UUID `json:"child_id"`
	PaymentID     uuid.UUID `json:"payment_id"`
	PayerID       uuid.UUID `json:"payer_id"`
	BillingPeriod string    `json:"billing_period"`
}

// ChildReactivatedEvent signals service restored after a late payment cleared the debt.
type ChildReactivatedEvent struct {
	ChildID       uuid.UUID `json:"child_id"`
	PaymentID     uuid.UUID `json:"payment_id"`
	PayerID       uuid.UUID `json:"payer_id"`
	BillingPeriod string    `json:"billing_period"`
}
