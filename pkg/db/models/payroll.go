package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/pkg/enums"
)

// Payroll is a disbursement line derived from exactly one paid payment.
// (payment_id, recipient_role) is unique.
type Payroll struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID     uuid.UUID           `gorm:"column:payment_id;type:uuid;not null"`
	RecipientID   uuid.UUID           `gorm:"column:recipient_id;type:uuid;not null"`
	RecipientRole enums.PayrollRole   `gorm:"column:recipient_role;type:payroll_role;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status        enums.PayrollStatus `gorm:"column:status;type:payroll_status;not null;default:'PENDING'"`
	BillingPeriod string              `gorm:"column:billing_period;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	CompletedAt   *time.Time          `gorm:"column:completed_at"`
}
