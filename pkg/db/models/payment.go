package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/pkg/enums"
)

// Payment is one billing obligation for one child for one billing period.
// (child_id, billing_period) is unique; rows are never deleted.
type Payment struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ChildID            uuid.UUID           `gorm:"column:child_id;type:uuid;not null"`
	PayerID            uuid.UUID           `gorm:"column:payer_id;type:uuid;not null"`
	VanID              uuid.UUID           `gorm:"column:van_id;type:uuid;not null"`
	DriverID           *uuid.UUID          `gorm:"column:driver_id;type:uuid"`
	Amount             decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	BillingPeriod      string              `gorm:"column:billing_period;not null"`
	Status             enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'PENDING'"`
	DriverSharePercent decimal.Decimal     `gorm:"column:driver_share_percent;type:numeric(5,2);not null;default:0"`
	CheckoutSessionID  *string             `gorm:"column:checkout_session_id"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	SuspendedAt        *time.Time          `gorm:"column:suspended_at"`
	SettledAt          *time.Time          `gorm:"column:settled_at"`
}

// IsPaid reports whether the payment reached its terminal state.
func (p Payment) IsPaid() bool {
	return p.Status == enums.PaymentStatusPaid
}
