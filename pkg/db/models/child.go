package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/pkg/enums"
)

// Child is a billable enrollee. Enrollment owns the row; billing reads the fee and
// van assignment and only ever writes the INACTIVE transition.
type Child struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ParentID  uuid.UUID         `gorm:"column:parent_id;type:uuid;not null"`
	VanID     *uuid.UUID        `gorm:"column:van_id;type:uuid"`
	FeeAmount decimal.Decimal   `gorm:"column:fee_amount;type:numeric(12,2);not null"`
	Status    enums.ChildStatus `gorm:"column:status;type:child_status;not null;default:'NOT_ASSIGNED'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
