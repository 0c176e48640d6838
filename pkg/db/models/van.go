package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Van is the routing unit a child rides with. OwnerID is the van-service
// recipient; DriverID is whoever currently drives it.
type Van struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID            *uuid.UUID      `gorm:"column:owner_id;type:uuid"`
	DriverID           *uuid.UUID      `gorm:"column:driver_id;type:uuid"`
	DriverSharePercent decimal.Decimal `gorm:"column:driver_share_percent;type:numeric(5,2);not null;default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
