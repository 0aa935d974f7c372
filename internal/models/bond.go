package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	BondHeld     = "held"
	BondRefunded = "refunded"
	BondSlashed  = "slashed"
)

// BondRecord escrows exactly one creator bond per market. On refund or
// slash the amount is zeroed and the status updated; the row is never
// deleted.
type BondRecord struct {
	MarketID  uuid.UUID       `gorm:"primaryKey;type:uuid"`
	Creator   string          `gorm:"type:text;not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	Status    string          `gorm:"type:varchar(16);not null;index"`
	Reason    *string         `gorm:"type:text"`
	CreatedAt time.Time       `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BondRecord) TableName() string {
	return "bond_records"
}
