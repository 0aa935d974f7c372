package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransferPending  = "pending"
	TransferExecuted = "executed"
	TransferFailed   = "failed"
)

const (
	TransferKindBondRefund = "bond_refund"
	TransferKindPayout     = "payout"
	TransferKindSellRefund = "sell_refund"
)

// Transfer is an authorized outbound funds movement. It is written in
// the same transaction as the state change that authorized it and
// executed separately, so a failed external transfer never corrupts
// the state machine and stays retryable.
type Transfer struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	MarketID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Recipient string          `gorm:"type:text;not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	Kind      string          `gorm:"type:varchar(20);not null"`
	Status    string          `gorm:"type:varchar(16);not null;index"`
	Attempts  int             `gorm:"not null;default:0"`
	LastError *string         `gorm:"type:text"`

	ExecutedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Transfer) TableName() string {
	return "transfers"
}
