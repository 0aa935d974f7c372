package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Claim marks a (market, user) payout as consumed. The unique index is
// what makes claims one-shot.
type Claim struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	MarketID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_claim,priority:1"`
	User      string          `gorm:"type:text;not null;uniqueIndex:ux_claim,priority:2"`
	Amount    decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	CreatedAt time.Time       `gorm:"type:timestamptz;autoCreateTime"`
}

func (Claim) TableName() string {
	return "claims"
}
