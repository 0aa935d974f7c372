package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position tracks one user's holdings on one outcome of one market.
// Shares are valued 1:1 with net stake; AmountPaid keeps the gross
// amount for audit.
type Position struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	MarketID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_position,priority:1"`
	User       string          `gorm:"type:text;not null;uniqueIndex:ux_position,priority:2"`
	Outcome    int16           `gorm:"not null;uniqueIndex:ux_position,priority:3"`
	Shares     decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	AmountPaid decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}
