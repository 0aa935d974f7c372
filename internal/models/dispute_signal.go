package models

import (
	"time"

	"github.com/google/uuid"
)

// DisputeSignal is one community signal snapshot submitted during the
// dispute window: agree/disagree percentages aggregated externally by
// the submitting principal's tooling.
type DisputeSignal struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	MarketID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_dispute_signal,priority:1"`
	Submitter   string    `gorm:"type:text;not null;uniqueIndex:ux_dispute_signal,priority:2"`
	AgreePct    int       `gorm:"not null"`
	DisagreePct int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (DisputeSignal) TableName() string {
	return "dispute_signals"
}
