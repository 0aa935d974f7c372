package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Market states. Transitions are strictly forward:
// PROPOSED → APPROVED → ACTIVE → RESOLVING → FINALIZED, with CANCELLED
// terminal and reachable only from PROPOSED/APPROVED while no bets exist.
const (
	StateProposed  = "PROPOSED"
	StateApproved  = "APPROVED"
	StateActive    = "ACTIVE"
	StateResolving = "RESOLVING"
	StateFinalized = "FINALIZED"
	StateCancelled = "CANCELLED"
)

// Outcome identifiers. Zero means "no outcome recorded".
const (
	Outcome1 int16 = 1
	Outcome2 int16 = 2
)

type Market struct {
	ID          uuid.UUID `gorm:"primaryKey;type:uuid"`
	Question    string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	Category    string    `gorm:"type:text;not null"`
	Outcome1    string    `gorm:"type:text;not null"`
	Outcome2    string    `gorm:"type:text;not null"`
	Creator     string    `gorm:"type:text;not null;index"`
	State       string    `gorm:"type:varchar(16);not null;index"`

	CreatorBond decimal.Decimal `gorm:"type:numeric(38,0);not null"`

	// Net-of-fee pools per outcome plus fee accumulators. The ledger
	// invariant is pool1+pool2+protocol_fees+creator_fees+outstanding
	// bond == ledger_balance until payouts start draining the balance.
	Pool1         decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	Pool2         decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	ProtocolFees  decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	CreatorFees   decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	LedgerBalance decimal.Decimal `gorm:"type:numeric(38,0);not null"`
	BetCount      int64           `gorm:"not null;default:0"`

	ResolutionTime   time.Time  `gorm:"type:timestamptz;not null;index"`
	ResolvedAt       *time.Time `gorm:"type:timestamptz"`
	DisputeWindowEnd *time.Time `gorm:"type:timestamptz;index"`
	FinalizedAt      *time.Time `gorm:"type:timestamptz"`

	ProposedOutcome    int16   `gorm:"not null;default:0"`
	FinalOutcome       int16   `gorm:"not null;default:0"`
	ResolutionEvidence *string `gorm:"type:text"`
	OverrideReason     *string `gorm:"type:text"`

	// Latest community signal snapshot, nil until one is submitted.
	AgreePct    *int `gorm:""`
	DisagreePct *int `gorm:""`

	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Market) TableName() string {
	return "markets"
}
