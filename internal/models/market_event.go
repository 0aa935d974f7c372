package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event types carried by the ledger event stream. Payloads hold enough
// data for an indexer to reconstruct ledger state without re-deriving
// internal arithmetic.
const (
	EventMarketCreated          = "MarketCreated"
	EventMarketApproved         = "MarketApproved"
	EventMarketActivated        = "MarketActivated"
	EventMarketCancelled        = "MarketCancelled"
	EventBondRefunded           = "BondRefunded"
	EventBondSlashed            = "BondSlashed"
	EventBetPlaced              = "BetPlaced"
	EventSharesSold             = "SharesSold"
	EventMarketResolved         = "MarketResolved"
	EventDisputeSignalSubmitted = "DisputeSignalSubmitted"
	EventAdminOverride          = "AdminOverride"
	EventMarketFinalized        = "MarketFinalized"
	EventRewardClaimed          = "RewardClaimed"
	EventTransferExecuted       = "TransferExecuted"
)

type MarketEvent struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	MarketID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	Type      string         `gorm:"type:varchar(32);not null;index"`
	Actor     string         `gorm:"type:text;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (MarketEvent) TableName() string {
	return "market_events"
}
