package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"predmarket/internal/models"
)

type ListMarketsParams struct {
	State    *string
	Creator  *string
	Category *string
	Limit    int
	Offset   int
}

type ListEventsParams struct {
	MarketID *uuid.UUID
	Type     *string
	AfterID  uint64
	Limit    int
	Offset   int
}

// Repository is the persistence surface of the market core. InTx runs
// fn against a transaction-bound Repository; every mutation the engine
// performs for one operation happens inside a single InTx call, which
// is what gives each external call its all-or-nothing semantics.
// Get* methods return (nil, nil) when no row matches.
type Repository interface {
	InTx(ctx context.Context, fn func(r Repository) error) error

	CreateMarket(ctx context.Context, m *models.Market) error
	GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error)
	UpdateMarket(ctx context.Context, m *models.Market) error
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context, params ListMarketsParams) (int64, error)
	// ListDueResolving returns RESOLVING markets whose dispute window
	// ended at or before now.
	ListDueResolving(ctx context.Context, now time.Time, limit int) ([]models.Market, error)
	// ListExpiredProposed returns PROPOSED markets created at or before
	// the cutoff.
	ListExpiredProposed(ctx context.Context, cutoff time.Time, limit int) ([]models.Market, error)

	GetPosition(ctx context.Context, marketID uuid.UUID, user string, outcome int16) (*models.Position, error)
	ListUserPositions(ctx context.Context, marketID uuid.UUID, user string) ([]models.Position, error)
	ListMarketPositions(ctx context.Context, marketID uuid.UUID) ([]models.Position, error)
	SavePosition(ctx context.Context, p *models.Position) error

	GetBond(ctx context.Context, marketID uuid.UUID) (*models.BondRecord, error)
	SaveBond(ctx context.Context, b *models.BondRecord) error

	GetDisputeSignal(ctx context.Context, marketID uuid.UUID, submitter string) (*models.DisputeSignal, error)
	CountDisputeSignals(ctx context.Context, marketID uuid.UUID) (int64, error)
	InsertDisputeSignal(ctx context.Context, s *models.DisputeSignal) error
	UpdateDisputeSignal(ctx context.Context, s *models.DisputeSignal) error

	GetClaim(ctx context.Context, marketID uuid.UUID, user string) (*models.Claim, error)
	InsertClaim(ctx context.Context, c *models.Claim) error

	InsertTransfer(ctx context.Context, t *models.Transfer) error
	ListPendingTransfers(ctx context.Context, limit int) ([]models.Transfer, error)
	UpdateTransfer(ctx context.Context, t *models.Transfer) error

	InsertEvent(ctx context.Context, e *models.MarketEvent) error
	ListEvents(ctx context.Context, params ListEventsParams) ([]models.MarketEvent, error)

	GetParameter(ctx context.Context, key string) (*models.Parameter, error)
	ListParameters(ctx context.Context) ([]models.Parameter, error)
	UpsertParameter(ctx context.Context, p *models.Parameter) error
}
