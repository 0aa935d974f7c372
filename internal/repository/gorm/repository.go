package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"predmarket/internal/models"
	"predmarket/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(r repository.Repository) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// --- markets ----------------------------------------------------------------

func (s *Store) CreateMarket(ctx context.Context, m *models.Market) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	var m models.Market
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) UpdateMarket(ctx context.Context, m *models.Market) error {
	return s.db.WithContext(ctx).Save(m).Error
}

func marketFilter(query *gorm.DB, params repository.ListMarketsParams) *gorm.DB {
	if params.State != nil && strings.TrimSpace(*params.State) != "" {
		query = query.Where("state = ?", strings.TrimSpace(*params.State))
	}
	if params.Creator != nil && strings.TrimSpace(*params.Creator) != "" {
		query = query.Where("creator = ?", strings.TrimSpace(*params.Creator))
	}
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(*params.Category))
	}
	return query
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	query := marketFilter(s.db.WithContext(ctx).Model(&models.Market{}), params)
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Market
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	query := marketFilter(s.db.WithContext(ctx).Model(&models.Market{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListDueResolving(ctx context.Context, now time.Time, limit int) ([]models.Market, error) {
	var items []models.Market
	err := s.db.WithContext(ctx).
		Where("state = ?", models.StateResolving).
		Where("dispute_window_end IS NOT NULL AND dispute_window_end <= ?", now).
		Order("dispute_window_end ASC").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListExpiredProposed(ctx context.Context, cutoff time.Time, limit int) ([]models.Market, error) {
	var items []models.Market
	err := s.db.WithContext(ctx).
		Where("state = ?", models.StateProposed).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- positions --------------------------------------------------------------

func (s *Store) GetPosition(ctx context.Context, marketID uuid.UUID, user string, outcome int16) (*models.Position, error) {
	var p models.Position
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND \"user\" = ? AND outcome = ?", marketID, user, outcome).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListUserPositions(ctx context.Context, marketID uuid.UUID, user string) ([]models.Position, error) {
	var items []models.Position
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND \"user\" = ?", marketID, user).
		Order("outcome ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListMarketPositions(ctx context.Context, marketID uuid.UUID) ([]models.Position, error) {
	var items []models.Position
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SavePosition(ctx context.Context, p *models.Position) error {
	return s.db.WithContext(ctx).Save(p).Error
}

// --- bonds ------------------------------------------------------------------

func (s *Store) GetBond(ctx context.Context, marketID uuid.UUID) (*models.BondRecord, error) {
	var b models.BondRecord
	err := s.db.WithContext(ctx).Where("market_id = ?", marketID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) SaveBond(ctx context.Context, b *models.BondRecord) error {
	return s.db.WithContext(ctx).Save(b).Error
}

// --- dispute signals ----------------------------------------------------------

func (s *Store) GetDisputeSignal(ctx context.Context, marketID uuid.UUID, submitter string) (*models.DisputeSignal, error) {
	var d models.DisputeSignal
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND submitter = ?", marketID, submitter).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) CountDisputeSignals(ctx context.Context, marketID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.DisputeSignal{}).
		Where("market_id = ?", marketID).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) InsertDisputeSignal(ctx context.Context, d *models.DisputeSignal) error {
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *Store) UpdateDisputeSignal(ctx context.Context, d *models.DisputeSignal) error {
	return s.db.WithContext(ctx).Save(d).Error
}

// --- claims -------------------------------------------------------------------

func (s *Store) GetClaim(ctx context.Context, marketID uuid.UUID, user string) (*models.Claim, error) {
	var c models.Claim
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND \"user\" = ?", marketID, user).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) InsertClaim(ctx context.Context, c *models.Claim) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// --- transfers ----------------------------------------------------------------

func (s *Store) InsertTransfer(ctx context.Context, t *models.Transfer) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) ListPendingTransfers(ctx context.Context, limit int) ([]models.Transfer, error) {
	var items []models.Transfer
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TransferPending).
		Order("id ASC").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateTransfer(ctx context.Context, t *models.Transfer) error {
	return s.db.WithContext(ctx).Save(t).Error
}

// --- events -------------------------------------------------------------------

func (s *Store) InsertEvent(ctx context.Context, e *models.MarketEvent) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *Store) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.MarketEvent, error) {
	query := s.db.WithContext(ctx).Model(&models.MarketEvent{})
	if params.MarketID != nil {
		query = query.Where("market_id = ?", *params.MarketID)
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	if params.AfterID > 0 {
		query = query.Where("id > ?", params.AfterID)
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.MarketEvent
	if err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- parameters -----------------------------------------------------------------

func (s *Store) GetParameter(ctx context.Context, key string) (*models.Parameter, error) {
	var p models.Parameter
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListParameters(ctx context.Context) ([]models.Parameter, error) {
	var items []models.Parameter
	if err := s.db.WithContext(ctx).Order("key ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertParameter(ctx context.Context, p *models.Parameter) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(p).Error
}

// --- helpers --------------------------------------------------------------------

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
