package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"predmarket/internal/config"
	"predmarket/internal/models"
	"predmarket/internal/params"
	"predmarket/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.Repository. InTx runs the callback against the same store;
// engine guards run before any write, so rollback is not simulated.
type stubRepo struct {
	mu        sync.Mutex
	markets   map[uuid.UUID]models.Market
	positions map[string]models.Position
	bonds     map[uuid.UUID]models.BondRecord
	signals   map[string]models.DisputeSignal
	claims    map[string]models.Claim
	transfers map[uint64]models.Transfer
	events    []models.MarketEvent
	params    map[string]string

	nextTransferID uint64
	nextEventID    uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		markets:   map[uuid.UUID]models.Market{},
		positions: map[string]models.Position{},
		bonds:     map[uuid.UUID]models.BondRecord{},
		signals:   map[string]models.DisputeSignal{},
		claims:    map[string]models.Claim{},
		transfers: map[uint64]models.Transfer{},
		params:    map[string]string{},
	}
}

func posKey(marketID uuid.UUID, user string, outcome int16) string {
	return fmt.Sprintf("%s|%s|%d", marketID, user, outcome)
}

func pairKey(marketID uuid.UUID, user string) string {
	return fmt.Sprintf("%s|%s", marketID, user)
}

func (s *stubRepo) InTx(ctx context.Context, fn func(r repository.Repository) error) error {
	return fn(s)
}

func (s *stubRepo) CreateMarket(ctx context.Context, m *models.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = *m
	return nil
}

func (s *stubRepo) GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, nil
	}
	cp := m
	return &cp, nil
}

func (s *stubRepo) UpdateMarket(ctx context.Context, m *models.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = *m
	return nil
}

func (s *stubRepo) ListMarkets(ctx context.Context, p repository.ListMarketsParams) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Market
	for _, m := range s.markets {
		if p.State != nil && m.State != *p.State {
			continue
		}
		if p.Creator != nil && m.Creator != *p.Creator {
			continue
		}
		if p.Category != nil && m.Category != *p.Category {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *stubRepo) CountMarkets(ctx context.Context, p repository.ListMarketsParams) (int64, error) {
	items, _ := s.ListMarkets(ctx, p)
	return int64(len(items)), nil
}

func (s *stubRepo) ListDueResolving(ctx context.Context, now time.Time, limit int) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Market
	for _, m := range s.markets {
		if m.State != models.StateResolving || m.DisputeWindowEnd == nil {
			continue
		}
		if m.DisputeWindowEnd.After(now) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) ListExpiredProposed(ctx context.Context, cutoff time.Time, limit int) ([]models.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Market
	for _, m := range s.markets {
		if m.State != models.StateProposed || m.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) GetPosition(ctx context.Context, marketID uuid.UUID, user string, outcome int16) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[posKey(marketID, user, outcome)]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (s *stubRepo) ListUserPositions(ctx context.Context, marketID uuid.UUID, user string) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.MarketID == marketID && p.User == user {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) ListMarketPositions(ctx context.Context, marketID uuid.UUID) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.MarketID == marketID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) SavePosition(ctx context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[posKey(p.MarketID, p.User, p.Outcome)] = *p
	return nil
}

func (s *stubRepo) GetBond(ctx context.Context, marketID uuid.UUID) (*models.BondRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bonds[marketID]
	if !ok {
		return nil, nil
	}
	cp := b
	return &cp, nil
}

func (s *stubRepo) SaveBond(ctx context.Context, b *models.BondRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonds[b.MarketID] = *b
	return nil
}

func (s *stubRepo) GetDisputeSignal(ctx context.Context, marketID uuid.UUID, submitter string) (*models.DisputeSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[pairKey(marketID, submitter)]
	if !ok {
		return nil, nil
	}
	cp := sig
	return &cp, nil
}

func (s *stubRepo) CountDisputeSignals(ctx context.Context, marketID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sig := range s.signals {
		if sig.MarketID == marketID {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) InsertDisputeSignal(ctx context.Context, sig *models.DisputeSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sig.MarketID, sig.Submitter)
	if _, ok := s.signals[key]; ok {
		return fmt.Errorf("duplicate dispute signal row")
	}
	s.signals[key] = *sig
	return nil
}

func (s *stubRepo) UpdateDisputeSignal(ctx context.Context, sig *models.DisputeSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[pairKey(sig.MarketID, sig.Submitter)] = *sig
	return nil
}

func (s *stubRepo) GetClaim(ctx context.Context, marketID uuid.UUID, user string) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[pairKey(marketID, user)]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (s *stubRepo) InsertClaim(ctx context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(c.MarketID, c.User)
	if _, ok := s.claims[key]; ok {
		return fmt.Errorf("duplicate claim row")
	}
	s.claims[key] = *c
	return nil
}

func (s *stubRepo) InsertTransfer(ctx context.Context, t *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTransferID++
	t.ID = s.nextTransferID
	s.transfers[t.ID] = *t
	return nil
}

func (s *stubRepo) ListPendingTransfers(ctx context.Context, limit int) ([]models.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transfer
	for _, t := range s.transfers {
		if t.Status != models.TransferPending {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) UpdateTransfer(ctx context.Context, t *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[t.ID] = *t
	return nil
}

func (s *stubRepo) InsertEvent(ctx context.Context, e *models.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	e.ID = s.nextEventID
	s.events = append(s.events, *e)
	return nil
}

func (s *stubRepo) ListEvents(ctx context.Context, p repository.ListEventsParams) ([]models.MarketEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MarketEvent
	for _, e := range s.events {
		if p.MarketID != nil && e.MarketID != *p.MarketID {
			continue
		}
		if p.Type != nil && e.Type != *p.Type {
			continue
		}
		if e.ID <= p.AfterID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *stubRepo) GetParameter(ctx context.Context, key string) (*models.Parameter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[key]
	if !ok {
		return nil, nil
	}
	return &models.Parameter{Key: key, Value: v}, nil
}

func (s *stubRepo) ListParameters(ctx context.Context) ([]models.Parameter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Parameter
	for k, v := range s.params {
		out = append(out, models.Parameter{Key: k, Value: v})
	}
	return out, nil
}

func (s *stubRepo) UpsertParameter(ctx context.Context, p *models.Parameter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[p.Key] = p.Value
	return nil
}

// eventTypes returns the types of all persisted events for a market,
// in insertion order.
func (s *stubRepo) eventTypes(marketID uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.MarketID == marketID {
			out = append(out, e.Type)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type capturePublisher struct {
	mu     sync.Mutex
	events []models.MarketEvent
}

func (p *capturePublisher) Publish(ev models.MarketEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func testDefaults() config.MarketConfig {
	return config.MarketConfig{
		MinCreatorBond:       "1000",
		MinimumBet:           "100",
		MaximumBet:           "1000000",
		ProtocolFeeBps:       250,
		CreatorFeeBps:        150,
		DisputeWindow:        48 * time.Hour,
		MinDisputeBond:       "100",
		MaxResolutionHorizon: 8760 * time.Hour,
		ApprovalWindow:       24 * time.Hour,
		AgreementThreshold:   75,
		DisagreementLow:      40,
		DisagreementHigh:     60,
		MarketCreationActive: true,
		EmergencyPause:       false,
		BondPolicyOnReject:   "slash",
		BondPolicyOnCancel:   "refund",
		DisputeSignalReplace: false,
		Treasury:             "treasury",
	}
}

type testEnv struct {
	engine *Engine
	repo   *stubRepo
	clock  *fakeClock
	pub    *capturePublisher
}

func newTestEnv() *testEnv {
	repo := newStubRepo()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	pub := &capturePublisher{}
	engine := &Engine{
		Repo:   repo,
		Params: &params.Store{Repo: repo, Defaults: testDefaults()},
		Events: pub,
		Clock:  clock,
	}
	return &testEnv{engine: engine, repo: repo, clock: clock, pub: pub}
}
