// Package market implements the market lifecycle state machine, its
// betting ledger and bond escrow, the resolution/dispute coordinator,
// and the payout calculator. All dependencies are injected; nothing is
// resolved through a global registry.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"predmarket/internal/models"
	"predmarket/internal/params"
	"predmarket/internal/repository"
)

// Publisher receives committed ledger events for fan-out. The event row
// itself is persisted inside the operation's transaction; Publish runs
// after commit.
type Publisher interface {
	Publish(ev models.MarketEvent)
}

type Engine struct {
	Repo   repository.Repository
	Params *params.Store
	Events Publisher
	Logger *zap.Logger
	Clock  Clock

	locks lockTable
}

// CreateConfig is the market creation input consumed from callers.
type CreateConfig struct {
	Question       string
	Description    string
	ResolutionTime time.Time
	CreatorBond    decimal.Decimal
	Category       string
	Outcome1       string
	Outcome2       string
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) snapshot(ctx context.Context) (params.Snapshot, error) {
	return e.Params.Snapshot(ctx)
}

func (e *Engine) publish(evs ...models.MarketEvent) {
	if e.Events == nil {
		return
	}
	for _, ev := range evs {
		e.Events.Publish(ev)
	}
}

func payload(fields map[string]any) datatypes.JSON {
	raw, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

func newEvent(marketID uuid.UUID, typ, actor string, fields map[string]any) models.MarketEvent {
	return models.MarketEvent{
		MarketID: marketID,
		Type:     typ,
		Actor:    actor,
		Payload:  payload(fields),
	}
}

func loadMarket(ctx context.Context, r repository.Repository, id uuid.UUID) (*models.Market, error) {
	m, err := r.GetMarket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	if m == nil {
		return nil, ErrMarketNotFound
	}
	return m, nil
}

// Create validates the config, escrows the creator bond, and stores the
// market in PROPOSED.
func (e *Engine) Create(ctx context.Context, caller string, cfg CreateConfig) (*models.Market, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()

	if err := validateCreate(cfg, snap, now); err != nil {
		return nil, err
	}

	m := &models.Market{
		ID:             uuid.New(),
		Question:       strings.TrimSpace(cfg.Question),
		Description:    strings.TrimSpace(cfg.Description),
		Category:       strings.TrimSpace(cfg.Category),
		Outcome1:       strings.TrimSpace(cfg.Outcome1),
		Outcome2:       strings.TrimSpace(cfg.Outcome2),
		Creator:        caller,
		State:          models.StateProposed,
		CreatorBond:    cfg.CreatorBond,
		Pool1:          decimal.Zero,
		Pool2:          decimal.Zero,
		ProtocolFees:   decimal.Zero,
		CreatorFees:    decimal.Zero,
		LedgerBalance:  cfg.CreatorBond,
		ResolutionTime: cfg.ResolutionTime.UTC(),
		CreatedAt:      now,
	}

	ev := newEvent(m.ID, models.EventMarketCreated, caller, map[string]any{
		"question":        m.Question,
		"category":        m.Category,
		"outcome1":        m.Outcome1,
		"outcome2":        m.Outcome2,
		"creator":         caller,
		"creator_bond":    m.CreatorBond,
		"resolution_time": m.ResolutionTime,
	})

	err = e.Repo.InTx(ctx, func(r repository.Repository) error {
		if err := r.CreateMarket(ctx, m); err != nil {
			return fmt.Errorf("create market: %w", err)
		}
		bond := &models.BondRecord{
			MarketID: m.ID,
			Creator:  caller,
			Amount:   cfg.CreatorBond,
			Status:   models.BondHeld,
		}
		if err := r.SaveBond(ctx, bond); err != nil {
			return fmt.Errorf("save bond: %w", err)
		}
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return nil, err
	}

	e.publish(ev)
	if e.Logger != nil {
		e.Logger.Info("market created",
			zap.String("market_id", m.ID.String()),
			zap.String("creator", caller),
			zap.Time("resolution_time", m.ResolutionTime),
		)
	}
	return m, nil
}

func validateCreate(cfg CreateConfig, snap params.Snapshot, now time.Time) error {
	if !snap.MarketCreationActive {
		return ErrCreationDisabled
	}
	if strings.TrimSpace(cfg.Question) == "" {
		return fmt.Errorf("%w: empty question", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.Outcome1) == "" || strings.TrimSpace(cfg.Outcome2) == "" {
		return fmt.Errorf("%w: empty outcome label", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.Category) == "" {
		return fmt.Errorf("%w: empty category", ErrInvalidConfiguration)
	}
	if !cfg.ResolutionTime.After(now) {
		return fmt.Errorf("%w: resolution time not in the future", ErrInvalidConfiguration)
	}
	if cfg.ResolutionTime.After(now.Add(snap.MaxResolutionHorizon)) {
		return fmt.Errorf("%w: resolution time beyond %s horizon", ErrInvalidConfiguration, snap.MaxResolutionHorizon)
	}
	if cfg.CreatorBond.IsNegative() {
		return fmt.Errorf("%w: bond must not be negative", ErrInvalidConfiguration)
	}
	if !cfg.CreatorBond.Equal(cfg.CreatorBond.Floor()) {
		return fmt.Errorf("%w: bond must be integral", ErrInvalidConfiguration)
	}
	if cfg.CreatorBond.LessThan(snap.MinCreatorBond) {
		return fmt.Errorf("%w: bond %s < minimum %s", ErrInsufficientBond, cfg.CreatorBond, snap.MinCreatorBond)
	}
	return nil
}

// Approve moves PROPOSED → APPROVED. The creator bond stays escrowed;
// refunding it is a separate explicit step so a failed transfer can
// never corrupt the approval.
func (e *Engine) Approve(ctx context.Context, caller string, id uuid.UUID) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	var ev models.MarketEvent
	err := e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateProposed:
		case models.StateCancelled:
			return ErrAlreadyRejected
		default:
			return ErrAlreadyApproved
		}
		m.State = models.StateApproved
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev = newEvent(id, models.EventMarketApproved, caller, map[string]any{
			"state": m.State,
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return err
	}
	e.publish(ev)
	return nil
}

// Reject cancels a PROPOSED market. Bond disposition follows the
// configured reject policy (default slash, per the deployed parameter
// set: forfeited if the market is rejected).
func (e *Engine) Reject(ctx context.Context, caller string, id uuid.UUID, reason string) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return err
	}

	var evs []models.MarketEvent
	err = e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateProposed:
		case models.StateCancelled:
			return ErrAlreadyRejected
		default:
			return ErrAlreadyApproved
		}
		m.State = models.StateCancelled

		bondEv, err := applyBondPolicy(ctx, r, m, snap.BondPolicyOnReject, caller, reason)
		if err != nil {
			return err
		}
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev := newEvent(id, models.EventMarketCancelled, caller, map[string]any{
			"reason":      reason,
			"bond_policy": snap.BondPolicyOnReject,
		})
		if err := r.InsertEvent(ctx, &ev); err != nil {
			return err
		}
		evs = append(evs, ev)
		if bondEv != nil {
			evs = append(evs, *bondEv)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.publish(evs...)
	return nil
}

// Activate moves APPROVED → ACTIVE and opens betting.
func (e *Engine) Activate(ctx context.Context, caller string, id uuid.UUID) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	var ev models.MarketEvent
	err := e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateApproved:
		case models.StateProposed:
			return ErrNotApproved
		case models.StateCancelled:
			return ErrAlreadyRejected
		default:
			return ErrAlreadyActive
		}
		m.State = models.StateActive
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev = newEvent(id, models.EventMarketActivated, caller, map[string]any{
			"state": m.State,
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return err
	}
	e.publish(ev)
	return nil
}

// Cancel terminates a PROPOSED or APPROVED market with zero bets. Only
// the creator (or an admin, enforced by the caller) may cancel; bond
// disposition follows the configured cancel policy.
func (e *Engine) Cancel(ctx context.Context, caller string, id uuid.UUID, isAdmin bool, reason string) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return err
	}

	var evs []models.MarketEvent
	err = e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		if m.State != models.StateProposed && m.State != models.StateApproved {
			if m.State == models.StateCancelled {
				return ErrAlreadyRejected
			}
			return ErrAlreadyActive
		}
		if m.BetCount > 0 {
			return ErrBetsPlaced
		}
		if !isAdmin && caller != m.Creator {
			return ErrUnauthorized
		}
		m.State = models.StateCancelled

		bondEv, err := applyBondPolicy(ctx, r, m, snap.BondPolicyOnCancel, caller, reason)
		if err != nil {
			return err
		}
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev := newEvent(id, models.EventMarketCancelled, caller, map[string]any{
			"reason":      reason,
			"bond_policy": snap.BondPolicyOnCancel,
		})
		if err := r.InsertEvent(ctx, &ev); err != nil {
			return err
		}
		evs = append(evs, ev)
		if bondEv != nil {
			evs = append(evs, *bondEv)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.publish(evs...)
	return nil
}

// RefundBond releases the escrowed creator bond after approval. It is
// deliberately separate from Approve so that a transfer failure leaves
// the approval intact and the refund retryable.
func (e *Engine) RefundBond(ctx context.Context, caller string, id uuid.UUID, reason string) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	var ev models.MarketEvent
	err := e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateProposed:
			return ErrNotApproved
		case models.StateCancelled:
			return ErrAlreadyRejected
		}
		bond, err := r.GetBond(ctx, id)
		if err != nil {
			return fmt.Errorf("get bond: %w", err)
		}
		if bond == nil || bond.Status != models.BondHeld || bond.Amount.IsZero() {
			return ErrBondNotHeld
		}
		amount := bond.Amount
		bond.Amount = decimal.Zero
		bond.Status = models.BondRefunded
		bond.Reason = &reason
		if err := r.SaveBond(ctx, bond); err != nil {
			return fmt.Errorf("save bond: %w", err)
		}
		m.LedgerBalance = m.LedgerBalance.Sub(amount)
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		t := &models.Transfer{
			MarketID:  id,
			Recipient: bond.Creator,
			Amount:    amount,
			Kind:      models.TransferKindBondRefund,
			Status:    models.TransferPending,
		}
		if err := r.InsertTransfer(ctx, t); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		ev = newEvent(id, models.EventBondRefunded, caller, map[string]any{
			"creator": bond.Creator,
			"amount":  amount,
			"reason":  reason,
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return err
	}
	e.publish(ev)
	return nil
}

// applyBondPolicy settles a held bond on reject/cancel. Refund
// authorizes a transfer back to the creator; slash folds the bond into
// protocol fees. A bond already settled is left alone.
func applyBondPolicy(ctx context.Context, r repository.Repository, m *models.Market, policy, actor, reason string) (*models.MarketEvent, error) {
	bond, err := r.GetBond(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("get bond: %w", err)
	}
	if bond == nil || bond.Status != models.BondHeld || bond.Amount.IsZero() {
		return nil, nil
	}
	amount := bond.Amount
	bond.Amount = decimal.Zero
	bond.Reason = &reason

	var ev models.MarketEvent
	if policy == params.PolicyRefund {
		bond.Status = models.BondRefunded
		m.LedgerBalance = m.LedgerBalance.Sub(amount)
		t := &models.Transfer{
			MarketID:  m.ID,
			Recipient: bond.Creator,
			Amount:    amount,
			Kind:      models.TransferKindBondRefund,
			Status:    models.TransferPending,
		}
		if err := r.InsertTransfer(ctx, t); err != nil {
			return nil, fmt.Errorf("insert transfer: %w", err)
		}
		ev = newEvent(m.ID, models.EventBondRefunded, actor, map[string]any{
			"creator": bond.Creator,
			"amount":  amount,
			"reason":  reason,
		})
	} else {
		bond.Status = models.BondSlashed
		m.ProtocolFees = m.ProtocolFees.Add(amount)
		ev = newEvent(m.ID, models.EventBondSlashed, actor, map[string]any{
			"creator": bond.Creator,
			"amount":  amount,
			"reason":  reason,
		})
	}
	if err := r.SaveBond(ctx, bond); err != nil {
		return nil, fmt.Errorf("save bond: %w", err)
	}
	if err := r.InsertEvent(ctx, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Get returns a market by ID without locking.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	return loadMarket(ctx, e.Repo, id)
}
