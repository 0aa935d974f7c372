package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"predmarket/internal/models"
	"predmarket/internal/repository"
)

var bpsDenominator = decimal.NewFromInt(10000)

// feeFor floors the fee per transaction; the protocol keeps the
// remainder. Flooring per bet, never on aggregates, bounds the total
// rounding loss to one unit per fee per transaction.
func feeFor(amount decimal.Decimal, bps int64) decimal.Decimal {
	if bps <= 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(bps)).Div(bpsDenominator).Floor()
}

// PlaceBet credits the caller's position on one outcome. The gross
// amount enters the ledger balance; protocol and creator fees are
// floored out and the net stake goes to the outcome pool 1:1 as shares.
func (e *Engine) PlaceBet(ctx context.Context, caller string, id uuid.UUID, outcome int16, amount decimal.Decimal) (*models.Position, error) {
	unlock := e.locks.acquire(id)
	defer unlock()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()

	if outcome != models.Outcome1 && outcome != models.Outcome2 {
		return nil, ErrInvalidOutcome
	}
	if amount.IsZero() || amount.IsNegative() {
		return nil, fmt.Errorf("%w: bet amount must be positive", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Floor()) {
		return nil, fmt.Errorf("%w: bet amount must be integral", ErrInvalidAmount)
	}
	if snap.EmergencyPause {
		return nil, ErrPaused
	}
	if amount.LessThan(snap.MinimumBet) {
		return nil, fmt.Errorf("%w: %s < %s", ErrBetTooSmall, amount, snap.MinimumBet)
	}
	if amount.GreaterThan(snap.MaximumBet) {
		return nil, fmt.Errorf("%w: %s > %s", ErrBetTooLarge, amount, snap.MaximumBet)
	}

	var (
		pos *models.Position
		ev  models.MarketEvent
	)
	err = e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		if m.State != models.StateActive {
			return ErrMarketNotActive
		}
		// Boundary is exclusive: betting at exactly resolutionTime fails.
		if !now.Before(m.ResolutionTime) {
			return ErrMarketNotActive
		}

		protocolFee := feeFor(amount, snap.ProtocolFeeBps)
		creatorFee := feeFor(amount, snap.CreatorFeeBps)
		netStake := amount.Sub(protocolFee).Sub(creatorFee)

		switch outcome {
		case models.Outcome1:
			m.Pool1 = m.Pool1.Add(netStake)
		case models.Outcome2:
			m.Pool2 = m.Pool2.Add(netStake)
		}
		m.ProtocolFees = m.ProtocolFees.Add(protocolFee)
		m.CreatorFees = m.CreatorFees.Add(creatorFee)
		m.LedgerBalance = m.LedgerBalance.Add(amount)
		m.BetCount++

		pos, err = r.GetPosition(ctx, id, caller, outcome)
		if err != nil {
			return fmt.Errorf("get position: %w", err)
		}
		if pos == nil {
			pos = &models.Position{
				MarketID:   id,
				User:       caller,
				Outcome:    outcome,
				Shares:     decimal.Zero,
				AmountPaid: decimal.Zero,
			}
		}
		pos.Shares = pos.Shares.Add(netStake)
		pos.AmountPaid = pos.AmountPaid.Add(amount)
		if err := r.SavePosition(ctx, pos); err != nil {
			return fmt.Errorf("save position: %w", err)
		}
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev = newEvent(id, models.EventBetPlaced, caller, map[string]any{
			"outcome":      outcome,
			"amount":       amount,
			"protocol_fee": protocolFee,
			"creator_fee":  creatorFee,
			"net_stake":    netStake,
			"pool1":        m.Pool1,
			"pool2":        m.Pool2,
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return nil, err
	}

	e.publish(ev)
	if e.Logger != nil {
		e.Logger.Debug("bet placed",
			zap.String("market_id", id.String()),
			zap.String("user", caller),
			zap.Int16("outcome", outcome),
			zap.String("amount", amount.String()),
		)
	}
	return pos, nil
}

// SellShares returns part of the caller's position to them before
// trading closes. The pool and position shrink by the sold amount and
// a refund transfer is authorized.
func (e *Engine) SellShares(ctx context.Context, caller string, id uuid.UUID, outcome int16, amount decimal.Decimal) (*models.Position, error) {
	unlock := e.locks.acquire(id)
	defer unlock()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()

	if outcome != models.Outcome1 && outcome != models.Outcome2 {
		return nil, ErrInvalidOutcome
	}
	if amount.IsZero() || amount.IsNegative() || !amount.Equal(amount.Floor()) {
		return nil, fmt.Errorf("%w: sell amount must be a positive integral amount", ErrInvalidAmount)
	}
	if snap.EmergencyPause {
		return nil, ErrPaused
	}

	var (
		pos *models.Position
		ev  models.MarketEvent
	)
	err = e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		if m.State != models.StateActive || !now.Before(m.ResolutionTime) {
			return ErrMarketNotActive
		}
		pos, err = r.GetPosition(ctx, id, caller, outcome)
		if err != nil {
			return fmt.Errorf("get position: %w", err)
		}
		if pos == nil || pos.Shares.LessThan(amount) {
			return ErrInsufficientPosition
		}
		pos.Shares = pos.Shares.Sub(amount)
		switch outcome {
		case models.Outcome1:
			m.Pool1 = m.Pool1.Sub(amount)
		case models.Outcome2:
			m.Pool2 = m.Pool2.Sub(amount)
		}
		m.LedgerBalance = m.LedgerBalance.Sub(amount)
		if err := r.SavePosition(ctx, pos); err != nil {
			return fmt.Errorf("save position: %w", err)
		}
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		t := &models.Transfer{
			MarketID:  id,
			Recipient: caller,
			Amount:    amount,
			Kind:      models.TransferKindSellRefund,
			Status:    models.TransferPending,
		}
		if err := r.InsertTransfer(ctx, t); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		ev = newEvent(id, models.EventSharesSold, caller, map[string]any{
			"outcome": outcome,
			"amount":  amount,
			"pool1":   m.Pool1,
			"pool2":   m.Pool2,
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return nil, err
	}

	e.publish(ev)
	return pos, nil
}

// Pools reports the per-outcome pools, fee accumulators, and ledger
// balance of one market.
type Pools struct {
	Pool1         decimal.Decimal `json:"pool1"`
	Pool2         decimal.Decimal `json:"pool2"`
	ProtocolFees  decimal.Decimal `json:"protocol_fees"`
	CreatorFees   decimal.Decimal `json:"creator_fees"`
	Bond          decimal.Decimal `json:"outstanding_bond"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	BetCount      int64           `json:"bet_count"`
}

func (e *Engine) GetPools(ctx context.Context, id uuid.UUID) (*Pools, error) {
	m, err := loadMarket(ctx, e.Repo, id)
	if err != nil {
		return nil, err
	}
	bond := decimal.Zero
	b, err := e.Repo.GetBond(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get bond: %w", err)
	}
	if b != nil {
		bond = b.Amount
	}
	return &Pools{
		Pool1:         m.Pool1,
		Pool2:         m.Pool2,
		ProtocolFees:  m.ProtocolFees,
		CreatorFees:   m.CreatorFees,
		Bond:          bond,
		LedgerBalance: m.LedgerBalance,
		BetCount:      m.BetCount,
	}, nil
}
