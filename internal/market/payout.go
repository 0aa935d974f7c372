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

// payoutFor computes a user's payout on a finalized market from their
// positions and the final pools.
//
// Normal case: floor(userWinShares * (winPool + losePool) / winPool).
// The flooring leaves dust in the ledger; dust is never redistributed.
//
// Zero-winner fallback: if the winning pool is empty, every bettor is
// refunded the sum of their shares across both outcomes (net stake;
// fees are not returned).
func payoutFor(m *models.Market, positions []models.Position) decimal.Decimal {
	winPool, losePool := m.Pool1, m.Pool2
	if m.FinalOutcome == models.Outcome2 {
		winPool, losePool = m.Pool2, m.Pool1
	}

	if winPool.IsZero() {
		refund := decimal.Zero
		for _, p := range positions {
			refund = refund.Add(p.Shares)
		}
		return refund
	}

	winShares := decimal.Zero
	for _, p := range positions {
		if p.Outcome == m.FinalOutcome {
			winShares = winShares.Add(p.Shares)
		}
	}
	if winShares.IsZero() {
		return decimal.Zero
	}
	return winShares.Mul(winPool.Add(losePool)).Div(winPool).Floor()
}

// CalculatePayout returns what a user would receive from Claim, without
// claiming. The market must be FINALIZED.
func (e *Engine) CalculatePayout(ctx context.Context, id uuid.UUID, user string) (decimal.Decimal, error) {
	m, err := loadMarket(ctx, e.Repo, id)
	if err != nil {
		return decimal.Zero, err
	}
	if m.State != models.StateFinalized {
		return decimal.Zero, ErrMarketNotFinalized
	}
	positions, err := e.Repo.ListUserPositions(ctx, id, user)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list positions: %w", err)
	}
	if len(positions) == 0 {
		return decimal.Zero, ErrNothingToClaim
	}
	return payoutFor(m, positions), nil
}

// Claim settles a user's payout on a finalized market exactly once. A
// zero payout (a losing position) still writes the claim row so the
// answer is permanent. Winning claims authorize a pending transfer;
// funds leave the ledger at authorization time.
func (e *Engine) Claim(ctx context.Context, caller string, id uuid.UUID) (decimal.Decimal, error) {
	unlock := e.locks.acquire(id)
	defer unlock()

	var (
		amount decimal.Decimal
		ev     models.MarketEvent
	)
	err := e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		if m.State != models.StateFinalized {
			return ErrMarketNotFinalized
		}
		prior, err := r.GetClaim(ctx, id, caller)
		if err != nil {
			return fmt.Errorf("get claim: %w", err)
		}
		if prior != nil {
			return ErrAlreadyClaimed
		}
		positions, err := r.ListUserPositions(ctx, id, caller)
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		if len(positions) == 0 {
			return ErrNothingToClaim
		}
		amount = payoutFor(m, positions)

		claim := &models.Claim{MarketID: id, User: caller, Amount: amount}
		if err := r.InsertClaim(ctx, claim); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		if amount.IsPositive() {
			m.LedgerBalance = m.LedgerBalance.Sub(amount)
			if err := r.UpdateMarket(ctx, m); err != nil {
				return fmt.Errorf("update market: %w", err)
			}
			t := &models.Transfer{
				MarketID:  id,
				Recipient: caller,
				Amount:    amount,
				Kind:      models.TransferKindPayout,
				Status:    models.TransferPending,
			}
			if err := r.InsertTransfer(ctx, t); err != nil {
				return fmt.Errorf("insert transfer: %w", err)
			}
		}
		ev = newEvent(id, models.EventRewardClaimed, caller, map[string]any{
			"user":   caller,
			"amount": amount,
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return decimal.Zero, err
	}
	e.publish(ev)
	if e.Logger != nil {
		e.Logger.Info("payout claimed",
			zap.String("market_id", id.String()),
			zap.String("user", caller),
			zap.String("amount", amount.String()),
		)
	}
	return amount, nil
}
