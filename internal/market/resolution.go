package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"predmarket/internal/models"
	"predmarket/internal/repository"
)

// Review outcomes derived from the latest community signal snapshot.
// These drive reporting and the auto-finalize sweep; they never cause a
// transition by themselves.
const (
	ReviewPending       = "pending"
	ReviewAutoEligible  = "auto_finalize_eligible"
	ReviewAdminRequired = "admin_review_required"
	ReviewDeadlocked    = "deadlocked"
)

// Resolve records a proposed outcome once trading has closed, opens the
// dispute window, and moves the market to RESOLVING. Exactly one resolve
// per market; a second call is rejected even with a different outcome.
func (e *Engine) Resolve(ctx context.Context, caller string, id uuid.UUID, outcome int16, evidence string) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return err
	}
	now := e.now()

	if outcome != models.Outcome1 && outcome != models.Outcome2 {
		return ErrInvalidOutcome
	}

	var ev models.MarketEvent
	err = e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateActive:
		case models.StateResolving:
			return ErrAlreadyResolved
		case models.StateFinalized:
			return ErrAlreadyFinalized
		default:
			return ErrMarketNotResolvable
		}
		if now.Before(m.ResolutionTime) {
			return fmt.Errorf("%w: trading closes at %s", ErrMarketNotResolvable, m.ResolutionTime)
		}

		windowEnd := now.Add(snap.DisputeWindow)
		m.State = models.StateResolving
		m.ProposedOutcome = outcome
		m.ResolvedAt = &now
		m.DisputeWindowEnd = &windowEnd
		if evidence != "" {
			m.ResolutionEvidence = &evidence
		}
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev = newEvent(id, models.EventMarketResolved, caller, map[string]any{
			"proposed_outcome":   outcome,
			"evidence":           evidence,
			"dispute_window_end": windowEnd,
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return err
	}
	e.publish(ev)
	return nil
}

// BatchResolveItem is one entry of a batch resolution request.
type BatchResolveItem struct {
	MarketID uuid.UUID
	Outcome  int16
	Evidence string
}

// BatchResolveResult reports one market's outcome from a batch call.
type BatchResolveResult struct {
	MarketID uuid.UUID `json:"market_id"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Code     string    `json:"code,omitempty"`
}

// BatchResolve resolves several markets; per-market failures are
// reported individually and do not abort the remainder.
func (e *Engine) BatchResolve(ctx context.Context, caller string, items []BatchResolveItem) []BatchResolveResult {
	results := make([]BatchResolveResult, 0, len(items))
	for _, item := range items {
		res := BatchResolveResult{MarketID: item.MarketID, OK: true}
		if err := e.Resolve(ctx, caller, item.MarketID, item.Outcome, item.Evidence); err != nil {
			res.OK = false
			res.Error = err.Error()
			res.Code = Code(err)
		}
		results = append(results, res)
	}
	return results
}

// SubmitDisputeSignal records an aggregated community agree/disagree
// percentage snapshot during the dispute window. The first submission
// wins; later ones are rejected unless the replace policy is enabled
// and the submitter is the same principal. Submission never transitions
// state by itself.
func (e *Engine) SubmitDisputeSignal(ctx context.Context, caller string, id uuid.UUID, agreePct, disagreePct int) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return err
	}
	now := e.now()

	if agreePct < 0 || agreePct > 100 || disagreePct < 0 || disagreePct > 100 || agreePct+disagreePct > 100 {
		return fmt.Errorf("%w: percentages out of range", ErrInvalidConfiguration)
	}

	var ev models.MarketEvent
	err = e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateResolving:
		case models.StateFinalized:
			return ErrAlreadyFinalized
		default:
			return ErrMarketNotResolvable
		}
		if m.DisputeWindowEnd == nil || !now.Before(*m.DisputeWindowEnd) {
			return ErrDisputeWindowClosed
		}

		count, err := r.CountDisputeSignals(ctx, id)
		if err != nil {
			return fmt.Errorf("count dispute signals: %w", err)
		}
		if count > 0 {
			if !snap.DisputeSignalReplace {
				return ErrDuplicateDisputeSignal
			}
			existing, err := r.GetDisputeSignal(ctx, id, caller)
			if err != nil {
				return fmt.Errorf("get dispute signal: %w", err)
			}
			if existing == nil {
				return ErrDuplicateDisputeSignal
			}
			existing.AgreePct = agreePct
			existing.DisagreePct = disagreePct
			if err := r.UpdateDisputeSignal(ctx, existing); err != nil {
				return fmt.Errorf("update dispute signal: %w", err)
			}
		} else {
			sig := &models.DisputeSignal{
				MarketID:    id,
				Submitter:   caller,
				AgreePct:    agreePct,
				DisagreePct: disagreePct,
			}
			if err := r.InsertDisputeSignal(ctx, sig); err != nil {
				return fmt.Errorf("insert dispute signal: %w", err)
			}
		}

		m.AgreePct = &agreePct
		m.DisagreePct = &disagreePct
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev = newEvent(id, models.EventDisputeSignalSubmitted, caller, map[string]any{
			"agree_pct":    agreePct,
			"disagree_pct": disagreePct,
			"review":       reviewStatus(m, snap.AgreementThreshold, snap.DisagreementLow, snap.DisagreementHigh),
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return err
	}
	e.publish(ev)
	return nil
}

// AdminOverride finalizes a RESOLVING market to the given outcome
// immediately, bypassing the dispute window and any community signal.
// This is the trust-anchor escape hatch: it works at any time during
// RESOLVING, even against a 90% agreement snapshot.
func (e *Engine) AdminOverride(ctx context.Context, caller string, id uuid.UUID, outcome int16, reason string) error {
	unlock := e.locks.acquire(id)
	defer unlock()

	now := e.now()
	if outcome != models.Outcome1 && outcome != models.Outcome2 {
		return ErrInvalidOutcome
	}

	var evs []models.MarketEvent
	err := e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateResolving:
		case models.StateFinalized:
			return ErrAlreadyFinalized
		default:
			return ErrMarketNotResolvable
		}
		m.State = models.StateFinalized
		m.FinalOutcome = outcome
		m.OverrideReason = &reason
		m.FinalizedAt = &now
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		overrideEv := newEvent(id, models.EventAdminOverride, caller, map[string]any{
			"final_outcome": outcome,
			"reason":        reason,
		})
		if err := r.InsertEvent(ctx, &overrideEv); err != nil {
			return err
		}
		finalEv := newEvent(id, models.EventMarketFinalized, caller, map[string]any{
			"final_outcome": outcome,
			"via":           "admin_override",
		})
		if err := r.InsertEvent(ctx, &finalEv); err != nil {
			return err
		}
		evs = append(evs, overrideEv, finalEv)
		return nil
	})
	if err != nil {
		return err
	}
	e.publish(evs...)
	return nil
}

// Finalize fixes the proposed outcome once the dispute window has
// elapsed. The admin-override path is the only way finalOutcome can
// differ from proposedOutcome.
func (e *Engine) Finalize(ctx context.Context, caller string, id uuid.UUID) error {
	unlock := e.locks.acquire(id)
	defer unlock()
	return e.finalizeLocked(ctx, caller, id)
}

func (e *Engine) finalizeLocked(ctx context.Context, caller string, id uuid.UUID) error {
	now := e.now()

	var ev models.MarketEvent
	err := e.Repo.InTx(ctx, func(r repository.Repository) error {
		m, err := loadMarket(ctx, r, id)
		if err != nil {
			return err
		}
		switch m.State {
		case models.StateResolving:
		case models.StateFinalized:
			return ErrAlreadyFinalized
		default:
			return ErrMarketNotResolvable
		}
		if m.DisputeWindowEnd == nil || now.Before(*m.DisputeWindowEnd) {
			return ErrDisputeWindowNotElapsed
		}
		m.State = models.StateFinalized
		m.FinalOutcome = m.ProposedOutcome
		m.FinalizedAt = &now
		if err := r.UpdateMarket(ctx, m); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		ev = newEvent(id, models.EventMarketFinalized, caller, map[string]any{
			"final_outcome": m.FinalOutcome,
			"via":           "dispute_window_elapsed",
		})
		return r.InsertEvent(ctx, &ev)
	})
	if err != nil {
		return err
	}
	e.publish(ev)
	return nil
}

// reviewStatus classifies the latest snapshot. Agreement at or above
// the threshold is eligible for the auto-finalize sweep; agreement
// strictly between the low and high bands needs an admin; an exact
// 50/50 split never auto-finalizes.
func reviewStatus(m *models.Market, agreementThreshold, low, high int) string {
	if m.AgreePct == nil || m.DisagreePct == nil {
		return ReviewPending
	}
	agree, disagree := *m.AgreePct, *m.DisagreePct
	if agree == 50 && disagree == 50 {
		return ReviewDeadlocked
	}
	if agree >= agreementThreshold {
		return ReviewAutoEligible
	}
	if agree > low && agree < high {
		return ReviewAdminRequired
	}
	return ReviewPending
}

// ReviewStatus reports the dispute review classification for a market.
func (e *Engine) ReviewStatus(ctx context.Context, id uuid.UUID) (string, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return "", err
	}
	m, err := loadMarket(ctx, e.Repo, id)
	if err != nil {
		return "", err
	}
	return reviewStatus(m, snap.AgreementThreshold, snap.DisagreementLow, snap.DisagreementHigh), nil
}

// FinalizeSweep finalizes RESOLVING markets whose dispute window has
// elapsed and whose community signal does not demand an admin: either
// no signal was recorded or agreement met the threshold. Deadlocked and
// contested markets are left for adminOverride or a manual finalize.
func (e *Engine) FinalizeSweep(ctx context.Context, batch int) int {
	snap, err := e.snapshot(ctx)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("finalize sweep: params", zap.Error(err))
		}
		return 0
	}
	due, err := e.Repo.ListDueResolving(ctx, e.now(), batch)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("finalize sweep: list", zap.Error(err))
		}
		return 0
	}
	finalized := 0
	for _, m := range due {
		status := reviewStatus(&m, snap.AgreementThreshold, snap.DisagreementLow, snap.DisagreementHigh)
		if m.AgreePct != nil && status != ReviewAutoEligible {
			continue
		}
		unlock := e.locks.acquire(m.ID)
		err := e.finalizeLocked(ctx, "system", m.ID)
		unlock()
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warn("finalize sweep: market",
					zap.String("market_id", m.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		finalized++
	}
	return finalized
}

// ApprovalExpirySweep cancels PROPOSED markets whose approval window
// has lapsed. Bond disposition follows the reject policy.
func (e *Engine) ApprovalExpirySweep(ctx context.Context, batch int) int {
	snap, err := e.snapshot(ctx)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("approval sweep: params", zap.Error(err))
		}
		return 0
	}
	cutoff := e.now().Add(-snap.ApprovalWindow)
	expired, err := e.Repo.ListExpiredProposed(ctx, cutoff, batch)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("approval sweep: list", zap.Error(err))
		}
		return 0
	}
	cancelled := 0
	for _, m := range expired {
		if err := e.Reject(ctx, "system", m.ID, "approval window expired"); err != nil {
			if e.Logger != nil {
				e.Logger.Warn("approval sweep: market",
					zap.String("market_id", m.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		cancelled++
	}
	return cancelled
}
