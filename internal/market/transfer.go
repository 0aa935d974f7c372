package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"predmarket/internal/models"
	"predmarket/internal/repository"
)

// Sink executes an authorized outbound transfer against the external
// funds system. Execution happens outside any ledger transaction; the
// authorization already happened when the Transfer row was written.
type Sink interface {
	Execute(ctx context.Context, t models.Transfer) error
}

// LogSink is the default sink; it records the transfer and succeeds.
// Deployments wire a real settlement adapter in its place.
type LogSink struct {
	Logger *zap.Logger
}

func (s *LogSink) Execute(_ context.Context, t models.Transfer) error {
	if s.Logger != nil {
		s.Logger.Info("transfer executed",
			zap.Uint64("transfer_id", t.ID),
			zap.String("market_id", t.MarketID.String()),
			zap.String("recipient", t.Recipient),
			zap.String("amount", t.Amount.String()),
			zap.String("kind", t.Kind),
		)
	}
	return nil
}

// maxTransferAttempts is how many executions we try before parking a
// transfer as failed for manual inspection.
const maxTransferAttempts = 5

// RunTransfers drains pending transfers through the sink. A failed
// execution records the error and stays pending for the next run until
// the attempt limit; the authorizing state change is untouched either
// way.
func (e *Engine) RunTransfers(ctx context.Context, sink Sink, batch int) (executed, failed int) {
	pending, err := e.Repo.ListPendingTransfers(ctx, batch)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("transfer run: list", zap.Error(err))
		}
		return 0, 0
	}
	for _, t := range pending {
		t.Attempts++
		execErr := sink.Execute(ctx, t)
		if execErr != nil {
			if t.Attempts >= maxTransferAttempts {
				t.Status = models.TransferFailed
			}
			msg := execErr.Error()
			t.LastError = &msg
			if err := e.Repo.UpdateTransfer(ctx, &t); err != nil && e.Logger != nil {
				e.Logger.Warn("transfer run: update", zap.Uint64("transfer_id", t.ID), zap.Error(err))
			}
			failed++
			continue
		}
		now := e.now()
		t.Status = models.TransferExecuted
		t.ExecutedAt = &now
		t.LastError = nil

		var ev models.MarketEvent
		err := e.Repo.InTx(ctx, func(r repository.Repository) error {
			if err := r.UpdateTransfer(ctx, &t); err != nil {
				return fmt.Errorf("update transfer: %w", err)
			}
			ev = newEvent(t.MarketID, models.EventTransferExecuted, "system", map[string]any{
				"transfer_id": t.ID,
				"recipient":   t.Recipient,
				"amount":      t.Amount,
				"kind":        t.Kind,
			})
			return r.InsertEvent(ctx, &ev)
		})
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warn("transfer run: record", zap.Uint64("transfer_id", t.ID), zap.Error(err))
			}
			continue
		}
		e.publish(ev)
		executed++
	}
	return executed, failed
}
