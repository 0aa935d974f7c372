package market

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"predmarket/internal/models"
)

func TestConcurrentBetsConserveLedger(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	m := mustCreate(t, env, "alice")
	mustActivate(t, env, m)

	const workers = 16
	const betsPerWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*betsPerWorker)
	for i := 0; i < workers; i++ {
		outcome := models.Outcome1
		if i%2 == 1 {
			outcome = models.Outcome2
		}
		wg.Add(1)
		go func(user string, outcome int16) {
			defer wg.Done()
			for j := 0; j < betsPerWorker; j++ {
				if _, err := env.engine.PlaceBet(ctx, user, m.ID, outcome, decimal.NewFromInt(1000)); err != nil {
					errs <- err
				}
			}
		}(string(rune('a'+i))+"-bettor", outcome)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent bet: %v", err)
	}

	got, err := env.engine.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BetCount != workers*betsPerWorker {
		t.Fatalf("bet count = %d, want %d", got.BetCount, workers*betsPerWorker)
	}
	// 80 bets of 1000: fee 25+15 each, net 960 into the pools.
	if want := decimal.NewFromInt(76800); !got.Pool1.Add(got.Pool2).Equal(want) {
		t.Fatalf("pools = %s, want %s", got.Pool1.Add(got.Pool2), want)
	}
	if want := decimal.NewFromInt(2000); !got.ProtocolFees.Equal(want) {
		t.Fatalf("protocol fees = %s, want %s", got.ProtocolFees, want)
	}
	if want := decimal.NewFromInt(81000); !got.LedgerBalance.Equal(want) {
		t.Fatalf("ledger balance = %s, want %s", got.LedgerBalance, want)
	}
	conservation(t, env, m)
}

func TestConcurrentClaimsPayOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	m := finalizedMarket(t, env)

	const callers = 8
	var wg sync.WaitGroup
	paid := make(chan decimal.Decimal, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			amount, err := env.engine.Claim(ctx, "bob", m.ID)
			if err != nil {
				errs <- err
				return
			}
			paid <- amount
		}()
	}
	wg.Wait()
	close(paid)
	close(errs)

	if len(paid) != 1 {
		t.Fatalf("successful claims = %d, want 1", len(paid))
	}
	if amount := <-paid; !amount.Equal(decimal.NewFromInt(14400)) {
		t.Fatalf("payout = %s, want 14400", amount)
	}
	for err := range errs {
		if !errors.Is(err, ErrAlreadyClaimed) {
			t.Fatalf("losing claim: %v", err)
		}
	}

	transfers, err := env.repo.ListPendingTransfers(ctx, 100)
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	payouts := 0
	for _, tr := range transfers {
		if tr.Kind == models.TransferKindPayout {
			payouts++
		}
	}
	if payouts != 1 {
		t.Fatalf("payout transfers = %d, want 1", payouts)
	}

	got, err := env.engine.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// 1000 bond + 15000 staked - 14400 paid out once.
	if want := decimal.NewFromInt(1600); !got.LedgerBalance.Equal(want) {
		t.Fatalf("ledger balance = %s, want %s", got.LedgerBalance, want)
	}
}
