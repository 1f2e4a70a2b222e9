package service

import (
	"context"
	"testing"
	"time"

	"roundkeeper/internal/ledger"
	"roundkeeper/internal/ledger/ledgertest"
	"roundkeeper/internal/oracle"
)

func TestKeeperLifecycle_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	chain := ledgertest.NewChain(testStart)
	h.chain = chain
	h.keeper.Ledger = chain
	sub := ledger.NewSubmitter(chain, nil)
	sub.Backoff = 0
	h.keeper.Submitter = sub
	h.rounds.Now = chain.Now
	h.rounds.sleep = func(_ context.Context, d time.Duration) error {
		chain.Advance(d)
		return nil
	}

	if _, err := (&ContractService{Keeper: h.keeper}).Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	h.prices.prices = []oracle.Price{mustPrice(t, "8.123456")}
	started, err := h.rounds.StartRoundAtMarket(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	r, _ := chain.GetRound(ctx, started.RoundID)
	if r.StartPrice != 8123456 {
		t.Fatalf("start price = %d, want 8123456", r.StartPrice)
	}

	if err := chain.PlaceBet(started.RoundID, alice, 100000000, true); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if err := chain.PlaceBet(started.RoundID, bob, 100000000, false); err != nil {
		t.Fatalf("bet: %v", err)
	}

	m := NewAutoManager(h.rounds)
	eval, err := m.Evaluate(ctx)
	if err != nil || eval.Action != ActionStillActive || eval.TimeRemaining != 300 {
		t.Fatalf("expected still_active with 300s, got %+v %v", eval, err)
	}

	chain.Advance(300 * time.Second)
	h.prices.prices = []oracle.Price{mustPrice(t, "8.500000"), mustPrice(t, "8.51")}
	eval, err = m.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Action != ActionSettledAndStarted {
		t.Fatalf("expected settled_and_started, got %+v", eval)
	}
	r, _ = chain.GetRound(ctx, started.RoundID)
	if !r.Settled || r.EndPrice == nil || *r.EndPrice != 8500000 {
		t.Fatalf("end price = %v, want 8500000", r.EndPrice)
	}

	claims := NewClaimEvaluator(h.keeper, nil)
	res, err := claims.Claim(ctx, started.RoundID, alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// 2x pool pays 200000000 less the 2% fee.
	if res.Payout != 196000000 || chain.Paid(alice) != 196000000 {
		t.Fatalf("payout = %d paid = %d, want 196000000", res.Payout, chain.Paid(alice))
	}
	lost, err := claims.Claim(ctx, started.RoundID, bob)
	if err != nil || lost.Status != ClaimStatusNoWinnings {
		t.Fatalf("expected no_winnings for bob, got %+v %v", lost, err)
	}

	eval, err = m.Evaluate(ctx)
	if err != nil || eval.Action != ActionStillActive || eval.RoundID != started.RoundID+1 {
		t.Fatalf("expected the next round active, got %+v %v", eval, err)
	}
}
