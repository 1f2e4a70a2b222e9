package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"roundkeeper/internal/ledger"
)

const (
	alice = "0xa11ce"
	bob   = "0xb0b"
)

// settledRoundWithBets returns a settled round where alice bet up and won
// against bob's equal down stake.
func settledRoundWithBets(t *testing.T, h *harness) uint64 {
	t.Helper()
	id := h.chain.AddRound(8123456, testStart.Add(time.Minute), false, 0)
	if err := h.chain.PlaceBet(id, alice, 100000000, true); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if err := h.chain.PlaceBet(id, bob, 100000000, false); err != nil {
		t.Fatalf("bet: %v", err)
	}
	h.chain.Advance(time.Minute)
	end := uint64(8500000)
	if _, err := h.rounds.SettleRound(context.Background(), id, end); err != nil {
		t.Fatalf("settle: %v", err)
	}
	return id
}

func TestClaim_Winner(t *testing.T) {
	h := newHarness(t)
	id := settledRoundWithBets(t, h)
	e := NewClaimEvaluator(h.keeper, nil)

	res, err := e.Claim(context.Background(), id, alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Status != ClaimStatusClaimed || res.Payout != 196000000 || res.TransactionHash == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.chain.Paid(alice) != 196000000 {
		t.Fatalf("unexpected paid amount %d", h.chain.Paid(alice))
	}
}

func TestClaim_NoWinningsSubmitsNothing(t *testing.T) {
	h := newHarness(t)
	id := settledRoundWithBets(t, h)
	before := h.chain.TotalSubmissions()

	res, err := NewClaimEvaluator(h.keeper, nil).Claim(context.Background(), id, bob)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Status != ClaimStatusNoWinnings || res.Payout != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.chain.TotalSubmissions() != before {
		t.Fatalf("no_winnings must not submit")
	}
}

func TestClaim_AlreadyClaimedRejectedBeforeSubmission(t *testing.T) {
	h := newHarness(t)
	id := settledRoundWithBets(t, h)
	e := NewClaimEvaluator(h.keeper, nil)
	if _, err := e.Claim(context.Background(), id, alice); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	before := h.chain.Submissions(ledger.FnClaim)

	_, err := e.Claim(context.Background(), id, alice)
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if h.chain.Submissions(ledger.FnClaim) != before {
		t.Fatalf("already claimed must not submit")
	}
}

func TestClaim_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := NewClaimEvaluator(h.keeper, nil)
	active := h.chain.AddRound(8123456, testStart.Add(time.Minute), false, 0)
	if err := h.chain.PlaceBet(active, alice, 1, true); err != nil {
		t.Fatalf("bet: %v", err)
	}

	if _, err := e.Claim(ctx, active, alice); !errors.Is(err, ErrRoundNotSettled) {
		t.Fatalf("expected ErrRoundNotSettled, got %v", err)
	}
	if _, err := e.Claim(ctx, 42, alice); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
	if _, err := e.Claim(ctx, active, "not-an-address"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	h.chain.Advance(time.Minute)
	if _, err := h.rounds.SettleRound(ctx, active, 9000000); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := e.Claim(ctx, active, bob); !errors.Is(err, ErrNoBet) {
		t.Fatalf("expected ErrNoBet, got %v", err)
	}
	if n := h.chain.Submissions(ledger.FnClaim); n != 0 {
		t.Fatalf("expected no claim submissions, got %d", n)
	}
}

func TestClaim_RelaySwitchOff(t *testing.T) {
	h := newHarness(t)
	id := settledRoundWithBets(t, h)
	settings := &SystemSettingsService{Repo: newStubRepo()}
	if err := settings.SetEnabled(context.Background(), FeatureClaimRelay, false, "ops"); err != nil {
		t.Fatalf("set switch: %v", err)
	}
	_, err := NewClaimEvaluator(h.keeper, settings).Claim(context.Background(), id, alice)
	if !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
}

func TestClaimable_ScansRecentRounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	won := settledRoundWithBets(t, h)

	lost, _ := h.rounds.StartRound(ctx, 8500000, 60)
	if err := h.chain.PlaceBet(lost.RoundID, alice, 50000000, true); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if err := h.chain.PlaceBet(lost.RoundID, bob, 50000000, false); err != nil {
		t.Fatalf("bet: %v", err)
	}
	h.chain.Advance(time.Minute)
	if _, err := h.rounds.SettleRound(ctx, lost.RoundID, 8400000); err != nil {
		t.Fatalf("settle: %v", err)
	}

	e := NewClaimEvaluator(h.keeper, nil)
	got, err := e.Claimable(ctx, alice, 0)
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if got.Count != 1 || got.TotalAmount != 196000000 || got.Rewards[0].RoundID != won {
		t.Fatalf("unexpected alice rewards: %+v", got)
	}
	if r := got.Rewards[0]; r.Side != "up" || r.Stake != 100000000 || r.Profit != 96000000 || r.EndPrice != 8500000 {
		t.Fatalf("unexpected reward detail: %+v", r)
	}

	bobs, err := e.Claimable(ctx, bob, 0)
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if bobs.Count != 1 || bobs.Rewards[0].RoundID != lost.RoundID {
		t.Fatalf("unexpected bob rewards: %+v", bobs)
	}

	narrow, _ := e.Claimable(ctx, alice, 1)
	if narrow.Count != 0 {
		t.Fatalf("lookback 1 should only see the latest round: %+v", narrow)
	}
}
