package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"roundkeeper/internal/events"
	"roundkeeper/internal/ledger"
)

const (
	ClaimStatusClaimed    = "claimed"
	ClaimStatusNoWinnings = "no_winnings"

	DefaultClaimLookback = 20
)

type ClaimResult struct {
	Status          string          `json:"status"`
	RoundID         uint64          `json:"roundId"`
	UserAddress     string          `json:"userAddress"`
	Payout          uint64          `json:"payout"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Receipt         *ledger.Receipt `json:"receipt,omitempty"`
}

type ClaimableReward struct {
	RoundID    uint64 `json:"roundId"`
	Amount     uint64 `json:"amount"`
	Stake      uint64 `json:"stake"`
	Side       string `json:"side"`
	Profit     int64  `json:"profit"`
	StartPrice uint64 `json:"startPrice"`
	EndPrice   uint64 `json:"endPrice"`
}

type ClaimableRewards struct {
	UserAddress string            `json:"userAddress"`
	Count       int               `json:"count"`
	TotalAmount uint64            `json:"totalAmount"`
	Rewards     []ClaimableReward `json:"rewards"`
}

// ClaimEvaluator claims winnings on a user's behalf from the keeper
// identity, which the module trusts to claim for any address.
type ClaimEvaluator struct {
	Keeper   *Keeper
	Settings *SystemSettingsService
	Lookback int
}

func NewClaimEvaluator(k *Keeper, settings *SystemSettingsService) *ClaimEvaluator {
	return &ClaimEvaluator{Keeper: k, Settings: settings, Lookback: DefaultClaimLookback}
}

// Claim checks every precondition through views before submitting, so a
// doomed claim never costs a ledger write. Zero payout is a normal
// no_winnings result.
func (e *ClaimEvaluator) Claim(ctx context.Context, roundID uint64, user string) (*ClaimResult, error) {
	k := e.Keeper
	if err := k.requireSigner(); err != nil {
		return nil, err
	}
	if roundID == 0 {
		return nil, fmt.Errorf("round id must be > 0: %w", ErrInvalidArgument)
	}
	user, err := ledger.NormalizeAddress(user)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	if !e.Settings.IsEnabled(ctx, FeatureClaimRelay, true) {
		return nil, fmt.Errorf("claim relay: %w", ErrFeatureDisabled)
	}

	ctx, release, err := k.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := k.round(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !r.Settled {
		k.Metrics.ObserveClaim("not_settled")
		return nil, fmt.Errorf("round %d: %w", roundID, ErrRoundNotSettled)
	}
	bet, err := k.Ledger.GetUserBet(ctx, roundID, user)
	if errors.Is(err, ledger.ErrNotFound) {
		k.Metrics.ObserveClaim("no_bet")
		return nil, fmt.Errorf("round %d user %s: %w", roundID, user, ErrNoBet)
	}
	if err != nil {
		return nil, fmt.Errorf("read bet: %w", err)
	}
	payout, err := k.Ledger.PotentialPayout(ctx, roundID, user)
	if err != nil {
		return nil, fmt.Errorf("read potential payout: %w", err)
	}
	res := &ClaimResult{RoundID: roundID, UserAddress: user, Payout: payout}
	if payout == 0 {
		k.Metrics.ObserveClaim(ClaimStatusNoWinnings)
		res.Status = ClaimStatusNoWinnings
		return res, nil
	}
	if bet.Claimed {
		k.Metrics.ObserveClaim("already_claimed")
		return nil, fmt.Errorf("round %d user %s: %w", roundID, user, ErrAlreadyClaimed)
	}

	receipt, err := k.submit(ctx, ledger.FnClaim, ledger.U64(roundID), user)
	if err != nil {
		k.Metrics.ObserveClaim("failed")
		return nil, fmt.Errorf("claim round %d for %s: %w", roundID, user, err)
	}
	k.Metrics.ObserveClaim(ClaimStatusClaimed)
	res.Status = ClaimStatusClaimed
	res.TransactionHash = receipt.Hash
	res.Receipt = receipt
	k.logger().Info("winnings claimed",
		zap.Uint64("round_id", roundID),
		zap.String("user", user),
		zap.Uint64("payout", payout),
		zap.String("hash", receipt.Hash),
	)
	k.publish(events.Event{
		Type:    events.TypeClaimSubmitted,
		RoundID: roundID,
		TxHash:  receipt.Hash,
		Detail:  map[string]any{"user": user, "payout": payout},
	})
	return res, nil
}

// Claimable scans the latest lookback rounds, newest first, for settled,
// unclaimed bets with a positive payout. Rounds that fail to read are
// skipped.
func (e *ClaimEvaluator) Claimable(ctx context.Context, user string, lookback int) (*ClaimableRewards, error) {
	k := e.Keeper
	if k == nil || k.Ledger == nil {
		return nil, fmt.Errorf("keeper ledger not configured")
	}
	user, err := ledger.NormalizeAddress(user)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	if lookback <= 0 {
		lookback = e.Lookback
	}
	if lookback <= 0 {
		lookback = DefaultClaimLookback
	}
	current, err := k.Ledger.CurrentRoundID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current round id: %w", err)
	}
	out := &ClaimableRewards{UserAddress: user, Rewards: []ClaimableReward{}}
	var oldest uint64 = 1
	if current > uint64(lookback) {
		oldest = current - uint64(lookback) + 1
	}
	for id := current; id >= oldest && id > 0; id-- {
		reward, ok := e.claimable(ctx, id, user)
		if !ok {
			continue
		}
		out.Rewards = append(out.Rewards, reward)
		out.Count++
		out.TotalAmount += reward.Amount
	}
	return out, nil
}

func (e *ClaimEvaluator) claimable(ctx context.Context, roundID uint64, user string) (ClaimableReward, bool) {
	k := e.Keeper
	bet, err := k.Ledger.GetUserBet(ctx, roundID, user)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			k.logger().Debug("skip round in claimable scan", zap.Uint64("round_id", roundID), zap.Error(err))
		}
		return ClaimableReward{}, false
	}
	if bet.Claimed {
		return ClaimableReward{}, false
	}
	r, err := k.Ledger.GetRound(ctx, roundID)
	if err != nil || !r.Settled {
		return ClaimableReward{}, false
	}
	payout, err := k.Ledger.PotentialPayout(ctx, roundID, user)
	if err != nil || payout == 0 {
		return ClaimableReward{}, false
	}
	reward := ClaimableReward{
		RoundID:    roundID,
		Amount:     payout,
		Stake:      bet.Amount,
		Side:       bet.Side(),
		Profit:     int64(payout) - int64(bet.Amount),
		StartPrice: r.StartPrice,
	}
	if r.EndPrice != nil {
		reward.EndPrice = *r.EndPrice
	}
	return reward, true
}
