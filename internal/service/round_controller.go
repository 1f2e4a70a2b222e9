package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"roundkeeper/internal/events"
	"roundkeeper/internal/ledger"
	"roundkeeper/internal/models"
	"roundkeeper/internal/oracle"
	"roundkeeper/internal/repository"
)

const (
	DefaultRoundDuration = 300 * time.Second
	DefaultCooldown      = 5 * time.Second
)

// Round phases derived from ledger views. Settling is never observed; it
// only exists while a settle transaction is in flight.
const (
	PhaseNoRound          = "no_round"
	PhaseActive           = "active"
	PhaseExpiredUnsettled = "expired_unsettled"
	PhaseSettled          = "settled"
)

type RoundState struct {
	Phase         string        `json:"phase"`
	Round         *ledger.Round `json:"round,omitempty"`
	Now           int64         `json:"now"`
	TimeRemaining int64         `json:"timeRemaining"`
}

type StartResult struct {
	TransactionHash string          `json:"transactionHash"`
	StartPrice      decimal.Decimal `json:"startPrice"`
	StartPriceMicro uint64          `json:"startPriceInMicroDollars"`
	DurationSecs    uint64          `json:"duration"`
	RoundID         uint64          `json:"roundId,omitempty"`
	Receipt         *ledger.Receipt `json:"receipt,omitempty"`
}

type SettleResult struct {
	RoundID         uint64          `json:"roundId"`
	EndPrice        decimal.Decimal `json:"endPrice"`
	EndPriceMicro   uint64          `json:"endPriceInMicroDollars"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Receipt         *ledger.Receipt `json:"receipt,omitempty"`
}

// Advance outcomes.
const (
	AdvanceStatusSettledAndStarted = "settled_and_started"
	AdvanceStatusAlreadySettled    = "already_settled"
)

type AdvanceResult struct {
	Status          string                    `json:"status"`
	RunID           string                    `json:"runId"`
	Resumed         bool                      `json:"resumed"`
	SettledRound    SettleResult              `json:"settledRound"`
	NextRound       *StartResult              `json:"nextRound,omitempty"`
	CooldownSeconds float64                   `json:"cooldownSeconds"`
	Checkpoint      *models.AdvanceCheckpoint `json:"-"`
}

type ResumeReport struct {
	Started []uint64 `json:"started"`
	Closed  []uint64 `json:"closed"`
	Pending []uint64 `json:"pending"`
}

// RoundController drives the round state machine. It never remembers a
// round; every decision starts from a fresh ledger read.
type RoundController struct {
	Keeper        *Keeper
	Oracle        PriceSource
	Checkpoints   CheckpointStore
	RoundDuration time.Duration
	Cooldown      time.Duration
	Now           func() time.Time

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRoundController(k *Keeper, source PriceSource, checkpoints CheckpointStore) *RoundController {
	if checkpoints == nil {
		checkpoints = NewMemoryCheckpoints()
	}
	return &RoundController{
		Keeper:        k,
		Oracle:        source,
		Checkpoints:   checkpoints,
		RoundDuration: DefaultRoundDuration,
		Cooldown:      DefaultCooldown,
		Now:           time.Now,
	}
}

// State reads the latest round and classifies it against now.
func (c *RoundController) State(ctx context.Context) (*RoundState, error) {
	k := c.Keeper
	now := c.now().Unix()
	id, err := k.Ledger.CurrentRoundID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current round id: %w", err)
	}
	if id == 0 {
		return &RoundState{Phase: PhaseNoRound, Now: now}, nil
	}
	r, err := k.round(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &RoundState{Round: r, Now: now}
	switch {
	case r.Settled:
		st.Phase = PhaseSettled
	case r.Expired(now):
		st.Phase = PhaseExpiredUnsettled
	default:
		st.Phase = PhaseActive
		st.TimeRemaining = r.ExpiryTimeSecs - now
	}
	return st, nil
}

// StartRound opens a round at startPriceMicro. It is only valid when no
// round exists or the latest one is settled.
func (c *RoundController) StartRound(ctx context.Context, startPriceMicro, durationSecs uint64) (*StartResult, error) {
	k := c.Keeper
	if err := k.requireSigner(); err != nil {
		return nil, err
	}
	ctx, release, err := k.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.startLocked(ctx, oracle.FromMicro(startPriceMicro), startPriceMicro, durationSecs)
}

// StartRoundAtMarket opens a round at the oracle's current price with the
// configured duration.
func (c *RoundController) StartRoundAtMarket(ctx context.Context) (*StartResult, error) {
	k := c.Keeper
	if err := k.requireSigner(); err != nil {
		return nil, err
	}
	ctx, release, err := k.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	price, err := c.fetchPrice(ctx)
	if err != nil {
		return nil, err
	}
	return c.startLocked(ctx, price.Value, price.Micro, c.durationSecs())
}

func (c *RoundController) startLocked(ctx context.Context, price decimal.Decimal, startPriceMicro, durationSecs uint64) (*StartResult, error) {
	k := c.Keeper
	if startPriceMicro == 0 {
		return nil, fmt.Errorf("start price must be > 0: %w", ErrInvalidArgument)
	}
	if durationSecs == 0 {
		return nil, fmt.Errorf("duration must be > 0: %w", ErrInvalidArgument)
	}
	id, err := k.Ledger.CurrentRoundID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current round id: %w", err)
	}
	if id > 0 {
		r, err := k.round(ctx, id)
		if err != nil {
			return nil, err
		}
		if !r.Settled {
			return nil, fmt.Errorf("round %d: %w", id, ErrRoundActive)
		}
	}

	receipt, err := k.submit(ctx, ledger.FnStartRound, ledger.U64(startPriceMicro), ledger.U64(durationSecs))
	if err != nil {
		return nil, fmt.Errorf("start round: %w", err)
	}
	res := &StartResult{
		TransactionHash: receipt.Hash,
		StartPrice:      price,
		StartPriceMicro: startPriceMicro,
		DurationSecs:    durationSecs,
		Receipt:         receipt,
	}
	if next, err := k.Ledger.CurrentRoundID(ctx); err == nil {
		res.RoundID = next
	}
	k.logger().Info("round started",
		zap.Uint64("round_id", res.RoundID),
		zap.Uint64("start_price_micro", startPriceMicro),
		zap.Uint64("duration_secs", durationSecs),
		zap.String("hash", receipt.Hash),
	)
	k.publish(events.Event{
		Type:    events.TypeRoundStarted,
		RoundID: res.RoundID,
		TxHash:  receipt.Hash,
		Detail:  map[string]any{"startPriceMicro": startPriceMicro, "durationSecs": durationSecs},
	})
	return res, nil
}

// SettleRound submits settle for an expired, unsettled round. An already
// settled round yields ErrAlreadySettled, which callers treat as success.
func (c *RoundController) SettleRound(ctx context.Context, roundID, endPriceMicro uint64) (*SettleResult, error) {
	k := c.Keeper
	if err := k.requireSigner(); err != nil {
		return nil, err
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
	if err := c.checkSettleable(r); err != nil {
		return nil, err
	}
	return c.settleLocked(ctx, roundID, endPriceMicro)
}

func (c *RoundController) checkSettleable(r *ledger.Round) error {
	if r.Settled {
		return fmt.Errorf("round %d: %w", r.ID, ErrAlreadySettled)
	}
	if now := c.now().Unix(); !r.Expired(now) {
		return fmt.Errorf("round %d expires in %ds: %w", r.ID, r.ExpiryTimeSecs-now, ErrRoundNotExpired)
	}
	return nil
}

func (c *RoundController) settleLocked(ctx context.Context, roundID, endPriceMicro uint64) (*SettleResult, error) {
	k := c.Keeper
	if endPriceMicro == 0 {
		return nil, fmt.Errorf("end price must be > 0: %w", ErrInvalidArgument)
	}
	receipt, err := k.submit(ctx, ledger.FnSettle, ledger.U64(roundID), ledger.U64(endPriceMicro))
	if err != nil {
		return nil, fmt.Errorf("settle round %d: %w", roundID, err)
	}
	k.logger().Info("round settled",
		zap.Uint64("round_id", roundID),
		zap.Uint64("end_price_micro", endPriceMicro),
		zap.String("hash", receipt.Hash),
	)
	k.publish(events.Event{
		Type:    events.TypeRoundSettled,
		RoundID: roundID,
		TxHash:  receipt.Hash,
		Detail:  map[string]any{"endPriceMicro": endPriceMicro},
	})
	return &SettleResult{
		RoundID:         roundID,
		EndPrice:        oracle.FromMicro(endPriceMicro),
		EndPriceMicro:   endPriceMicro,
		TransactionHash: receipt.Hash,
		Receipt:         receipt,
	}, nil
}

// AdvanceToNextRound settles roundID, waits out the cooldown, reads a fresh
// oracle price and starts the next round. A nil endPriceMicro settles at
// the oracle's current price.
//
// Progress is checkpointed per round: settling, settled_awaiting_start,
// completed. A settled round with a completed (or no) checkpoint returns
// ErrAlreadySettled; one stuck in settled_awaiting_start resumes at the
// start step. A settle that fails while the ledger shows the round settled
// moves on to the start step; failed is kept for rounds still unsettled.
func (c *RoundController) AdvanceToNextRound(ctx context.Context, roundID uint64, endPriceMicro *uint64) (*AdvanceResult, error) {
	k := c.Keeper
	if err := k.requireSigner(); err != nil {
		return nil, err
	}
	if roundID == 0 {
		return nil, fmt.Errorf("round id must be > 0: %w", ErrInvalidArgument)
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
	cp, err := c.Checkpoints.GetAdvanceCheckpoint(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %d: %w", roundID, err)
	}

	if r.Settled {
		if cp == nil || !resumable(cp.Stage) {
			done := &AdvanceResult{Status: AdvanceStatusAlreadySettled, SettledRound: settledFromRound(r, cp)}
			if cp != nil {
				done.RunID = cp.RunID
			}
			return done, fmt.Errorf("round %d: %w", roundID, ErrAlreadySettled)
		}
		res := &AdvanceResult{RunID: cp.RunID, Resumed: true, SettledRound: settledFromRound(r, cp)}
		k.logger().Info("resuming advance at start step", zap.Uint64("round_id", roundID), zap.String("run_id", cp.RunID))
		if err := c.completeStart(ctx, cp, res); err != nil {
			return res, err
		}
		return res, nil
	}
	if err := c.checkSettleable(r); err != nil {
		return nil, err
	}

	if endPriceMicro == nil {
		price, err := c.fetchPrice(ctx)
		if err != nil {
			return nil, err
		}
		endPriceMicro = &price.Micro
	}
	end := *endPriceMicro
	if end == 0 {
		return nil, fmt.Errorf("end price must be > 0: %w", ErrInvalidArgument)
	}

	if cp == nil {
		cp = &models.AdvanceCheckpoint{RoundID: roundID}
	}
	cp.RunID = uuid.NewString()
	cp.Stage = models.AdvanceStageSettling
	cp.FailedStep = ""
	cp.EndPriceMicro = &end
	cp.Attempts++
	cp.LastError = nil
	if err := c.Checkpoints.SaveAdvanceCheckpoint(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint %d: %w", roundID, err)
	}

	res := &AdvanceResult{RunID: cp.RunID, Checkpoint: cp}
	settled, err := c.settleLocked(ctx, roundID, end)
	if err != nil {
		// Another keeper may have settled first, or an unconfirmed settle
		// may have landed late. Either way the round is done.
		if current, rerr := k.round(ctx, roundID); rerr == nil && current.Settled {
			k.logger().Warn("settle failed but round is settled, continuing at start step",
				zap.Uint64("round_id", roundID), zap.String("run_id", cp.RunID), zap.Error(err))
			settledAt := c.now().UTC()
			cp.Stage = models.AdvanceStageSettledAwaitingStart
			cp.SettledAt = &settledAt
			c.save(ctx, cp)
			res.Resumed = true
			res.SettledRound = settledFromRound(current, cp)
			if err := c.completeStart(ctx, cp, res); err != nil {
				return res, err
			}
			return res, nil
		}
		var rejected *ledger.RejectedError
		if errors.As(err, &rejected) {
			cp.Stage = models.AdvanceStageFailed
		}
		c.fail(ctx, cp, "settle", err)
		return nil, err
	}
	res.SettledRound = *settled

	settledAt := c.now().UTC()
	cp.Stage = models.AdvanceStageSettledAwaitingStart
	cp.SettleTxHash = &settled.TransactionHash
	cp.SettledAt = &settledAt
	c.save(ctx, cp)

	if err := c.completeStart(ctx, cp, res); err != nil {
		return res, err
	}
	return res, nil
}

// completeStart runs the second saga step for a settled round. It closes
// the checkpoint without submitting when a newer round already exists.
func (c *RoundController) completeStart(ctx context.Context, cp *models.AdvanceCheckpoint, res *AdvanceResult) error {
	k := c.Keeper
	res.Checkpoint = cp
	res.Status = AdvanceStatusSettledAndStarted
	if cp.Stage == models.AdvanceStageSettling {
		// the settle committed even though its confirmation was not seen
		cp.Stage = models.AdvanceStageSettledAwaitingStart
		c.save(ctx, cp)
	}

	wait := c.cooldown()
	if cp.SettledAt != nil {
		wait -= c.now().Sub(*cp.SettledAt)
	}
	if wait > 0 {
		res.CooldownSeconds = wait.Seconds()
		k.logger().Info("cooldown before next round", zap.Uint64("round_id", cp.RoundID), zap.Duration("wait", wait))
		if err := c.wait(ctx, wait); err != nil {
			c.fail(ctx, cp, "start", err)
			return fmt.Errorf("cooldown: %w", err)
		}
	}

	latest, err := k.Ledger.CurrentRoundID(ctx)
	if err != nil {
		c.fail(ctx, cp, "start", err)
		return fmt.Errorf("read current round id: %w", err)
	}
	if latest > cp.RoundID {
		k.logger().Info("next round already exists, closing checkpoint",
			zap.Uint64("round_id", cp.RoundID), zap.Uint64("latest_round_id", latest))
		c.complete(ctx, cp, latest, nil)
		return nil
	}

	price, err := c.fetchPrice(ctx)
	if err != nil {
		c.fail(ctx, cp, "start", err)
		return err
	}
	started, err := c.startLocked(ctx, price.Value, price.Micro, c.durationSecs())
	if err != nil {
		c.fail(ctx, cp, "start", err)
		return err
	}
	res.NextRound = started
	c.complete(ctx, cp, started.RoundID, started)
	return nil
}

// Resume finishes advances interrupted after their settle step. It runs at
// startup and before every auto-manage evaluation.
func (c *RoundController) Resume(ctx context.Context) (*ResumeReport, error) {
	k := c.Keeper
	report := &ResumeReport{}
	asc := true
	pending, err := c.Checkpoints.ListAdvanceCheckpoints(ctx, repository.ListAdvanceCheckpointsParams{
		Stages: []string{models.AdvanceStageSettling, models.AdvanceStageSettledAwaitingStart},
		Asc:    &asc,
		Limit:  50,
	})
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(pending) == 0 {
		return report, nil
	}
	if err := k.requireSigner(); err != nil {
		return nil, err
	}
	ctx, release, err := k.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var errs []error
	for i := range pending {
		cp := &pending[i]
		r, err := k.round(ctx, cp.RoundID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !r.Settled {
			// A settle that never landed; the next advance retries it.
			report.Pending = append(report.Pending, cp.RoundID)
			continue
		}
		res := &AdvanceResult{RunID: cp.RunID, Resumed: true, SettledRound: settledFromRound(r, cp)}
		if err := c.completeStart(ctx, cp, res); err != nil {
			errs = append(errs, fmt.Errorf("resume round %d: %w", cp.RoundID, err))
			continue
		}
		if res.NextRound != nil {
			report.Started = append(report.Started, cp.RoundID)
		} else {
			report.Closed = append(report.Closed, cp.RoundID)
		}
		k.publish(events.Event{Type: events.TypeAdvanceResumed, RoundID: cp.RoundID, Detail: map[string]any{"started": res.NextRound != nil}})
	}
	return report, errors.Join(errs...)
}

func (c *RoundController) complete(ctx context.Context, cp *models.AdvanceCheckpoint, nextRoundID uint64, started *StartResult) {
	now := c.now().UTC()
	cp.Stage = models.AdvanceStageCompleted
	cp.FailedStep = ""
	cp.LastError = nil
	cp.CompletedAt = &now
	if nextRoundID > 0 {
		cp.NextRoundID = &nextRoundID
	}
	if started != nil {
		cp.StartPriceMicro = &started.StartPriceMicro
		cp.StartTxHash = &started.TransactionHash
	}
	c.save(ctx, cp)
}

func (c *RoundController) fail(ctx context.Context, cp *models.AdvanceCheckpoint, step string, err error) {
	msg := err.Error()
	cp.FailedStep = step
	cp.LastError = &msg
	c.Keeper.logger().Error("advance failed",
		zap.Uint64("round_id", cp.RoundID),
		zap.String("run_id", cp.RunID),
		zap.String("stage", cp.Stage),
		zap.String("step", step),
		zap.Error(err),
	)
	c.save(ctx, cp)
	c.Keeper.publish(events.Event{
		Type:    events.TypeAdvanceFailed,
		RoundID: cp.RoundID,
		Detail:  map[string]any{"stage": cp.Stage, "step": step, "error": msg},
	})
}

// save is best effort once the settle transaction exists; losing the row
// only costs the recovery shortcut.
func (c *RoundController) save(ctx context.Context, cp *models.AdvanceCheckpoint) {
	if err := c.Checkpoints.SaveAdvanceCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
		c.Keeper.logger().Error("save checkpoint failed", zap.Uint64("round_id", cp.RoundID), zap.Error(err))
	}
}

func (c *RoundController) fetchPrice(ctx context.Context) (oracle.Price, error) {
	if c.Oracle == nil {
		return oracle.Price{}, fmt.Errorf("price oracle not configured: %w", oracle.ErrUnavailable)
	}
	price, err := c.Oracle.FetchCurrentPrice(ctx)
	if err != nil {
		return oracle.Price{}, fmt.Errorf("fetch current price: %w", err)
	}
	return price, nil
}

func (c *RoundController) durationSecs() uint64 {
	d := c.RoundDuration
	if d <= 0 {
		d = DefaultRoundDuration
	}
	return uint64(d / time.Second)
}

func (c *RoundController) cooldown() time.Duration {
	if c.Cooldown < 0 {
		return 0
	}
	return c.Cooldown
}

func (c *RoundController) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *RoundController) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	return ledger.Sleep(ctx, d)
}

func resumable(stage string) bool {
	return stage == models.AdvanceStageSettling || stage == models.AdvanceStageSettledAwaitingStart
}

func settledFromRound(r *ledger.Round, cp *models.AdvanceCheckpoint) SettleResult {
	out := SettleResult{RoundID: r.ID}
	if r.EndPrice != nil {
		out.EndPriceMicro = *r.EndPrice
		out.EndPrice = oracle.FromMicro(*r.EndPrice)
	}
	if cp != nil && cp.SettleTxHash != nil {
		out.TransactionHash = *cp.SettleTxHash
	}
	return out
}
