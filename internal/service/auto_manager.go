package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"roundkeeper/internal/events"
)

const (
	ActionNoRoundsExist     = "no_rounds_exist"
	ActionAlreadySettled    = "already_settled"
	ActionStillActive       = "still_active"
	ActionSettledAndStarted = "settled_and_started"
)

type Evaluation struct {
	Action         string         `json:"action"`
	Message        string         `json:"message"`
	RoundID        uint64         `json:"roundId,omitempty"`
	TimeRemaining  int64          `json:"timeRemaining,omitempty"`
	ExpiryTimeSecs int64          `json:"expiryTimeSecs,omitempty"`
	Advance        *AdvanceResult `json:"data,omitempty"`
	Resumed        *ResumeReport  `json:"resumed,omitempty"`
}

// AutoManager is one poll of the round lifecycle. It is safe to call
// repeatedly: once a round has been advanced the next call sees the fresh
// round and reports still_active.
type AutoManager struct {
	Rounds *RoundController
	Now    func() time.Time
}

func NewAutoManager(rounds *RoundController) *AutoManager {
	return &AutoManager{Rounds: rounds}
}

func (m *AutoManager) Evaluate(ctx context.Context) (*Evaluation, error) {
	if m == nil || m.Rounds == nil || m.Rounds.Keeper == nil {
		return nil, fmt.Errorf("auto manager not configured")
	}
	k := m.Rounds.Keeper
	eval, err := m.evaluate(ctx)
	if eval != nil {
		k.Metrics.ObserveAutoManage(eval.Action)
		k.publish(events.Event{Type: events.TypeAutoManage, RoundID: eval.RoundID, Detail: map[string]any{"action": eval.Action}})
	} else if err != nil {
		k.Metrics.ObserveAutoManage("error")
	}
	return eval, err
}

func (m *AutoManager) evaluate(ctx context.Context) (*Evaluation, error) {
	k := m.Rounds.Keeper
	out := &Evaluation{}

	resumed, err := m.Rounds.Resume(ctx)
	if err != nil {
		k.logger().Warn("advance recovery failed", zap.Error(err))
	} else if len(resumed.Started)+len(resumed.Closed) > 0 {
		out.Resumed = resumed
	}

	id, err := k.Ledger.CurrentRoundID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current round id: %w", err)
	}
	if id == 0 {
		out.Action = ActionNoRoundsExist
		out.Message = "Please start the first round manually"
		return out, ErrNoRoundsExist
	}
	r, err := k.round(ctx, id)
	if err != nil {
		return nil, err
	}
	out.RoundID = id
	out.ExpiryTimeSecs = r.ExpiryTimeSecs
	now := m.now().Unix()

	switch {
	case r.Settled:
		out.Action = ActionAlreadySettled
		out.Message = "Round already settled"
		return out, nil
	case !r.Expired(now):
		out.Action = ActionStillActive
		out.Message = "Round still active"
		out.TimeRemaining = r.ExpiryTimeSecs - now
		return out, nil
	}

	k.logger().Info("round expired, settling and starting next", zap.Uint64("round_id", id))
	adv, err := m.Rounds.AdvanceToNextRound(ctx, id, nil)
	if errors.Is(err, ErrAlreadySettled) {
		out.Action = ActionAlreadySettled
		out.Message = "Round already settled"
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("advance round %d: %w", id, err)
	}
	out.Action = ActionSettledAndStarted
	out.Message = "Round auto-settled and next round started"
	out.Advance = adv
	return out, nil
}

// now defaults to the controller's clock so both agree on expiry.
func (m *AutoManager) now() time.Time {
	if m.Now == nil {
		return m.Rounds.now()
	}
	return m.Now()
}
