package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CurrentRoundID returns the latest round id, or 0 when no round has started.
func (c *Client) CurrentRoundID(ctx context.Context) (uint64, error) {
	out, err := c.View(ctx, ViewCurrentRoundID)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("view %s returned no values", ViewCurrentRoundID)
	}
	return decodeU64(out[0])
}

// GetRound returns ErrNotFound when the module aborts for an unknown id.
func (c *Client) GetRound(ctx context.Context, roundID uint64) (*Round, error) {
	out, err := c.View(ctx, ViewGetRound, c.cfg.ModuleAddress, U64(roundID))
	if err != nil {
		if IsMoveAbort(err) {
			return nil, fmt.Errorf("round %d: %w", roundID, ErrNotFound)
		}
		return nil, err
	}
	r, err := decodeRound(out)
	if err != nil {
		return nil, fmt.Errorf("decode round %d: %w", roundID, err)
	}
	r.ID = roundID
	return r, nil
}

// GetUserBet returns ErrNotFound when user has no stake in the round.
func (c *Client) GetUserBet(ctx context.Context, roundID uint64, user string) (*Bet, error) {
	out, err := c.View(ctx, ViewGetUserBet, c.cfg.ModuleAddress, U64(roundID), user)
	if err != nil {
		if IsMoveAbort(err) {
			return nil, fmt.Errorf("bet %d/%s: %w", roundID, user, ErrNotFound)
		}
		return nil, err
	}
	b, err := decodeBet(out)
	if err != nil {
		return nil, fmt.Errorf("decode bet %d/%s: %w", roundID, user, err)
	}
	if b.Amount == 0 {
		return nil, fmt.Errorf("bet %d/%s: %w", roundID, user, ErrNotFound)
	}
	b.RoundID = roundID
	b.Bettor = user
	return b, nil
}

func (c *Client) PotentialPayout(ctx context.Context, roundID uint64, user string) (uint64, error) {
	out, err := c.View(ctx, ViewPotentialPayout, c.cfg.ModuleAddress, U64(roundID), user)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("view %s returned no values", ViewPotentialPayout)
	}
	return decodeU64(out[0])
}

func (c *Client) ContractInitialized(ctx context.Context) (bool, error) {
	return c.ResourceExists(ctx, c.cfg.ModuleAddress, c.Function(StateResource))
}

type roundStruct struct {
	StartPrice     json.RawMessage `json:"start_price"`
	ExpiryTimeSecs json.RawMessage `json:"expiry_time_secs"`
	Settled        json.RawMessage `json:"settled"`
	EndPrice       json.RawMessage `json:"end_price"`
}

// decodeRound accepts either a single struct value or the positional form
// [start_price, expiry_time_secs, settled, end_price].
func decodeRound(out []json.RawMessage) (*Round, error) {
	var fields [4]json.RawMessage
	switch {
	case len(out) == 1 && isObject(out[0]):
		var s roundStruct
		if err := json.Unmarshal(out[0], &s); err != nil {
			return nil, err
		}
		fields = [4]json.RawMessage{s.StartPrice, s.ExpiryTimeSecs, s.Settled, s.EndPrice}
	case len(out) >= 3:
		copy(fields[:], out)
	default:
		return nil, fmt.Errorf("unexpected round shape (%d values)", len(out))
	}
	start, err := decodeU64(fields[0])
	if err != nil {
		return nil, fmt.Errorf("start_price: %w", err)
	}
	expiry, err := decodeU64(fields[1])
	if err != nil {
		return nil, fmt.Errorf("expiry_time_secs: %w", err)
	}
	settled, err := decodeBool(fields[2])
	if err != nil {
		return nil, fmt.Errorf("settled: %w", err)
	}
	end, err := decodeOptionU64(fields[3])
	if err != nil {
		return nil, fmt.Errorf("end_price: %w", err)
	}
	r := &Round{StartPrice: start, ExpiryTimeSecs: int64(expiry), Settled: settled}
	if settled {
		r.EndPrice = end
	}
	return r, nil
}

type betStruct struct {
	Amount  json.RawMessage `json:"amount"`
	SideUp  json.RawMessage `json:"side_up"`
	Claimed json.RawMessage `json:"claimed"`
}

func decodeBet(out []json.RawMessage) (*Bet, error) {
	var fields [3]json.RawMessage
	switch {
	case len(out) == 1 && isObject(out[0]):
		var s betStruct
		if err := json.Unmarshal(out[0], &s); err != nil {
			return nil, err
		}
		fields = [3]json.RawMessage{s.Amount, s.SideUp, s.Claimed}
	case len(out) >= 3:
		copy(fields[:], out)
	default:
		return nil, fmt.Errorf("unexpected bet shape (%d values)", len(out))
	}
	amount, err := decodeU64(fields[0])
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	up, err := decodeBool(fields[1])
	if err != nil {
		return nil, fmt.Errorf("side_up: %w", err)
	}
	claimed, err := decodeBool(fields[2])
	if err != nil {
		return nil, fmt.Errorf("claimed: %w", err)
	}
	return &Bet{Amount: amount, SideUp: up, Claimed: claimed}, nil
}

func isObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}

// decodeU64 accepts the node's string encoding as well as bare numbers.
func decodeU64(raw json.RawMessage) (uint64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing u64")
	}
	return strconv.ParseUint(s, 10, 64)
}

func decodeBool(raw json.RawMessage) (bool, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return false, fmt.Errorf("missing bool")
	}
	return strconv.ParseBool(s)
}

// decodeOptionU64 handles Move's Option encoding {"vec":[...]} along with
// null and plain values.
func decodeOptionU64(raw json.RawMessage) (*uint64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if isObject(raw) {
		var opt struct {
			Vec []json.RawMessage `json:"vec"`
		}
		if err := json.Unmarshal(raw, &opt); err != nil {
			return nil, err
		}
		if len(opt.Vec) == 0 {
			return nil, nil
		}
		raw = opt.Vec[0]
	}
	v, err := decodeU64(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
