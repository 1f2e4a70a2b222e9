// Package ledgertest provides an in-memory betting ledger for tests. It
// checks signatures, enforces sequence numbers per sender and executes the
// module's entry functions when a transaction is submitted.
package ledgertest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"roundkeeper/internal/ledger"
)

const (
	ModuleAddress = "0xbe7"
	ChainID       = 4
)

type bet struct {
	amount  uint64
	up      bool
	claimed bool
}

type Chain struct {
	mu sync.Mutex

	now         time.Time
	initialized bool
	feeBps      uint64
	treasury    string
	rounds      []*ledger.Round
	bets        map[uint64]map[string]*bet
	seq         map[string]uint64
	receipts    map[string]*ledger.Receipt
	counts      map[string]int
	txCounter   int
	staleLeft   int
	failNext    map[string]error
	hangWait    bool
	paid        map[string]uint64
}

func NewChain(now time.Time) *Chain {
	return &Chain{
		now:      now,
		bets:     map[uint64]map[string]*bet{},
		seq:      map[string]uint64{},
		receipts: map[string]*ledger.Receipt{},
		counts:   map[string]int{},
		failNext: map[string]error{},
		paid:     map[string]uint64{},
	}
}

func (c *Chain) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Chain) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Chain) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// InjectStale makes the next n submissions lose a race against a concurrent
// commit from the same sender.
func (c *Chain) InjectStale(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staleLeft = n
}

// FailNext makes the next submission of function fail with err.
func (c *Chain) FailNext(function string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext[function] = err
}

// HangConfirmations keeps every transaction pending until the waiter gives up.
func (c *Chain) HangConfirmations(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangWait = v
}

// Submissions counts accepted submissions of function.
func (c *Chain) Submissions(function string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[function]
}

func (c *Chain) TotalSubmissions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Initialize sets contract state directly, without a transaction.
func (c *Chain) Initialize(feeBps uint64, treasury string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = true
	c.feeBps = feeBps
	c.treasury = treasury
}

// AddRound appends a round directly and returns its id.
func (c *Chain) AddRound(startPrice uint64, expiry time.Time, settled bool, endPrice uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &ledger.Round{ID: uint64(len(c.rounds) + 1), StartPrice: startPrice, ExpiryTimeSecs: expiry.Unix(), Settled: settled}
	if settled {
		v := endPrice
		r.EndPrice = &v
	}
	c.rounds = append(c.rounds, r)
	return r.ID
}

func (c *Chain) PlaceBet(roundID uint64, user string, amount uint64, up bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.round(roundID)
	if r == nil {
		return fmt.Errorf("round %d does not exist", roundID)
	}
	if r.Settled || c.now.Unix() >= r.ExpiryTimeSecs {
		return fmt.Errorf("round %d is closed", roundID)
	}
	user = strings.ToLower(user)
	if c.bets[roundID] == nil {
		c.bets[roundID] = map[string]*bet{}
	}
	if c.bets[roundID][user] != nil {
		return fmt.Errorf("user already bet in round %d", roundID)
	}
	c.bets[roundID][user] = &bet{amount: amount, up: up}
	return nil
}

// Paid returns the total amount claimed by user.
func (c *Chain) Paid(user string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paid[strings.ToLower(user)]
}

func (c *Chain) ModuleAddress() string { return ModuleAddress }

func (c *Chain) SequenceNumber(_ context.Context, addr string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq[strings.ToLower(addr)], nil
}

func (c *Chain) Builder(function string, args ...any) ledger.BuildFunc {
	return func(ctx context.Context, sender string) (*ledger.RawTransaction, error) {
		seq, err := c.SequenceNumber(ctx, sender)
		if err != nil {
			return nil, err
		}
		if args == nil {
			args = []any{}
		}
		return &ledger.RawTransaction{
			Sender:                  sender,
			SequenceNumber:          seq,
			MaxGasAmount:            20000,
			GasUnitPrice:            100,
			ExpirationTimestampSecs: uint64(c.Now().Add(time.Minute).Unix()),
			Payload: ledger.EntryFunctionPayload{
				Type:          "entry_function_payload",
				Function:      ModuleAddress + "::betting::" + function,
				TypeArguments: []string{},
				Arguments:     args,
			},
			ChainID: ChainID,
		}, nil
	}
}

func (c *Chain) SubmitTransaction(_ context.Context, tx *ledger.SignedTransaction) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sender := strings.ToLower(tx.Sender)
	fn := tx.Payload.Function[strings.LastIndex(tx.Payload.Function, "::")+2:]

	if err, ok := c.failNext[fn]; ok {
		delete(c.failNext, fn)
		return "", err
	}
	if ok, err := ledger.VerifySignature(tx); err != nil || !ok {
		return "", &ledger.APIError{Status: 400, ErrorCode: "invalid_transaction_update", Message: "Invalid transaction: Type: Validation Code: INVALID_SIGNATURE"}
	}
	if c.staleLeft > 0 {
		c.staleLeft--
		c.seq[sender]++
	}
	expected := c.seq[sender]
	if tx.SequenceNumber < expected {
		return "", &ledger.APIError{
			Status:    400,
			ErrorCode: "vm_error",
			Message:   fmt.Sprintf("Invalid transaction: Type: Validation Code: SEQUENCE_NUMBER_TOO_OLD (expected %d, got %d)", expected, tx.SequenceNumber),
		}
	}
	if tx.SequenceNumber > expected {
		return "", &ledger.APIError{Status: 400, ErrorCode: "vm_error", Message: "Invalid transaction: Type: Validation Code: SEQUENCE_NUMBER_TOO_NEW"}
	}
	c.seq[sender]++
	c.counts[fn]++
	c.txCounter++
	hash := fmt.Sprintf("0x%064x", c.txCounter)

	receipt := &ledger.Receipt{Hash: hash, Success: true, VMStatus: "Executed successfully", Version: uint64(c.txCounter)}
	if err := c.execute(fn, tx.Payload.Arguments); err != nil {
		receipt.Success = false
		receipt.VMStatus = "Move abort in " + ModuleAddress + "::betting: " + err.Error()
	}
	c.receipts[hash] = receipt
	return hash, nil
}

func (c *Chain) WaitForTransaction(ctx context.Context, hash string) (*ledger.Receipt, error) {
	c.mu.Lock()
	hang := c.hangWait
	r, ok := c.receipts[hash]
	c.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", hash, ledger.ErrNotFound)
	}
	out := *r
	return &out, nil
}

func (c *Chain) CurrentRoundID(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.rounds)), nil
}

func (c *Chain) GetRound(_ context.Context, roundID uint64) (*ledger.Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.round(roundID)
	if r == nil {
		return nil, fmt.Errorf("round %d: %w", roundID, ledger.ErrNotFound)
	}
	out := *r
	if r.EndPrice != nil {
		v := *r.EndPrice
		out.EndPrice = &v
	}
	return &out, nil
}

func (c *Chain) GetUserBet(_ context.Context, roundID uint64, user string) (*ledger.Bet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bets[roundID][strings.ToLower(user)]
	if b == nil {
		return nil, fmt.Errorf("bet %d/%s: %w", roundID, user, ledger.ErrNotFound)
	}
	return &ledger.Bet{RoundID: roundID, Bettor: user, Amount: b.amount, SideUp: b.up, Claimed: b.claimed}, nil
}

func (c *Chain) PotentialPayout(_ context.Context, roundID uint64, user string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payout(roundID, strings.ToLower(user)), nil
}

func (c *Chain) ContractInitialized(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized, nil
}

func (c *Chain) round(id uint64) *ledger.Round {
	if id == 0 || id > uint64(len(c.rounds)) {
		return nil
	}
	return c.rounds[id-1]
}

// payout is zero for unsettled rounds and losing bets. Winners split
// the whole pool pro rata less the fee; a tie refunds the stake.
func (c *Chain) payout(roundID uint64, user string) uint64 {
	r := c.round(roundID)
	b := c.bets[roundID][user]
	if r == nil || b == nil || !r.Settled || r.EndPrice == nil {
		return 0
	}
	end := *r.EndPrice
	if end == r.StartPrice {
		return b.amount
	}
	upWins := end > r.StartPrice
	if b.up != upWins {
		return 0
	}
	var total, winning uint64
	for _, other := range c.bets[roundID] {
		total += other.amount
		if other.up == upWins {
			winning += other.amount
		}
	}
	if winning == 0 {
		return 0
	}
	gross := b.amount * total / winning
	return gross - gross*c.feeBps/10000
}

func (c *Chain) execute(fn string, args []any) error {
	switch fn {
	case ledger.FnInit:
		if len(args) != 3 {
			return fmt.Errorf("E_INVALID_ARGUMENTS")
		}
		if c.initialized {
			return fmt.Errorf("E_ALREADY_INITIALIZED(0x1)")
		}
		fee, err := u64Arg(args[1])
		if err != nil {
			return err
		}
		c.initialized = true
		c.feeBps = fee
		c.treasury = fmt.Sprint(args[2])
		return nil
	case ledger.FnStartRound:
		if len(args) != 2 {
			return fmt.Errorf("E_INVALID_ARGUMENTS")
		}
		if !c.initialized {
			return fmt.Errorf("E_NOT_INITIALIZED(0x2)")
		}
		if n := len(c.rounds); n > 0 && !c.rounds[n-1].Settled {
			return fmt.Errorf("E_ROUND_ACTIVE(0x3)")
		}
		start, err := u64Arg(args[0])
		if err != nil {
			return err
		}
		duration, err := u64Arg(args[1])
		if err != nil {
			return err
		}
		c.rounds = append(c.rounds, &ledger.Round{
			ID:             uint64(len(c.rounds) + 1),
			StartPrice:     start,
			ExpiryTimeSecs: c.now.Unix() + int64(duration),
		})
		return nil
	case ledger.FnSettle:
		if len(args) != 2 {
			return fmt.Errorf("E_INVALID_ARGUMENTS")
		}
		id, err := u64Arg(args[0])
		if err != nil {
			return err
		}
		end, err := u64Arg(args[1])
		if err != nil {
			return err
		}
		r := c.round(id)
		switch {
		case r == nil:
			return fmt.Errorf("E_ROUND_NOT_FOUND(0x4)")
		case r.Settled:
			return fmt.Errorf("E_ROUND_ALREADY_SETTLED(0x5)")
		case c.now.Unix() < r.ExpiryTimeSecs:
			return fmt.Errorf("E_ROUND_NOT_EXPIRED(0x6)")
		}
		r.Settled = true
		r.EndPrice = &end
		return nil
	case ledger.FnClaim:
		if len(args) != 2 {
			return fmt.Errorf("E_INVALID_ARGUMENTS")
		}
		id, err := u64Arg(args[0])
		if err != nil {
			return err
		}
		user := strings.ToLower(fmt.Sprint(args[1]))
		b := c.bets[id][user]
		switch {
		case b == nil:
			return fmt.Errorf("E_NO_BET(0x7)")
		case b.claimed:
			return fmt.Errorf("E_ALREADY_CLAIMED(0x8)")
		}
		amount := c.payout(id, user)
		if amount == 0 {
			return fmt.Errorf("E_NO_WINNINGS(0x9)")
		}
		b.claimed = true
		c.paid[user] += amount
		return nil
	}
	return fmt.Errorf("E_UNKNOWN_FUNCTION")
}

func u64Arg(v any) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("E_INVALID_ARGUMENTS")
		}
		return n, nil
	}
	return 0, fmt.Errorf("E_INVALID_ARGUMENTS")
}
