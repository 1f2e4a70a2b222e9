package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Entry functions and views exposed by the betting module.
const (
	FnInit       = "init"
	FnStartRound = "start_round"
	FnSettle     = "settle"
	FnClaim      = "claim"

	ViewCurrentRoundID  = "get_current_round_id"
	ViewGetRound        = "get_round"
	ViewGetUserBet      = "get_user_bet"
	ViewPotentialPayout = "calculate_potential_payout"

	StateResource = "State"
)

// Round as reported by the ledger. Prices are micro-units of the quote
// currency; EndPrice is nil until the round is settled.
type Round struct {
	ID             uint64  `json:"round_id"`
	StartPrice     uint64  `json:"start_price"`
	ExpiryTimeSecs int64   `json:"expiry_time_secs"`
	Settled        bool    `json:"settled"`
	EndPrice       *uint64 `json:"end_price,omitempty"`
}

// Expired reports whether the round may be settled at unix time now.
func (r Round) Expired(now int64) bool {
	return now >= r.ExpiryTimeSecs
}

// Bet amounts are in the smallest currency unit (8 decimals).
type Bet struct {
	RoundID uint64 `json:"round_id"`
	Bettor  string `json:"bettor"`
	Amount  uint64 `json:"amount"`
	SideUp  bool   `json:"side_up"`
	Claimed bool   `json:"claimed"`
}

func (b Bet) Side() string {
	if b.SideUp {
		return "up"
	}
	return "down"
}

type EntryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// RawTransaction is an unsigned transaction bound to one sequence number.
type RawTransaction struct {
	Sender                  string               `json:"sender"`
	SequenceNumber          uint64               `json:"sequence_number,string"`
	MaxGasAmount            uint64               `json:"max_gas_amount,string"`
	GasUnitPrice            uint64               `json:"gas_unit_price,string"`
	ExpirationTimestampSecs uint64               `json:"expiration_timestamp_secs,string"`
	Payload                 EntryFunctionPayload `json:"payload"`
	// ChainID is part of the signing message only; the node supplies its
	// own when it decodes a JSON submission.
	ChainID uint8 `json:"-"`
}

type TransactionSignature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type SignedTransaction struct {
	RawTransaction
	Signature TransactionSignature `json:"signature"`
}

// Receipt is the observed execution result of a committed transaction.
type Receipt struct {
	Hash     string `json:"transaction_hash"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
	Version  uint64 `json:"version,omitempty"`
	GasUsed  uint64 `json:"gas_used,omitempty"`
}

// U64 encodes an unsigned integer argument the way the node's JSON API
// expects it.
func U64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// NormalizeAddress lower-cases an account address and checks it is 0x
// followed by 1 to 64 hex digits.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	digits, ok := strings.CutPrefix(addr, "0x")
	if !ok || len(digits) == 0 || len(digits) > 64 {
		return "", fmt.Errorf("invalid account address %q", addr)
	}
	for _, r := range digits {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("invalid account address %q", addr)
		}
	}
	return addr, nil
}
