package oracle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrUnavailable  = errors.New("oracle unavailable")
	ErrMalformed    = errors.New("oracle response malformed")
	ErrPriceInvalid = errors.New("oracle price invalid")
)

// MicroDecimals is the fixed-point precision the ledger stores prices in.
const MicroDecimals = 6

// Price is one normalized oracle reading.
type Price struct {
	FeedID      string          `json:"feed_id"`
	Value       decimal.Decimal `json:"value"`
	Micro       uint64          `json:"micro"`
	PublishTime int64           `json:"publish_time,omitempty"`
}

// ToMicro converts a quoted price to integer micro-units, truncating toward
// zero: 1.0000005 becomes 1000000.
func ToMicro(price decimal.Decimal) (uint64, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: %s is not positive", ErrPriceInvalid, price.String())
	}
	micro := price.Shift(MicroDecimals).Floor()
	if !micro.IsPositive() {
		return 0, fmt.Errorf("%w: %s is below one micro-unit", ErrPriceInvalid, price.String())
	}
	bi := micro.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows micro-units", ErrPriceInvalid, price.String())
	}
	return bi.Uint64(), nil
}

// FromMicro is the inverse of ToMicro for display.
func FromMicro(micro uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(micro), -MicroDecimals)
}
