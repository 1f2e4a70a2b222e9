package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// entryFunctionVariant is the TransactionPayload enum index of EntryFunction.
const entryFunctionVariant = 2

var rawTransactionSalt = sha3.Sum256([]byte("APTOS::RawTransaction"))

// SigningMessage is the byte string an account key signs for tx: the
// RawTransaction domain salt followed by the BCS encoding of tx.
func SigningMessage(tx *RawTransaction) ([]byte, error) {
	raw, err := EncodeRawTransaction(tx)
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, len(rawTransactionSalt)+len(raw))
	msg = append(msg, rawTransactionSalt[:]...)
	return append(msg, raw...), nil
}

// EncodeRawTransaction serializes tx in BCS. Only entry function payloads
// without type arguments are supported; every call this module makes is one.
func EncodeRawTransaction(tx *RawTransaction) ([]byte, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}
	sender, err := AddressBytes(tx.Sender)
	if err != nil {
		return nil, err
	}
	moduleAddr, moduleName, function, err := splitFunction(tx.Payload.Function)
	if err != nil {
		return nil, err
	}
	if len(tx.Payload.TypeArguments) > 0 {
		return nil, fmt.Errorf("type arguments are not supported")
	}

	w := &bcsWriter{}
	w.fixed(sender[:])
	w.u64(tx.SequenceNumber)
	w.uleb128(entryFunctionVariant)
	w.fixed(moduleAddr[:])
	w.str(moduleName)
	w.str(function)
	w.uleb128(0)
	w.uleb128(uint64(len(tx.Payload.Arguments)))
	for i, arg := range tx.Payload.Arguments {
		enc, err := encodeArgument(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		w.bytes(enc)
	}
	w.u64(tx.MaxGasAmount)
	w.u64(tx.GasUnitPrice)
	w.u64(tx.ExpirationTimestampSecs)
	w.buf.WriteByte(tx.ChainID)
	return w.buf.Bytes(), nil
}

// AddressBytes decodes an account address into its 32-byte form. Short
// addresses such as 0x1 are left-padded with zeros.
func AddressBytes(addr string) ([32]byte, error) {
	var out [32]byte
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return out, err
	}
	digits := strings.TrimPrefix(norm, "0x")
	raw, err := hexutil.Decode("0x" + strings.Repeat("0", 64-len(digits)) + digits)
	if err != nil {
		return out, fmt.Errorf("invalid account address %q: %w", addr, err)
	}
	copy(out[:], raw)
	return out, nil
}

// encodeArgument maps the JSON-style arguments the module's entry functions
// take onto their BCS form: 0x-prefixed strings are addresses, decimal
// strings and unsigned integers are u64, booleans are bool.
func encodeArgument(v any) ([]byte, error) {
	w := &bcsWriter{}
	switch t := v.(type) {
	case bool:
		if t {
			w.buf.WriteByte(1)
		} else {
			w.buf.WriteByte(0)
		}
	case uint64:
		w.u64(t)
	case int:
		if t < 0 {
			return nil, fmt.Errorf("negative integer %d", t)
		}
		w.u64(uint64(t))
	case string:
		if strings.HasPrefix(t, "0x") {
			addr, err := AddressBytes(t)
			if err != nil {
				return nil, err
			}
			w.fixed(addr[:])
			break
		}
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unsupported string argument %q", t)
		}
		w.u64(n)
	default:
		return nil, fmt.Errorf("unsupported argument type %T", v)
	}
	return w.buf.Bytes(), nil
}

func splitFunction(id string) (addr [32]byte, module, function string, err error) {
	parts := strings.Split(id, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return addr, "", "", fmt.Errorf("invalid function id %q", id)
	}
	addr, err = AddressBytes(parts[0])
	if err != nil {
		return addr, "", "", err
	}
	return addr, parts[1], parts[2], nil
}

type bcsWriter struct {
	buf bytes.Buffer
}

func (w *bcsWriter) uleb128(v uint64) {
	for v >= 0x80 {
		w.buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	w.buf.WriteByte(byte(v))
}

func (w *bcsWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) fixed(b []byte) {
	w.buf.Write(b)
}

func (w *bcsWriter) bytes(b []byte) {
	w.uleb128(uint64(len(b)))
	w.buf.Write(b)
}

func (w *bcsWriter) str(s string) {
	w.bytes([]byte(s))
}
