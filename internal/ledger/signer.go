package ledger

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

const (
	signatureType = "ed25519_signature"

	// ed25519Scheme is the authentication key scheme byte for single
	// Ed25519 keys.
	ed25519Scheme = 0x00

	privateKeyPrefix = "ed25519-priv-"
)

// Signer owns one signing identity.
type Signer interface {
	Address() string
	Sign(tx *RawTransaction) (*SignedTransaction, error)
}

// KeySigner signs with a local Ed25519 key.
type KeySigner struct {
	key     ed25519.PrivateKey
	address string
	pubHex  string
}

// NewKeySigner parses a 32-byte hex private key seed, with or without the
// ed25519-priv- prefix. An empty address derives the account address from
// the public key; a non-empty one is used for accounts whose key was rotated.
func NewKeySigner(privateKeyHex, address string) (*KeySigner, error) {
	key, err := parsePrivateKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}
	pub := key.Public().(ed25519.PublicKey)
	if strings.TrimSpace(address) == "" {
		address = DeriveAddress(pub)
	} else if address, err = NormalizeAddress(address); err != nil {
		return nil, err
	}
	return &KeySigner{
		key:     key,
		address: address,
		pubHex:  hexutil.Encode(pub),
	}, nil
}

// DeriveAddress returns the account address a fresh Ed25519 key controls:
// sha3-256 of the public key followed by the scheme byte.
func DeriveAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, len(pub)+1)
	buf = append(buf, pub...)
	buf = append(buf, ed25519Scheme)
	sum := sha3.Sum256(buf)
	return hexutil.Encode(sum[:])
}

func (s *KeySigner) Address() string {
	if s == nil {
		return ""
	}
	return s.address
}

// PublicKey is the 0x-prefixed hex public key.
func (s *KeySigner) PublicKey() string {
	if s == nil {
		return ""
	}
	return s.pubHex
}

func (s *KeySigner) Sign(tx *RawTransaction) (*SignedTransaction, error) {
	if s == nil || s.key == nil {
		return nil, fmt.Errorf("signer is nil")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}
	if !sameAddress(tx.Sender, s.address) {
		return nil, fmt.Errorf("transaction sender %s does not match signer %s", tx.Sender, s.address)
	}
	msg, err := SigningMessage(tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		RawTransaction: *tx,
		Signature: TransactionSignature{
			Type:      signatureType,
			PublicKey: s.pubHex,
			Signature: hexutil.Encode(ed25519.Sign(s.key, msg)),
		},
	}, nil
}

// VerifySignature checks that signed carries a valid Ed25519 signature from
// the public key it names.
func VerifySignature(signed *SignedTransaction) (bool, error) {
	if signed == nil {
		return false, fmt.Errorf("transaction is nil")
	}
	if signed.Signature.Type != signatureType {
		return false, fmt.Errorf("unsupported signature type %q", signed.Signature.Type)
	}
	pub, err := hexutil.Decode(signed.Signature.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key")
	}
	sig, err := hexutil.Decode(signed.Signature.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid signature")
	}
	msg, err := SigningMessage(&signed.RawTransaction)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, msg, sig), nil
}

func parsePrivateKeyHex(raw string) (ed25519.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), privateKeyPrefix)
	if raw == "" || raw == "0x" {
		return nil, fmt.Errorf("empty private key")
	}
	if !strings.HasPrefix(raw, "0x") {
		raw = "0x" + raw
	}
	seed, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid private key: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func sameAddress(a, b string) bool {
	x, errA := AddressBytes(a)
	y, errB := AddressBytes(b)
	return errA == nil && errB == nil && x == y
}
