// Package did derives stable issuer identifiers from Ed25519 public keys using
// the did:key method: did:key:z<base58btc(0xed01 || public_key)>.
//
// Mints embed the full issuer key; the did:key form is what operators see in
// logs and listings and what stores index issuers by.
package did

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Common errors returned by this package.
var (
	ErrInvalidDID         = errors.New("invalid DID format")
	ErrUnsupportedMethod  = errors.New("unsupported DID method (only did:key supported)")
	ErrInvalidKeyDID      = errors.New("invalid did:key format")
	ErrUnsupportedKeyType = errors.New("unsupported key type in did:key (only Ed25519 supported)")
)

// Multicodec constants for did:key.
const (
	// Ed25519MulticodecPrefix is the varint-encoded multicodec for Ed25519 public keys.
	Ed25519MulticodecPrefix = 0xed01

	// Ed25519PublicKeySize is the size of an Ed25519 public key in bytes.
	Ed25519PublicKeySize = ed25519.PublicKeySize

	keyPrefix = "did:key:"
)

// ed25519Codec is Ed25519MulticodecPrefix as it appears on the wire.
var ed25519Codec = [2]byte{Ed25519MulticodecPrefix >> 8, Ed25519MulticodecPrefix & 0xff}

// DID is a parsed did:key identifier.
type DID struct {
	// PublicKey is the 32-byte Ed25519 key.
	PublicKey ed25519.PublicKey

	// Raw is the original DID string.
	Raw string
}

// String returns the canonical DID string.
func (d *DID) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	return NewKeyDID(d.PublicKey)
}

// Parse parses a did:key identifier.
//
// Returns ErrInvalidDID for malformed input, ErrUnsupportedMethod for any
// method other than key, and ErrInvalidKeyDID / ErrUnsupportedKeyType when the
// encoded key is not a 32-byte Ed25519 key.
func Parse(s string) (*DID, error) {
	if s == "" {
		return nil, ErrInvalidDID
	}

	parts := strings.Split(s, ":")
	if len(parts) < 3 || parts[0] != "did" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDID, s)
	}
	if parts[1] != "key" {
		return nil, fmt.Errorf("%w: got did:%s", ErrUnsupportedMethod, parts[1])
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: did:key must have exactly 3 parts", ErrInvalidKeyDID)
	}

	value := parts[2]
	if value == "" {
		return nil, fmt.Errorf("%w: empty key identifier", ErrInvalidKeyDID)
	}
	// 'z' is the multibase prefix for base58btc
	if value[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' (base58btc) prefix, got '%c'", ErrInvalidKeyDID, value[0])
	}

	decoded := base58.Decode(value[1:])
	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: invalid base58btc value", ErrInvalidKeyDID)
	}
	if decoded[0] != ed25519Codec[0] || decoded[1] != ed25519Codec[1] {
		return nil, fmt.Errorf("%w: expected Ed25519 multicodec (0xed01), got 0x%02x%02x", ErrUnsupportedKeyType, decoded[0], decoded[1])
	}

	key := decoded[2:]
	if len(key) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrInvalidKeyDID, Ed25519PublicKeySize, len(key))
	}

	return &DID{PublicKey: ed25519.PublicKey(key), Raw: s}, nil
}

// NewKeyDID returns the did:key identifier of an Ed25519 public key, or "" if
// the key has the wrong size.
func NewKeyDID(publicKey ed25519.PublicKey) string {
	if len(publicKey) != Ed25519PublicKeySize {
		return ""
	}

	prefixed := make([]byte, 0, len(ed25519Codec)+len(publicKey))
	prefixed = append(prefixed, ed25519Codec[:]...)
	prefixed = append(prefixed, publicKey...)

	return keyPrefix + "z" + base58.Encode(prefixed)
}

// PublicKeyFromKeyDID extracts the Ed25519 public key from a did:key identifier.
func PublicKeyFromKeyDID(s string) (ed25519.PublicKey, error) {
	parsed, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return parsed.PublicKey, nil
}

// Short returns an abbreviated form for display: the method prefix and the
// last eight characters of the key.
func Short(s string) string {
	if !strings.HasPrefix(s, keyPrefix) || len(s) <= len(keyPrefix)+8 {
		return s
	}
	return keyPrefix + "…" + s[len(s)-8:]
}
