// Package crypto implements the signing protocol for mints: JWK key
// interchange, the canonical payload projection and Ed25519 detached
// signatures over it.
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/minted/minted-core/pkg/did"
	"github.com/minted/minted-core/pkg/mint"
)

// KeyPair is an issuer identity.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair creates a new Ed25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, mint.WrapError(mint.ErrCodeSigning, "failed to generate key pair", err)
	}
	return &KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// IssuerDID returns the did:key identifier of the pair's public key.
func (kp *KeyPair) IssuerDID() string {
	return did.NewKeyDID(kp.PublicKey)
}

// PublicJWK exports the public half as a JWK whose kid is the issuer did:key.
func (kp *KeyPair) PublicJWK() *jose.JSONWebKey {
	return PublicJWK(kp.PublicKey)
}

// PrivateJWK exports the private half as a JWK.
func (kp *KeyPair) PrivateJWK() *jose.JSONWebKey {
	return &jose.JSONWebKey{
		Key:       kp.PrivateKey,
		KeyID:     kp.IssuerDID(),
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}
}

// PublicJWK wraps an Ed25519 public key as a signing JWK.
func PublicJWK(pub ed25519.PublicKey) *jose.JSONWebKey {
	return &jose.JSONWebKey{
		Key:       pub,
		KeyID:     did.NewKeyDID(pub),
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}
}

// PublicKeyFromJWK extracts the Ed25519 public key from a JWK. A JWK holding
// private material is rejected.
func PublicKeyFromJWK(jwk *jose.JSONWebKey) (ed25519.PublicKey, error) {
	if jwk == nil || jwk.Key == nil {
		return nil, mint.NewError(mint.ErrCodeKeyImport, "public key is missing")
	}

	switch key := jwk.Key.(type) {
	case ed25519.PublicKey:
		if len(key) != ed25519.PublicKeySize {
			return nil, mint.NewError(mint.ErrCodeKeyImport, fmt.Sprintf("Ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key)))
		}
		return key, nil
	case ed25519.PrivateKey:
		return nil, mint.NewError(mint.ErrCodeKeyImport, "expected a public key but the JWK contains private material")
	default:
		return nil, mint.NewError(mint.ErrCodeKeyImport, fmt.Sprintf("unsupported key type %T (only Ed25519 supported)", jwk.Key))
	}
}

// ImportPublicJWK parses a JSON-encoded public JWK.
func ImportPublicJWK(data []byte) (*jose.JSONWebKey, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, mint.WrapError(mint.ErrCodeKeyImport, "failed to parse public JWK", err)
	}
	if _, err := PublicKeyFromJWK(&jwk); err != nil {
		return nil, err
	}
	return &jwk, nil
}

// ImportPrivateJWK parses a JSON-encoded private JWK.
func ImportPrivateJWK(data []byte) (ed25519.PrivateKey, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, mint.WrapError(mint.ErrCodeKeyImport, "failed to parse private JWK", err)
	}

	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return nil, mint.NewError(mint.ErrCodeKeyImport, "key is not an Ed25519 private key")
	}
	if err := checkPrivateKey(priv); err != nil {
		return nil, err
	}
	return priv, nil
}

// checkPrivateKey verifies the size of priv and that its public half matches its seed.
func checkPrivateKey(priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return mint.NewError(mint.ErrCodeKeyImport, fmt.Sprintf("Ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv)))
	}
	derived := ed25519.NewKeyFromSeed(priv.Seed())
	if !bytes.Equal(derived[ed25519.SeedSize:], priv[ed25519.SeedSize:]) {
		return mint.NewError(mint.ErrCodeKeyImport, "private key seed does not match its public half")
	}
	return nil
}

// LoadKeyPair reads a private JWK file and returns the full key pair.
func LoadKeyPair(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	priv, err := ImportPrivateJWK(data)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PublicKey:  priv.Public().(ed25519.PublicKey),
		PrivateKey: priv,
	}, nil
}

// SaveKeyPair writes the private JWK (mode 0600) and the public JWK (mode 0644).
func SaveKeyPair(kp *KeyPair, privPath, pubPath string) error {
	privBytes, err := json.MarshalIndent(kp.PrivateJWK(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(privPath, privBytes, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	pubBytes, err := json.MarshalIndent(kp.PublicJWK(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubBytes, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// IssuerDID returns the did:key of the key embedded in m, or "" if it is unusable.
func IssuerDID(m mint.Mint) string {
	pub, err := PublicKeyFromJWK(m.Common().IssuerPublicKey)
	if err != nil {
		return ""
	}
	return did.NewKeyDID(pub)
}
