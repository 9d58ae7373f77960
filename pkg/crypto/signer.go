package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/minted/minted-core/pkg/mint"
)

// Sign produces a detached Ed25519 signature over payload, base64 encoded.
func Sign(payload []byte, priv ed25519.PrivateKey) (string, error) {
	if err := checkPrivateKey(priv); err != nil {
		return "", err
	}

	sig := ed25519.Sign(priv, payload)
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(priv.Public().(ed25519.PublicKey), payload, sig) {
		return "", mint.NewError(mint.ErrCodeSigning, "produced signature does not verify")
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature over payload.
//
// A wrong or tampered signature yields (false, nil). An error is returned only
// for malformed input: a bad public key (ErrKeyImport) or a signature that is
// not base64 or has the wrong length (ErrDecode).
func Verify(payload []byte, signature string, pub ed25519.PublicKey) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, mint.NewError(mint.ErrCodeKeyImport, fmt.Sprintf("Ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub)))
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, mint.WrapError(mint.ErrCodeDecode, "signature is not valid base64", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, mint.NewError(mint.ErrCodeDecode, fmt.Sprintf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig)))
	}

	return ed25519.Verify(pub, payload, sig), nil
}

// SignMint signs the canonical payload of m and stores the signature in it.
// priv must belong to the issuer key already embedded in m.
func SignMint(m mint.Mint, priv ed25519.PrivateKey) error {
	if err := checkPrivateKey(priv); err != nil {
		return err
	}

	payload, err := Project(m)
	if err != nil {
		return err
	}

	embedded, err := PublicKeyFromJWK(m.Common().IssuerPublicKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(embedded, priv.Public().(ed25519.PublicKey)) {
		return mint.NewError(mint.ErrCodeSigning, "private key does not match the embedded issuer key")
	}

	sig, err := Sign(payload.Bytes(), priv)
	if err != nil {
		return err
	}
	m.Common().Signature = sig
	return nil
}

// VerifyMint checks the signature of m against the issuer key it carries.
func VerifyMint(m mint.Mint) (bool, error) {
	b := m.Common()
	if b.Signature == "" {
		return false, mint.NewError(mint.ErrCodeStructure, "signature is missing")
	}

	payload, err := Project(m)
	if err != nil {
		return false, err
	}

	pub, err := PublicKeyFromJWK(b.IssuerPublicKey)
	if err != nil {
		return false, err
	}
	return Verify(payload.Bytes(), b.Signature, pub)
}
