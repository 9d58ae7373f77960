package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/minted/minted-core/pkg/did"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPair_JWKExport(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	pubJWK := kp.PublicJWK()
	assert.Equal(t, kp.IssuerDID(), pubJWK.KeyID)
	assert.Equal(t, string(jose.EdDSA), pubJWK.Algorithm)
	assert.True(t, pubJWK.IsPublic())

	raw, err := json.Marshal(pubJWK)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kty":"OKP"`)
	assert.Contains(t, string(raw), `"crv":"Ed25519"`)
	assert.NotContains(t, string(raw), `"d":`)

	imported, err := ImportPublicJWK(raw)
	require.NoError(t, err)
	pub, err := PublicKeyFromJWK(imported)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, pub)
}

func TestImportPrivateJWK(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	raw, err := json.Marshal(kp.PrivateJWK())
	require.NoError(t, err)

	priv, err := ImportPrivateJWK(raw)
	require.NoError(t, err)
	assert.Equal(t, kp.PrivateKey, priv)

	// A public JWK is not a private key.
	pubRaw, err := json.Marshal(kp.PublicJWK())
	require.NoError(t, err)
	_, err = ImportPrivateJWK(pubRaw)
	assert.ErrorIs(t, err, mint.ErrKeyImport)

	_, err = ImportPrivateJWK([]byte("{not json"))
	assert.ErrorIs(t, err, mint.ErrKeyImport)
}

func TestImportPublicJWK_Rejects(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	privRaw, err := json.Marshal(kp.PrivateJWK())
	require.NoError(t, err)
	_, err = ImportPublicJWK(privRaw)
	assert.ErrorIs(t, err, mint.ErrKeyImport)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecRaw, err := json.Marshal(jose.JSONWebKey{Key: &ecKey.PublicKey, Algorithm: string(jose.ES256)})
	require.NoError(t, err)
	_, err = ImportPublicJWK(ecRaw)
	assert.ErrorIs(t, err, mint.ErrKeyImport)

	_, err = ImportPublicJWK([]byte(`{"kty":"OKP","crv":"Ed25519","x":"AAAA"}`))
	assert.ErrorIs(t, err, mint.ErrKeyImport)

	_, err = PublicKeyFromJWK(nil)
	assert.ErrorIs(t, err, mint.ErrKeyImport)
}

func TestSaveLoadKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "issuer.jwk")
	pubPath := filepath.Join(dir, "issuer.pub.jwk")
	require.NoError(t, SaveKeyPair(kp, privPath, pubPath))

	info, err := os.Stat(privPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadKeyPair(privPath)
	require.NoError(t, err)
	assert.Equal(t, kp.PrivateKey, loaded.PrivateKey)
	assert.Equal(t, kp.PublicKey, loaded.PublicKey)

	pubData, err := os.ReadFile(pubPath)
	require.NoError(t, err)
	pubJWK, err := ImportPublicJWK(pubData)
	require.NoError(t, err)
	assert.Equal(t, kp.IssuerDID(), pubJWK.KeyID)

	_, err = LoadKeyPair(filepath.Join(dir, "missing.jwk"))
	assert.Error(t, err)
}

func TestIssuerDID(t *testing.T) {
	kp := fixedKeyPair()
	m := sampleIssuerMint(kp)

	id := IssuerDID(m)
	assert.True(t, strings.HasPrefix(id, "did:key:z"))

	pub, err := did.PublicKeyFromKeyDID(id)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, pub)

	m.IssuerPublicKey = nil
	assert.Equal(t, "", IssuerDID(m))
}
