package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/minted/minted-core/pkg/mint"
)

// Field is one member of a canonical payload, in signing order.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Projection is the ordered set of fields covered by a mint signature.
type Projection struct {
	Fields []Field
}

// Bytes serializes the projection as compact JSON in field order.
func (p *Projection) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(jsonString(f.Name))
		buf.WriteByte(':')
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// Project builds the canonical payload of a schema v2 mint. Both variants
// project the same fields, in this order:
//
//	schemaVersion, id, title, description, visualConfig{effect, color[, image]},
//	issuerPublicKey{crv, kty, x}, createdAt, expiresAt
//
// The signature and the variant-specific status and unit counters are not
// covered, so redeeming units never invalidates a mint.
func Project(m mint.Mint) (*Projection, error) {
	switch m.(type) {
	case *mint.IssuerMint, *mint.ReceivedMint:
	default:
		return nil, mint.NewError(mint.ErrCodeStructure, fmt.Sprintf("unsupported mint type %T", m))
	}

	b := m.Common()
	if b.SchemaVersion != mint.SchemaVersion {
		return nil, mint.NewError(mint.ErrCodeStructure, fmt.Sprintf("unsupported schema version %d (want %d)", b.SchemaVersion, mint.SchemaVersion))
	}
	if b.IssuerPublicKey == nil {
		return nil, mint.NewError(mint.ErrCodeStructure, "issuer public key is missing")
	}
	pub, err := PublicKeyFromJWK(b.IssuerPublicKey)
	if err != nil {
		return nil, err
	}

	return &Projection{Fields: []Field{
		{"schemaVersion", json.RawMessage(strconv.Itoa(b.SchemaVersion))},
		{"id", jsonString(b.ID)},
		{"title", jsonString(b.Title)},
		{"description", jsonString(b.Description)},
		{"visualConfig", visualConfigJSON(b.VisualConfig)},
		{"issuerPublicKey", thumbprintMembers(pub)},
		{"createdAt", json.RawMessage(strconv.FormatInt(b.CreatedAt, 10))},
		{"expiresAt", jsonString(b.ExpiresAt.String())},
	}}, nil
}

// CanonicalJSON returns the bytes a mint signature is computed over.
func CanonicalJSON(m mint.Mint) ([]byte, error) {
	p, err := Project(m)
	if err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

func visualConfigJSON(vc mint.VisualConfig) json.RawMessage {
	fields := []Field{
		{"effect", jsonString(string(vc.Effect))},
		{"color", jsonString(vc.Color)},
	}
	if vc.Image != "" {
		fields = append(fields, Field{"image", jsonString(vc.Image)})
	}
	return (&Projection{Fields: fields}).Bytes()
}

// thumbprintMembers renders the required OKP members in RFC 7638 order.
func thumbprintMembers(pub []byte) json.RawMessage {
	return (&Projection{Fields: []Field{
		{"crv", jsonString("Ed25519")},
		{"kty", jsonString("OKP")},
		{"x", jsonString(base64.RawURLEncoding.EncodeToString(pub))},
	}}).Bytes()
}

// jsonString encodes s as a JSON string without HTML escaping.
func jsonString(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
