// Package codec shrinks mints for QR transport by replacing JSON field names
// with single-character keys, and carries the result in a URL:
//
//	<base>?m=<base64(short-key JSON)>
//
// Decoding reverses every step and rebuilds the issuer or collector shape.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/mint"
)

const (
	// DefaultBaseURL is used when no carrier base is configured.
	DefaultBaseURL = "https://minted.app/m"

	// Param is the only query parameter a carrier may use.
	Param = "m"
)

// Form identifies which encoding an input used.
type Form int

const (
	FormCarrier Form = iota + 1
	FormCompact
	FormLong
)

func (f Form) String() string {
	switch f {
	case FormCarrier:
		return "carrier"
	case FormCompact:
		return "compact"
	case FormLong:
		return "long"
	}
	return "unknown"
}

// requiredFields must be present after decoding. The identity fields id,
// signature and issuerPublicKey are checked by the ingest structural step.
var requiredFields = []string{"schemaVersion", "title", "description", "visualConfig", "createdAt", "expiresAt", "status"}

var requiredVisualFields = []string{"effect", "color"}

const nestedField = "visualConfig"

// Codec encodes mints into carrier URLs and back.
type Codec struct {
	base *url.URL
}

// New creates a Codec that builds carriers on baseURL.
func New(baseURL string) (*Codec, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid carrier base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("carrier base URL must be absolute, got %q", baseURL)
	}
	return &Codec{base: u}, nil
}

// BaseURL returns the carrier base.
func (c *Codec) BaseURL() string {
	return c.base.String()
}

// EncodeCompact returns the short-key JSON form of m.
func (c *Codec) EncodeCompact(m mint.Mint) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "failed to marshal mint", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "failed to read mint fields", err)
	}

	compact, err := CompactKeys(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(compact)
}

// Encode returns the carrier URL for m.
func (c *Codec) Encode(m mint.Mint) (string, error) {
	compact, err := c.EncodeCompact(m)
	if err != nil {
		return "", err
	}

	u := *c.base
	q := url.Values{}
	q.Set(Param, base64.StdEncoding.EncodeToString(compact))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Decode parses a carrier URL and rebuilds the mint it carries.
func (c *Codec) Decode(carrier string) (mint.Mint, error) {
	data, err := carrierPayload(carrier)
	if err != nil {
		return nil, err
	}
	return DecodeCompact(data)
}

// DecodeCompact rebuilds a mint from its short-key JSON form.
func DecodeCompact(data []byte) (mint.Mint, error) {
	var short map[string]json.RawMessage
	if err := json.Unmarshal(data, &short); err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "payload is not a JSON object", err)
	}

	long, err := ExpandKeys(short)
	if err != nil {
		return nil, err
	}
	return fromFields(long)
}

// DecodeLong parses the long-form JSON serialization of a mint.
func DecodeLong(data []byte) (mint.Mint, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "payload is not a JSON object", err)
	}
	return fromFields(fields)
}

// Parse discriminates a raw scanned input and decodes it. Carriers are tried
// first, then compact JSON, then long-form JSON. A JSON object written only
// with short keys is compact even when its id or signature is empty, so it
// fails the same way it would inside a carrier.
func (c *Codec) Parse(raw string) (mint.Mint, Form, error) {
	s := strings.TrimSpace(raw)

	if isCarrier(s) {
		m, err := c.Decode(s)
		return m, FormCarrier, err
	}
	if LooksCompact(s) || shortKeyed(s) {
		m, err := DecodeCompact([]byte(s))
		return m, FormCompact, err
	}
	m, err := DecodeLong([]byte(s))
	return m, FormLong, err
}

// LooksCompact reports whether input is a compact mint: a JSON object, bare or
// inside a carrier, with non-empty short id and signature keys and neither of
// their long forms. It never fails; malformed input is simply not compact.
func LooksCompact(input string) bool {
	s := strings.TrimSpace(input)
	data := []byte(s)
	if isCarrier(s) {
		payload, err := carrierPayload(s)
		if err != nil {
			return false
		}
		data = payload
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return false
	}

	idKey, _ := keys.Short("id")
	sigKey, _ := keys.Short("signature")
	return truthy(obj[idKey]) && truthy(obj[sigKey]) && !truthy(obj["id"]) && !truthy(obj["signature"])
}

// shortKeyed reports whether s is a JSON object using at least one short key
// and none of the long field names.
func shortKeyed(s string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return false
	}

	short := false
	for k := range obj {
		if _, isLong := keys.Short(k); isLong {
			return false
		}
		if keys.IsShort(k) {
			short = true
		}
	}
	return short
}

// CompactKeys renames long keys to short ones at the top level and inside
// visualConfig. Unmapped keys are kept as they are unless they would be read
// back as a different field.
func CompactKeys(fields map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	return rename(fields, func(k string) (string, error) {
		if short, ok := keys.Short(k); ok {
			return short, nil
		}
		if keys.IsShort(k) {
			return "", mint.NewError(mint.ErrCodeDecode, fmt.Sprintf("unmapped field %q collides with a short key", k))
		}
		return k, nil
	}, nestedField)
}

// ExpandKeys reverses CompactKeys.
func ExpandKeys(fields map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	nestedShort, _ := keys.Short(nestedField)
	return rename(fields, func(k string) (string, error) {
		if long, ok := keys.Long(k); ok {
			return long, nil
		}
		return k, nil
	}, nestedShort)
}

func rename(fields map[string]json.RawMessage, mapKey func(string) (string, error), nested string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		name, err := mapKey(k)
		if err != nil {
			return nil, err
		}

		if k == nested && !isNull(v) {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(v, &inner); err != nil {
				return nil, mint.WrapError(mint.ErrCodeDecode, "visualConfig must be an object", err)
			}
			renamed, err := rename(inner, mapKey, "")
			if err != nil {
				return nil, err
			}
			if v, err = json.Marshal(renamed); err != nil {
				return nil, mint.WrapError(mint.ErrCodeDecode, "failed to re-encode visualConfig", err)
			}
		}

		if _, dup := out[name]; dup {
			return nil, mint.NewError(mint.ErrCodeDecode, fmt.Sprintf("field %q appears twice", name))
		}
		out[name] = v
	}
	return out, nil
}

// fromFields builds the concrete mint from long-key fields without
// substituting defaults for anything missing.
func fromFields(fields map[string]json.RawMessage) (mint.Mint, error) {
	for _, name := range requiredFields {
		if isNull(fields[name]) {
			return nil, mint.NewError(mint.ErrCodeDecode, fmt.Sprintf("missing required field %q", name))
		}
	}

	var visual map[string]json.RawMessage
	if err := json.Unmarshal(fields[nestedField], &visual); err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "visualConfig must be an object", err)
	}
	for _, name := range requiredVisualFields {
		if isNull(visual[name]) {
			return nil, mint.NewError(mint.ErrCodeDecode, fmt.Sprintf("missing required field \"visualConfig.%s\"", name))
		}
	}

	if raw, ok := fields["issuerPublicKey"]; ok && !isNull(raw) {
		if _, err := crypto.ImportPublicJWK(raw); err != nil {
			return nil, err
		}
	}

	_, hasTotal := fields["totalUnits"]
	_, hasUsed := fields["usedUnits"]
	if hasTotal != hasUsed {
		return nil, mint.NewError(mint.ErrCodeDecode, "totalUnits and usedUnits must appear together")
	}

	var m mint.Mint = &mint.ReceivedMint{}
	if hasTotal {
		m = &mint.IssuerMint{}
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "failed to re-encode mint", err)
	}
	if err := json.Unmarshal(body, m); err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "mint fields have the wrong types", err)
	}
	if err := mint.CheckFields(m); err != nil {
		return nil, err
	}
	return m, nil
}

// isCarrier reports whether s is an absolute URL with the carrier parameter.
func isCarrier(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Query().Has(Param)
}

// carrierPayload extracts and base64-decodes the carrier parameter.
func carrierPayload(carrier string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(carrier))
	if err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "carrier is not a valid URL", err)
	}

	value := u.Query().Get(Param)
	if value == "" {
		return nil, mint.NewError(mint.ErrCodeDecode, fmt.Sprintf("carrier has no %q parameter", Param))
	}

	// An unescaped '+' in the query reads back as a space.
	value = strings.ReplaceAll(value, " ", "+")
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, mint.WrapError(mint.ErrCodeDecode, "carrier parameter is not valid base64", err)
	}
	return data, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// truthy reports whether a JSON value is present and not null, false, 0 or "".
func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	switch string(bytes.TrimSpace(raw)) {
	case "false", "0", `""`:
		return false
	}
	return true
}
