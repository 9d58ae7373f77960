// Package mint defines the signed voucher records exchanged between issuers and
// collectors, their error taxonomy and the pure lifecycle rules applied to them.
package mint

import (
	"github.com/go-jose/go-jose/v4"
)

// SchemaVersion is the only schema generation this module signs or accepts.
// It is carried in every mint and is the first field of the signed payload.
const SchemaVersion = 2

// Kind tags the two mint variants.
type Kind string

const (
	// KindIssuer is the issuer-held record with unit capacity.
	KindIssuer Kind = "issuer"

	// KindReceived is the collector-held, single-unit view.
	KindReceived Kind = "received"
)

// Effect is the card finish used when rendering a mint.
type Effect string

const (
	EffectPlastic     Effect = "plastic"
	EffectMetalized   Effect = "metalized"
	EffectHolographic Effect = "holographic"
	EffectMirror      Effect = "mirror"
)

// Valid reports whether e is one of the known finishes.
func (e Effect) Valid() bool {
	switch e {
	case EffectPlastic, EffectMetalized, EffectHolographic, EffectMirror:
		return true
	}
	return false
}

// Status is the lifecycle state of a mint. The permitted values depend on the
// variant: issuer mints are active or redeemed, received mints active or used.
type Status string

const (
	StatusActive   Status = "active"
	StatusRedeemed Status = "redeemed"
	StatusUsed     Status = "used"
)

// VisualConfig holds the rendering parameters of a mint.
type VisualConfig struct {
	Effect Effect `json:"effect"`
	Color  string `json:"color"`

	// Image is an optional reference to artwork.
	Image string `json:"image,omitempty"`
}

// Base holds the fields shared by both variants.
type Base struct {
	SchemaVersion int          `json:"schemaVersion"`
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	VisualConfig  VisualConfig `json:"visualConfig"`

	// IssuerPublicKey is the signer's public key, embedded so verification
	// needs nothing but the record itself.
	IssuerPublicKey *jose.JSONWebKey `json:"issuerPublicKey"`

	// Signature is the base64 Ed25519 signature over the canonical payload.
	Signature string `json:"signature"`

	// CreatedAt is the issuance time in Unix milliseconds.
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt Expiry `json:"expiresAt"`
}

// Mint is implemented only by *IssuerMint and *ReceivedMint.
// Callers type-switch on the concrete value.
type Mint interface {
	Kind() Kind
	Common() *Base
	isMint()
}

// IssuerMint is the record kept by the issuer. It tracks redemption capacity.
type IssuerMint struct {
	Base
	Status     Status `json:"status"`
	TotalUnits int    `json:"totalUnits"`
	UsedUnits  int    `json:"usedUnits"`
}

func (m *IssuerMint) Kind() Kind    { return KindIssuer }
func (m *IssuerMint) Common() *Base { return &m.Base }
func (m *IssuerMint) isMint()       {}

// RemainingUnits returns how many units can still be redeemed.
func (m *IssuerMint) RemainingUnits() int {
	return m.TotalUnits - m.UsedUnits
}

// ReceivedMint is the record kept by a collector after a successful ingest.
type ReceivedMint struct {
	Base
	Status Status `json:"status"`
}

func (m *ReceivedMint) Kind() Kind    { return KindReceived }
func (m *ReceivedMint) Common() *Base { return &m.Base }
func (m *ReceivedMint) isMint()       {}

// StatusOf returns the status of either variant.
func StatusOf(m Mint) Status {
	switch v := m.(type) {
	case *IssuerMint:
		return v.Status
	case *ReceivedMint:
		return v.Status
	}
	return ""
}

// ToReceived returns the collector view of an issuer mint: the same signed
// fields, an active status and no unit counters.
func ToReceived(m *IssuerMint) *ReceivedMint {
	base := m.Base
	return &ReceivedMint{
		Base:   base,
		Status: StatusActive,
	}
}

// CheckFields validates the variant-specific shape of a decoded mint: enum
// values and unit counters. Missing identity fields are not checked here.
func CheckFields(m Mint) error {
	b := m.Common()
	if b.VisualConfig.Effect != "" && !b.VisualConfig.Effect.Valid() {
		return NewError(ErrCodeDecode, "unknown visual effect "+string(b.VisualConfig.Effect))
	}

	switch v := m.(type) {
	case *IssuerMint:
		if v.Status != StatusActive && v.Status != StatusRedeemed {
			return NewError(ErrCodeDecode, "issuer mint status must be active or redeemed, got "+string(v.Status))
		}
		if v.TotalUnits <= 0 {
			return NewError(ErrCodeDecode, "totalUnits must be positive")
		}
		if v.UsedUnits < 0 || v.UsedUnits > v.TotalUnits {
			return NewError(ErrCodeDecode, "usedUnits must be between 0 and totalUnits")
		}
	case *ReceivedMint:
		if v.Status != StatusActive && v.Status != StatusUsed {
			return NewError(ErrCodeDecode, "received mint status must be active or used, got "+string(v.Status))
		}
	default:
		return NewError(ErrCodeDecode, "unknown mint variant")
	}
	return nil
}
