package mint_test

import (
	"testing"
	"time"

	"github.com/minted/minted-core/pkg/mint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.Local)

func TestIsExpiredAt(t *testing.T) {
	tests := []struct {
		name   string
		expiry mint.Expiry
		want   bool
	}{
		{"current month", mint.NewExpiry(2026, time.June), false},
		{"next month", mint.NewExpiry(2026, time.July), false},
		{"next year earlier month", mint.NewExpiry(2027, time.January), false},
		{"previous month", mint.NewExpiry(2026, time.May), true},
		{"previous year later month", mint.NewExpiry(2025, time.December), true},
		{"far past", mint.NewExpiry(1999, time.June), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mint.IsExpiredAt(tt.expiry, now))
		})
	}
}

func TestIsExpired_UsesCurrentMonth(t *testing.T) {
	current := time.Now()
	assert.False(t, mint.IsExpired(mint.NewExpiry(current.Year(), current.Month())))
	assert.True(t, mint.IsExpired(mint.NewExpiry(current.Year()-1, current.Month())))
}

func TestCanDeleteAt(t *testing.T) {
	active := &mint.IssuerMint{
		Base:       mint.Base{ExpiresAt: mint.NewExpiry(2027, time.January)},
		Status:     mint.StatusActive,
		TotalUnits: 3,
	}
	redeemed := &mint.IssuerMint{
		Base:       mint.Base{ExpiresAt: mint.NewExpiry(2027, time.January)},
		Status:     mint.StatusRedeemed,
		TotalUnits: 3,
		UsedUnits:  3,
	}
	expired := &mint.IssuerMint{
		Base:       mint.Base{ExpiresAt: mint.NewExpiry(2026, time.April)},
		Status:     mint.StatusActive,
		TotalUnits: 3,
	}
	received := &mint.ReceivedMint{
		Base:   mint.Base{ExpiresAt: mint.NewExpiry(2027, time.January)},
		Status: mint.StatusActive,
	}

	assert.False(t, mint.CanDeleteAt(active, mint.ContextIssuer, now))
	assert.True(t, mint.CanDeleteAt(redeemed, mint.ContextIssuer, now))
	assert.True(t, mint.CanDeleteAt(expired, mint.ContextIssuer, now))
	assert.False(t, mint.CanDeleteAt(received, mint.ContextIssuer, now))

	for _, m := range []mint.Mint{active, redeemed, expired, received} {
		assert.True(t, mint.CanDeleteAt(m, mint.ContextCollection, now))
	}
}

func TestIssuerMint_Redeem(t *testing.T) {
	m := &mint.IssuerMint{
		Base:       mint.Base{ExpiresAt: mint.NewExpiry(2026, time.December)},
		Status:     mint.StatusActive,
		TotalUnits: 3,
	}

	require.NoError(t, m.Redeem(2, now))
	assert.Equal(t, 2, m.UsedUnits)
	assert.Equal(t, mint.StatusActive, m.Status)

	assert.ErrorIs(t, m.Redeem(2, now), mint.ErrUnitsExhausted)
	assert.ErrorIs(t, m.Redeem(0, now), mint.ErrInvalidUnits)
	assert.Equal(t, 2, m.UsedUnits, "failed redemptions must not consume units")

	require.NoError(t, m.Redeem(1, now))
	assert.Equal(t, 3, m.UsedUnits)
	assert.Equal(t, mint.StatusRedeemed, m.Status)

	assert.ErrorIs(t, m.Redeem(1, now), mint.ErrAlreadyClosed)
}

func TestIssuerMint_RedeemExpired(t *testing.T) {
	m := &mint.IssuerMint{
		Base:       mint.Base{ExpiresAt: mint.NewExpiry(2026, time.May)},
		Status:     mint.StatusActive,
		TotalUnits: 1,
	}
	assert.ErrorIs(t, m.Redeem(1, now), mint.ErrExpired)
	assert.Equal(t, 0, m.UsedUnits)
}

func TestIssuerMint_MarkRedeemed(t *testing.T) {
	m := &mint.IssuerMint{Status: mint.StatusActive, TotalUnits: 5, UsedUnits: 1}
	require.NoError(t, m.MarkRedeemed())
	assert.Equal(t, mint.StatusRedeemed, m.Status)
	assert.Equal(t, 1, m.UsedUnits)
	assert.ErrorIs(t, m.MarkRedeemed(), mint.ErrAlreadyClosed)
}

func TestReceivedMint_MarkUsed(t *testing.T) {
	m := &mint.ReceivedMint{Status: mint.StatusActive}
	require.NoError(t, m.MarkUsed())
	assert.Equal(t, mint.StatusUsed, m.Status)
	assert.ErrorIs(t, m.MarkUsed(), mint.ErrAlreadyUsed)
}

func TestToReceived(t *testing.T) {
	issued := &mint.IssuerMint{
		Base: mint.Base{
			SchemaVersion: mint.SchemaVersion,
			ID:            "abc",
			Title:         "Coffee",
			Signature:     "sig",
		},
		Status:     mint.StatusRedeemed,
		TotalUnits: 4,
		UsedUnits:  4,
	}

	received := mint.ToReceived(issued)
	assert.Equal(t, issued.Base, received.Base)
	assert.Equal(t, mint.StatusActive, received.Status)

	received.Title = "changed"
	assert.Equal(t, "Coffee", issued.Title, "collector view must not alias the issuer record")
}

func TestExpiry_JSON(t *testing.T) {
	e := mint.NewExpiry(2027, time.March)
	data, err := e.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2027-03"`, string(data))

	var parsed mint.Expiry
	require.NoError(t, parsed.UnmarshalJSON(data))
	assert.Equal(t, e, parsed)

	assert.Error(t, parsed.UnmarshalJSON([]byte(`"2027-13"`)))
	assert.Error(t, parsed.UnmarshalJSON([]byte(`1700000000000`)))
}

func TestExpiryAfter(t *testing.T) {
	assert.Equal(t, mint.NewExpiry(2027, time.June), mint.ExpiryAfter(now, 12))
	assert.Equal(t, mint.NewExpiry(2027, time.February), mint.ExpiryAfter(time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), 2))
}

func TestCheckFields(t *testing.T) {
	valid := &mint.IssuerMint{
		Base:       mint.Base{VisualConfig: mint.VisualConfig{Effect: mint.EffectMirror}},
		Status:     mint.StatusActive,
		TotalUnits: 2,
		UsedUnits:  1,
	}
	assert.NoError(t, mint.CheckFields(valid))

	badStatus := *valid
	badStatus.Status = mint.StatusUsed
	assert.ErrorIs(t, mint.CheckFields(&badStatus), mint.ErrDecode)

	overUsed := *valid
	overUsed.UsedUnits = 3
	assert.ErrorIs(t, mint.CheckFields(&overUsed), mint.ErrDecode)

	badEffect := &mint.ReceivedMint{
		Base:   mint.Base{VisualConfig: mint.VisualConfig{Effect: "gold"}},
		Status: mint.StatusActive,
	}
	assert.ErrorIs(t, mint.CheckFields(badEffect), mint.ErrDecode)

	redeemedReceived := &mint.ReceivedMint{Status: mint.StatusRedeemed}
	assert.ErrorIs(t, mint.CheckFields(redeemedReceived), mint.ErrDecode)
}
