package mint

import "time"

// DeleteContext says who is asking to delete a mint.
type DeleteContext string

const (
	// ContextIssuer is the issuer removing one of its own mints.
	ContextIssuer DeleteContext = "issuer"

	// ContextCollection is a collector discarding a received mint.
	ContextCollection DeleteContext = "collection"
)

// IsExpired reports whether e lies before the current month in the local calendar.
func IsExpired(e Expiry) bool {
	return IsExpiredAt(e, time.Now())
}

// IsExpiredAt compares year and month only; the expiry month itself is still valid.
func IsExpiredAt(e Expiry, now time.Time) bool {
	currentYear, currentMonth := now.Year(), now.Month()
	if e.Year < currentYear {
		return true
	}
	return e.Year == currentYear && e.Month < currentMonth
}

// CanDelete applies the deletion rules. A collector may always discard a
// received mint; an issuer may only delete a mint that is redeemed or expired.
func CanDelete(m Mint, ctx DeleteContext) bool {
	return CanDeleteAt(m, ctx, time.Now())
}

// CanDeleteAt is CanDelete with an explicit clock.
func CanDeleteAt(m Mint, ctx DeleteContext, now time.Time) bool {
	if ctx == ContextCollection {
		return true
	}

	issued, ok := m.(*IssuerMint)
	if !ok {
		return false
	}
	return issued.Status == StatusRedeemed || IsExpiredAt(issued.ExpiresAt, now)
}

// Redeem consumes units from an issuer mint. The mint flips to redeemed once
// every unit is used.
func (m *IssuerMint) Redeem(units int, now time.Time) error {
	if units <= 0 {
		return ErrInvalidUnits
	}
	if m.Status == StatusRedeemed {
		return ErrAlreadyClosed
	}
	if IsExpiredAt(m.ExpiresAt, now) {
		return ErrExpired
	}
	if units > m.RemainingUnits() {
		return ErrUnitsExhausted
	}

	m.UsedUnits += units
	if m.UsedUnits == m.TotalUnits {
		m.Status = StatusRedeemed
	}
	return nil
}

// MarkRedeemed closes an issuer mint manually, leaving its counters untouched.
func (m *IssuerMint) MarkRedeemed() error {
	if m.Status == StatusRedeemed {
		return ErrAlreadyClosed
	}
	m.Status = StatusRedeemed
	return nil
}

// MarkUsed moves a received mint from active to used.
func (m *ReceivedMint) MarkUsed() error {
	if m.Status == StatusUsed {
		return ErrAlreadyUsed
	}
	m.Status = StatusUsed
	return nil
}
