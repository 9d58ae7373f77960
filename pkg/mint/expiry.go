package mint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Expiry is a month-granular expiry boundary, serialized as "YYYY-MM".
// A mint stays valid through the whole of its expiry month.
type Expiry struct {
	Year  int
	Month time.Month
}

// NewExpiry builds an Expiry from a year and month.
func NewExpiry(year int, month time.Month) Expiry {
	return Expiry{Year: year, Month: month}
}

// ExpiryAfter returns the expiry that lies the given number of months after t.
func ExpiryAfter(t time.Time, months int) Expiry {
	shifted := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	return Expiry{Year: shifted.Year(), Month: shifted.Month()}
}

// ParseExpiry parses the "YYYY-MM" form.
func ParseExpiry(s string) (Expiry, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Expiry{}, fmt.Errorf("invalid expiry %q: want YYYY-MM", s)
	}
	return Expiry{Year: t.Year(), Month: t.Month()}, nil
}

// IsZero reports whether the expiry is unset.
func (e Expiry) IsZero() bool {
	return e.Year == 0 && e.Month == 0
}

func (e Expiry) String() string {
	if e.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", e.Year, int(e.Month))
}

// MarshalJSON implements json.Marshaler.
func (e Expiry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expiry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expiry must be a string: %w", err)
	}
	if s == "" {
		*e = Expiry{}
		return nil
	}
	parsed, err := ParseExpiry(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
