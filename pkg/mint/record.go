package mint

import (
	"encoding/json"
	"fmt"
)

// record is the persisted form of a mint: the variant tag plus the long-form body.
type record struct {
	Kind Kind            `json:"kind"`
	Mint json.RawMessage `json:"mint"`
}

// MarshalRecord serializes a mint together with its variant tag.
func MarshalRecord(m Mint) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mint: %w", err)
	}
	return json.Marshal(record{Kind: m.Kind(), Mint: body})
}

// UnmarshalRecord restores a mint written by MarshalRecord.
func UnmarshalRecord(data []byte) (Mint, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse mint record: %w", err)
	}

	var m Mint
	switch rec.Kind {
	case KindIssuer:
		m = &IssuerMint{}
	case KindReceived:
		m = &ReceivedMint{}
	default:
		return nil, fmt.Errorf("unknown mint kind %q", rec.Kind)
	}

	if err := json.Unmarshal(rec.Mint, m); err != nil {
		return nil, fmt.Errorf("failed to parse %s mint: %w", rec.Kind, err)
	}
	return m, nil
}
