package codec

import "fmt"

// longToShort maps every field name that can appear in a transported mint,
// including the fields nested in visualConfig, to a single-character key.
var longToShort = map[string]string{
	"schemaVersion":   "x",
	"id":              "i",
	"title":           "t",
	"description":     "d",
	"visualConfig":    "v",
	"effect":          "f",
	"color":           "l",
	"image":           "g",
	"issuerPublicKey": "k",
	"signature":       "s",
	"createdAt":       "c",
	"expiresAt":       "e",
	"totalUnits":      "u",
	"usedUnits":       "n",
	"status":          "h",
}

// KeyTable is an immutable bijection between long and short field names.
type KeyTable struct {
	short map[string]string
	long  map[string]string
}

// keys is built once at package initialization and only read afterwards.
var keys = mustKeyTable(longToShort)

// NewKeyTable validates a mapping and returns its table. The mapping must be
// injective, and no short key may equal any long key.
func NewKeyTable(mapping map[string]string) (*KeyTable, error) {
	t := &KeyTable{
		short: make(map[string]string, len(mapping)),
		long:  make(map[string]string, len(mapping)),
	}

	for long, short := range mapping {
		if long == "" || short == "" {
			return nil, fmt.Errorf("empty key in mapping %q -> %q", long, short)
		}
		if prev, dup := t.long[short]; dup {
			return nil, fmt.Errorf("short key %q is used by both %q and %q", short, prev, long)
		}
		t.short[long] = short
		t.long[short] = long
	}

	for short, long := range t.long {
		if _, clash := t.short[short]; clash {
			return nil, fmt.Errorf("short key %q of %q is also a long field name", short, long)
		}
	}
	return t, nil
}

func mustKeyTable(mapping map[string]string) *KeyTable {
	t, err := NewKeyTable(mapping)
	if err != nil {
		panic("codec: invalid key table: " + err.Error())
	}
	return t
}

// Short returns the short form of a long key, if mapped.
func (t *KeyTable) Short(long string) (string, bool) {
	s, ok := t.short[long]
	return s, ok
}

// Long returns the long form of a short key, if mapped.
func (t *KeyTable) Long(short string) (string, bool) {
	l, ok := t.long[short]
	return l, ok
}

// IsShort reports whether k is one of the short keys.
func (t *KeyTable) IsShort(k string) bool {
	_, ok := t.long[k]
	return ok
}

// Keys returns the package key table.
func Keys() *KeyTable {
	return keys
}
