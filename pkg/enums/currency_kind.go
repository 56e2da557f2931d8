package enums

import "fmt"

// CurrencyKind selects which stored-value bucket an operation draws from.
type CurrencyKind string

const (
	CurrencyKindBalance    CurrencyKind = "balance"
	CurrencyKindStarsMeal  CurrencyKind = "stars_meal"
	CurrencyKindStarsDrink CurrencyKind = "stars_drink"
)

var validCurrencyKinds = []CurrencyKind{
	CurrencyKindBalance,
	CurrencyKindStarsMeal,
	CurrencyKindStarsDrink,
}

// IsValid reports whether the value is known.
func (k CurrencyKind) IsValid() bool {
	for _, candidate := range validCurrencyKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsStars reports whether the bucket is one of the integer star counters.
func (k CurrencyKind) IsStars() bool {
	return k == CurrencyKindStarsMeal || k == CurrencyKindStarsDrink
}

// ParseCurrencyKind converts raw input into a CurrencyKind.
func ParseCurrencyKind(value string) (CurrencyKind, error) {
	for _, candidate := range validCurrencyKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency kind %q", value)
}
