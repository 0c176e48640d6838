package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO code used when issuing checkout sessions. Stripe expects lowercase.
type Currency string

const (
	CurrencyPKR Currency = "pkr"
	CurrencyUSD Currency = "usd"
)

var validCurrencies = []Currency{
	CurrencyPKR,
	CurrencyUSD,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency, ignoring case.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
