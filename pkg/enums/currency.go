package enums

import (
	"fmt"
	"slices"
	"strings"
)

// Currency is an ISO 4217 code that transfers and stock balances are held in.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	// CurrencyBIF is the Burundian franc, paid out on the receiving side.
	CurrencyBIF Currency = "BIF"
)

var currencies = []Currency{CurrencyEUR, CurrencyUSD, CurrencyBIF}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	return slices.Contains(currencies, c)
}

// ParseCurrency accepts codes in any case with surrounding whitespace.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
