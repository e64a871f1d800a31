package constants

import (
	"strings"
)

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	INR Currency = "INR"
	JPY Currency = "JPY"
	CHF Currency = "CHF"
)

var allCurrencies = []Currency{USD, EUR, GBP, CAD, AUD, INR, JPY, CHF}

func CurrencyCodes() []string {
	result := make([]string, len(allCurrencies))
	for i, c := range allCurrencies {
		result[i] = string(c)
	}
	return result
}

// CanonicalizeCurrency maps a symbol, code or common name to an ISO code.
// Unknown input is returned upper-cased with ok=false.
func CanonicalizeCurrency(input string) (Currency, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	symbols := map[string]Currency{
		"$":       USD,
		"us$":     USD,
		"dollar":  USD,
		"dollars": USD,
		"€":       EUR,
		"euro":    EUR,
		"euros":   EUR,
		"£":       GBP,
		"pound":   GBP,
		"pounds":  GBP,
		"₹":       INR,
		"rupee":   INR,
		"rupees":  INR,
		"¥":       JPY,
		"yen":     JPY,
		"c$":      CAD,
		"a$":      AUD,
	}
	if c, ok := symbols[normalized]; ok {
		return c, true
	}

	for _, c := range allCurrencies {
		if normalized == strings.ToLower(string(c)) {
			return c, true
		}
	}
	return Currency(strings.ToUpper(normalized)), false
}
