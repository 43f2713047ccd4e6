// Package normalize parses the date and amount tokens found on credit-card
// statements into canonical forms. Statement formats vary by issuer and
// locale; matching against a fixed ordered format list is simpler and more
// auditable than locale-detection heuristics.
package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts is tried in order; the first successful parse wins. Day-first
// formats come before the US month-first variants, ISO last.
var dateLayouts = []string{
	"02/01/2006", "02-01-2006", "02.01.2006",
	"02/01/06", "02-01-06", "02.01.06",
	"01/02/2006", "01-02-2006", "01.02.2006",
	"2006-01-02",
}

// Date attempts to parse a free-text date token. It returns false when no
// supported format matches; callers log a warning and treat the field as
// absent rather than failing the extraction.
func Date(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var currencyReplacer = strings.NewReplacer(
	"₹", "", "$", "", "£", "", "€", "",
	",", "", " ", "",
)

// Amount strips thousands separators and currency symbols from a token and
// parses it as a decimal. It returns false on failure; amounts never
// propagate parse errors.
func Amount(token string) (decimal.Decimal, bool) {
	token = strings.TrimSpace(currencyReplacer.Replace(token))
	if token == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
