package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency all persisted prices are normalized into.
const BaseCurrency = "MYR"

// rates maps a currency code to its value in the base currency.
// The table is static configuration; staleness is an accepted
// limitation, not something the converter tries to fix at runtime.
var rates = map[string]decimal.Decimal{
	"MYR": decimal.NewFromInt(1),
	"AUD": decimal.RequireFromString("3.18"),
	"USD": decimal.RequireFromString("4.67"),
	"SGD": decimal.RequireFromString("3.48"),
	"CNY": decimal.RequireFromString("0.65"),
	"EUR": decimal.RequireFromString("5.10"),
	"GBP": decimal.RequireFromString("5.95"),
}

// UnknownCurrencyError indicates a currency code with no entry in the
// rate table.
type UnknownCurrencyError struct {
	Code string
}

func (e UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency: %q", e.Code)
}

// NormalizeCode uppercases and trims a currency code and maps local
// aliases to their ISO form ("RM" is how Malaysian sites print MYR).
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "RM" {
		return "MYR"
	}
	return code
}

// Recognized reports whether a code (after normalization) can be
// converted.
func Recognized(code string) bool {
	_, ok := rates[NormalizeCode(code)]
	return ok
}

// Convert converts an amount from the given currency into the base
// currency. Converting from the base currency is the identity.
func Convert(amount decimal.Decimal, from string) (decimal.Decimal, error) {
	code := NormalizeCode(from)
	if code == BaseCurrency {
		return amount, nil
	}

	rate, ok := rates[code]
	if !ok {
		return decimal.Zero, UnknownCurrencyError{Code: from}
	}

	return amount.Mul(rate), nil
}

// Format renders an amount as a base-currency display string,
// e.g. "RM 5,379.00".
func Format(amount decimal.Decimal) string {
	s := amount.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("RM %s%s.%s", sign, b.String(), frac)
}
