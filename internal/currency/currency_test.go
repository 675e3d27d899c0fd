package currency

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Already ISO", "MYR", "MYR"},
		{"Local alias", "RM", "MYR"},
		{"Lowercase", "usd", "USD"},
		{"With spaces", " aud ", "AUD"},
		{"Unknown passthrough", "XYZ", "XYZ"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeCode(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestConvertIdentityOnBase(t *testing.T) {
	amounts := []string{"0.01", "1", "5499.00", "999999.99"}
	for _, a := range amounts {
		amount := decimal.RequireFromString(a)
		got, err := Convert(amount, BaseCurrency)
		if err != nil {
			t.Fatalf("Convert(%s, %s) returned error: %v", a, BaseCurrency, err)
		}
		if !got.Equal(amount) {
			t.Errorf("Convert(%s, %s) = %s, want identity", a, BaseCurrency, got)
		}
	}

	// Alias of the base currency behaves the same.
	amount := decimal.RequireFromString("42.50")
	got, err := Convert(amount, "RM")
	if err != nil {
		t.Fatalf("Convert with RM alias returned error: %v", err)
	}
	if !got.Equal(amount) {
		t.Errorf("Convert(42.50, RM) = %s, want 42.50", got)
	}
}

func TestConvertRates(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		from     string
		expected string
	}{
		{"AUD", "100", "AUD", "318"},
		{"USD", "1", "USD", "4.67"},
		{"SGD", "10", "SGD", "34.8"},
		{"CNY", "100", "CNY", "65"},
		{"EUR", "2", "EUR", "10.20"},
		{"GBP", "1", "GBP", "5.95"},
		{"Lowercase code", "1", "usd", "4.67"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(decimal.RequireFromString(tt.amount), tt.from)
			if err != nil {
				t.Fatalf("Convert(%s, %s) returned error: %v", tt.amount, tt.from, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("Convert(%s, %s) = %s, want %s", tt.amount, tt.from, got, tt.expected)
			}
		})
	}
}

func TestConvertUnknownCurrency(t *testing.T) {
	for _, code := range []string{"XYZ", "BTC", ""} {
		_, err := Convert(decimal.NewFromInt(10), code)
		if err == nil {
			t.Fatalf("Convert with code %q: expected error, got nil", code)
		}
		var unknown UnknownCurrencyError
		if !errors.As(err, &unknown) {
			t.Errorf("Convert with code %q: error %v is not UnknownCurrencyError", code, err)
		}
	}
}

func TestRecognized(t *testing.T) {
	if !Recognized("myr") || !Recognized("RM") || !Recognized("USD") {
		t.Error("expected known codes to be recognized")
	}
	if Recognized("XYZ") {
		t.Error("expected XYZ to be unrecognized")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected string
	}{
		{"Simple", "5379", "RM 5,379.00"},
		{"With cents", "1234567.89", "RM 1,234,567.89"},
		{"Small", "0.5", "RM 0.50"},
		{"Hundreds", "999.99", "RM 999.99"},
		{"Negative", "-42", "RM -42.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(decimal.RequireFromString(tt.amount))
			if got != tt.expected {
				t.Errorf("Format(%s) = %q, want %q", tt.amount, got, tt.expected)
			}
		})
	}
}
