package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/models"
)

type fakeModelClient struct {
	response string
	err      error
	prompt   string
}

func (f *fakeModelClient) DescribeImage(_ context.Context, _ []byte, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"No fence", `{"price": 1}`, `{"price": 1}`},
		{"Json fence", "```json\n{\"price\": 1}\n```", `{"price": 1}`},
		{"Bare fence", "```\n{\"price\": 1}\n```", `{"price": 1}`},
		{"Fence with preamble", "Here is the data:\n```json\n{\"price\": 1}\n```", `{"price": 1}`},
		{"Unclosed fence", "```json\n{\"price\": 1}", `{"price": 1}`},
		{"Whitespace", "  {\"price\": 1}  ", `{"price": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.input); got != tt.expected {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParsePriceText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Plain", "2399.00", "2399.00", false},
		{"With currency", "RM 2,399.00", "2399.00", false},
		{"Dollar sign", "$1299.99", "1299.99", false},
		{"No digits", "free shipping", "", true},
		{"Empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePriceText(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsePriceText(%q): expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePriceText(%q): %v", tt.input, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("parsePriceText(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseVisionResponse(t *testing.T) {
	t.Run("complete response", func(t *testing.T) {
		raw := `{"price": 5499.00, "currency": "MYR", "availability": "In Stock", "seller_name": "Official Store", "quantity_available": 3, "confidence": 0.95}`

		result, err := parseVisionResponse(raw)
		require.NoError(t, err)

		assert.True(t, result.Price.Equal(decimal.RequireFromString("5499.00")))
		assert.Equal(t, "MYR", result.Currency)
		assert.Equal(t, "In Stock", result.Availability)
		assert.Equal(t, "Official Store", result.Seller)
		require.NotNil(t, result.Quantity)
		assert.Equal(t, 3, *result.Quantity)
		assert.Equal(t, 0.95, result.Confidence)
		assert.Equal(t, raw, result.RawResponse)
	})

	t.Run("fenced response", func(t *testing.T) {
		raw := "```json\n{\"price\": 1299.99, \"currency\": \"AUD\", \"availability\": \"Limited Stock\", \"seller_name\": \"tech_seller_au\", \"quantity_available\": null}\n```"

		result, err := parseVisionResponse(raw)
		require.NoError(t, err)

		assert.True(t, result.Price.Equal(decimal.RequireFromString("1299.99")))
		assert.Equal(t, "AUD", result.Currency)
		assert.Nil(t, result.Quantity)
	})

	t.Run("price as string", func(t *testing.T) {
		result, err := parseVisionResponse(`{"price": "RM 2,399.00", "currency": "MYR", "availability": "In Stock"}`)
		require.NoError(t, err)
		assert.True(t, result.Price.Equal(decimal.RequireFromString("2399.00")))
	})

	t.Run("missing price is a parse error", func(t *testing.T) {
		_, err := parseVisionResponse(`{"price": null, "currency": "MYR", "availability": "In Stock"}`)
		require.Error(t, err)

		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("invalid json is a parse error", func(t *testing.T) {
		_, err := parseVisionResponse("I could not find a price on this page.")
		require.Error(t, err)

		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("defaults applied", func(t *testing.T) {
		result, err := parseVisionResponse(`{"price": 10}`)
		require.NoError(t, err)

		assert.Equal(t, "Unknown", result.Availability)
		assert.Equal(t, 1.0, result.Confidence)
		assert.Empty(t, result.Seller)
	})
}

func TestVisionExtractor(t *testing.T) {
	target := models.ScrapeTarget{
		ProductID:    1,
		ProductName:  "PS5 Slim Disc Edition",
		PlatformName: "Lazada MY",
	}
	artifact := &models.CaptureArtifact{Image: []byte{0x89, 0x50}}

	t.Run("prompt names the product", func(t *testing.T) {
		client := &fakeModelClient{response: `{"price": 2399, "currency": "MYR", "availability": "In Stock"}`}
		v := NewVisionExtractor(client)

		result, err := v.Extract(context.Background(), target, artifact)
		require.NoError(t, err)

		assert.True(t, strings.Contains(client.prompt, "PS5 Slim Disc Edition"))
		assert.True(t, result.Price.Equal(decimal.NewFromInt(2399)))
	})

	t.Run("model failure propagates", func(t *testing.T) {
		client := &fakeModelClient{err: errors.New("rate limited")}
		v := NewVisionExtractor(client)

		_, err := v.Extract(context.Background(), target, artifact)
		require.Error(t, err)
		assert.ErrorIs(t, err, client.err)
	})
}
