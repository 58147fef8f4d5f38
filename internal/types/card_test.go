package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"grocery", "grocery"},
		{"Grocery", "grocery"},
		{"  Delivery App ", "delivery_app"},
		{"subscription-video", "subscription_video"},
		{"crypto", "other"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCategory(tt.in), "input %q", tt.in)
	}
}

func TestSpendingCategoriesFiltersZeroAndUnknown(t *testing.T) {
	intent := UserIntent{
		Spending: map[string]SpendingEntry{
			"grocery":     {Amount: dec(300)},
			"cafe":        {Amount: dec(0)},
			"made_up_cat": {Amount: dec(50)},
		},
	}
	categories := intent.SpendingCategories()
	assert.Equal(t, map[string]bool{"grocery": true}, categories)
}
