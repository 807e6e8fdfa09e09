package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/discount"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var asOf = time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

func activeDiscount(productID, pct string) discount.Discount {
	return discount.Discount{
		ID:         "disc-" + productID,
		ProductID:  productID,
		Percentage: discount.ParsePercentage(pct),
		StartsAt:   asOf.AddDate(0, 0, -7),
		EndsAt:     asOf.AddDate(0, 0, 7),
	}
}

func sampleCart() []Line {
	return []Line{
		{ProductID: "1", Title: "Waffle", UnitPrice: d("50"), Quantity: 2},
		{ProductID: "2", Title: "Brownie", UnitPrice: d("30"), Quantity: 1},
	}
}

func TestSubtotal(t *testing.T) {
	expired := activeDiscount("1", "10")
	expired.EndsAt = asOf.Add(-time.Millisecond)

	tests := []struct {
		name      string
		discounts []discount.Discount
		want      decimal.Decimal
	}{
		{name: "no discounts", want: d("130.00")},
		{name: "10% on item 1", discounts: []discount.Discount{activeDiscount("1", "10")}, want: d("120.00")},
		{name: "expired discount ignored", discounts: []discount.Discount{expired}, want: d("130")},
		{name: "malformed percentage ignored", discounts: []discount.Discount{activeDiscount("1", "n/a")}, want: d("130")},
		{
			name:      "both lines discounted",
			discounts: []discount.Discount{activeDiscount("1", "50"), activeDiscount("2", "25")},
			want:      d("72.5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtotal(sampleCart(), tt.discounts, asOf)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestSubtotalEmptyCart(t *testing.T) {
	assert.True(t, Subtotal(nil, nil, asOf).IsZero())
}

func TestLineTotal(t *testing.T) {
	line := Line{ProductID: "1", UnitPrice: d("50"), Quantity: 2}

	t.Run("without discount", func(t *testing.T) {
		got := LineTotal(line, nil, asOf)
		assert.True(t, d("100").Equal(got.Original))
		assert.True(t, d("100").Equal(got.Discounted))
		assert.Nil(t, got.Applied)
	})

	t.Run("with discount", func(t *testing.T) {
		disc := activeDiscount("1", "10")
		got := LineTotal(line, []discount.Discount{disc}, asOf)
		assert.True(t, d("100").Equal(got.Original))
		assert.True(t, d("90").Equal(got.Discounted))
		require.NotNil(t, got.Applied)
		assert.Equal(t, disc.ID, got.Applied.ID)
	})

	t.Run("with invalid discount", func(t *testing.T) {
		got := LineTotal(line, []discount.Discount{activeDiscount("1", "")}, asOf)
		assert.True(t, d("100").Equal(got.Discounted))
		assert.Nil(t, got.Applied)
	})
}

func TestComputeMatchesPerLineDiscountedPrice(t *testing.T) {
	discounts := []discount.Discount{activeDiscount("1", "12.5")}
	q := Compute(sampleCart(), discounts, asOf)
	require.Len(t, q.Lines, 2)

	want := decimal.Zero
	for _, l := range sampleCart() {
		original := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if disc, ok := discount.FindActive(l.ProductID, discounts, asOf); ok {
			original, _ = discount.DiscountedPrice(original, disc.Percentage)
		}
		want = want.Add(original)
	}

	assert.True(t, want.Equal(q.Subtotal))
	assert.True(t, d("130").Equal(q.Original))
	assert.True(t, d("12.5").Equal(q.Savings()))
}
