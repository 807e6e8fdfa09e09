package discount

import (
	"math"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func januarySale() Discount {
	return Discount{
		ID:         "d1",
		ProductID:  "42",
		Percentage: ParsePercentage("20"),
		StartsAt:   date(2024, time.January, 1),
		EndsAt:     date(2024, time.January, 31),
	}
}

func TestIsActive(t *testing.T) {
	disc := januarySale()

	tests := []struct {
		name string
		asOf time.Time
		want bool
	}{
		{name: "middle of window", asOf: date(2024, time.January, 15), want: true},
		{name: "exactly at start", asOf: disc.StartsAt, want: true},
		{name: "exactly at end", asOf: disc.EndsAt, want: true},
		{name: "1ms before start", asOf: disc.StartsAt.Add(-time.Millisecond), want: false},
		{name: "1ms after end", asOf: disc.EndsAt.Add(time.Millisecond), want: false},
		{name: "day after window", asOf: date(2024, time.February, 1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsActive(disc, tt.asOf))
		})
	}
}

func TestFindActive(t *testing.T) {
	inJan := date(2024, time.January, 15)

	t.Run("active match", func(t *testing.T) {
		got, ok := FindActive("42", []Discount{januarySale()}, inJan)
		require.True(t, ok)
		assert.Equal(t, "d1", got.ID)
	})

	t.Run("expired", func(t *testing.T) {
		_, ok := FindActive("42", []Discount{januarySale()}, date(2024, time.February, 1))
		assert.False(t, ok)
	})

	t.Run("empty list", func(t *testing.T) {
		_, ok := FindActive("42", nil, inJan)
		assert.False(t, ok)
	})

	t.Run("no product match", func(t *testing.T) {
		_, ok := FindActive("7", []Discount{januarySale()}, inJan)
		assert.False(t, ok)
	})

	t.Run("ids compare after trimming", func(t *testing.T) {
		disc := januarySale()
		disc.ProductID = " 42 "
		_, ok := FindActive("42", []Discount{disc}, inJan)
		assert.True(t, ok)
	})

	t.Run("first active match wins", func(t *testing.T) {
		expired := januarySale()
		expired.ID = "old"
		expired.StartsAt = date(2023, time.January, 1)
		expired.EndsAt = date(2023, time.January, 31)

		first := januarySale()
		first.ID = "first"
		first.Percentage = ParsePercentage("5")

		second := januarySale()
		second.ID = "second"
		second.Percentage = ParsePercentage("50")

		got, ok := FindActive("42", []Discount{expired, first, second}, inJan)
		require.True(t, ok)
		assert.Equal(t, "first", got.ID)
	})
}

func TestDiscountedPrice(t *testing.T) {
	tests := []struct {
		name       string
		original   decimal.Decimal
		percentage Percentage
		want       decimal.Decimal
		wantOK     bool
	}{
		{name: "20% off 100", original: d("100.00"), percentage: ParsePercentage("20"), want: d("80"), wantOK: true},
		{name: "numeric percentage", original: d("50"), percentage: PercentageFromFloat(10), want: d("45"), wantOK: true},
		{name: "fractional percentage", original: d("19.99"), percentage: ParsePercentage("12.5"), want: d("17.49125"), wantOK: true},
		{name: "zero percent", original: d("30"), percentage: ParsePercentage("0"), want: d("30"), wantOK: true},
		{name: "full discount", original: d("30"), percentage: ParsePercentage("100"), want: d("0"), wantOK: true},
		{name: "above 100 passes through", original: d("10"), percentage: ParsePercentage("150"), want: d("-5"), wantOK: true},
		{name: "negative passes through", original: d("10"), percentage: ParsePercentage("-10"), want: d("11"), wantOK: true},
		{name: "malformed string", original: d("10"), percentage: ParsePercentage("abc"), want: d("10"), wantOK: false},
		{name: "NaN float", original: d("10"), percentage: PercentageFromFloat(math.NaN()), want: d("10"), wantOK: false},
		{name: "zero value", original: d("10"), percentage: Percentage{}, want: d("10"), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DiscountedPrice(tt.original, tt.percentage)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestDiscountAmountComplementsDiscountedPrice(t *testing.T) {
	prices := []string{"0", "0.01", "1", "9.99", "100", "1234.56", "99999.99"}
	for _, price := range prices {
		for pct := 0; pct <= 100; pct += 5 {
			original := d(price)
			p := NewPercentage(decimal.NewFromInt(int64(pct)))

			amount, ok := DiscountAmount(original, p)
			require.True(t, ok)
			discounted, ok := DiscountedPrice(original, p)
			require.True(t, ok)

			assert.True(t, original.Equal(amount.Add(discounted)),
				"price %s pct %d: %s + %s", price, pct, amount, discounted)
		}
	}
}

func TestDiscountAmountInvalid(t *testing.T) {
	amount, ok := DiscountAmount(d("10"), ParsePercentage(""))
	assert.False(t, ok)
	assert.True(t, amount.IsZero())
}

func TestPercentageDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{name: "number", input: `20`, wantValid: true, want: "20"},
		{name: "fractional number", input: `12.5`, wantValid: true, want: "12.5"},
		{name: "string", input: `"15"`, wantValid: true, want: "15"},
		{name: "padded string", input: `" 7.5 "`, wantValid: true, want: "7.5"},
		{name: "malformed string", input: `"ten"`, wantValid: false},
		{name: "null", input: `null`, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Percentage
			require.NoError(t, p.Decode(jx.DecodeStr(tt.input)))
			assert.Equal(t, tt.wantValid, p.Valid())
			if tt.wantValid {
				v, _ := p.Decimal()
				assert.True(t, d(tt.want).Equal(v))
			}
		})
	}

	t.Run("object rejected", func(t *testing.T) {
		var p Percentage
		assert.Error(t, p.Decode(jx.DecodeStr(`{}`)))
	})
}

func TestPercentageInBounds(t *testing.T) {
	assert.True(t, ParsePercentage("0").InBounds())
	assert.True(t, ParsePercentage("100").InBounds())
	assert.False(t, ParsePercentage("100.01").InBounds())
	assert.False(t, ParsePercentage("-1").InBounds())
	assert.False(t, ParsePercentage("x").InBounds())
}
