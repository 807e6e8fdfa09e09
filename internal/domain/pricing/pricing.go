// Package pricing totals cart lines against the active discount catalog.
//
// Every function here is pure. The customer is always charged the
// discounted price of a line when a discount is active at asOf, regardless
// of the price shown when the line entered the cart.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

// Line is a cart entry with its unit price snapshotted at the time it was
// added.
type Line struct {
	ProductID string
	Title     string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total is a line priced at a point in time.
type Total struct {
	Line       Line
	Original   decimal.Decimal
	Discounted decimal.Decimal
	// Applied is nil when no usable discount was active for the line.
	Applied *discount.Discount
}

// Quote aggregates priced lines.
type Quote struct {
	Lines    []Total
	Original decimal.Decimal
	Subtotal decimal.Decimal
}

// Savings is the amount taken off the original subtotal by discounts.
func (q Quote) Savings() decimal.Decimal {
	return q.Original.Sub(q.Subtotal)
}

// LineTotal prices a single line. A discount whose percentage is invalid is
// treated as absent.
func LineTotal(line Line, discounts []discount.Discount, asOf time.Time) Total {
	original := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	t := Total{
		Line:       line,
		Original:   original,
		Discounted: original,
	}

	d, ok := discount.FindActive(line.ProductID, discounts, asOf)
	if !ok {
		return t
	}
	discounted, ok := discount.DiscountedPrice(original, d.Percentage)
	if !ok {
		return t
	}
	t.Discounted = discounted
	t.Applied = &d
	return t
}

// Subtotal is the sum of discounted line totals.
func Subtotal(lines []Line, discounts []discount.Discount, asOf time.Time) decimal.Decimal {
	return Compute(lines, discounts, asOf).Subtotal
}

// Compute prices every line and sums both the original and discounted
// totals. No rounding is applied.
func Compute(lines []Line, discounts []discount.Discount, asOf time.Time) Quote {
	q := Quote{
		Lines:    make([]Total, 0, len(lines)),
		Original: decimal.Zero,
		Subtotal: decimal.Zero,
	}
	for _, l := range lines {
		t := LineTotal(l, discounts, asOf)
		q.Lines = append(q.Lines, t)
		q.Original = q.Original.Add(t.Original)
		q.Subtotal = q.Subtotal.Add(t.Discounted)
	}
	return q
}
