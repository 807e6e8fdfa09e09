package discount

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// IsActive reports whether asOf falls inside the discount window. Both ends
// are inclusive.
func IsActive(d Discount, asOf time.Time) bool {
	return !asOf.Before(d.StartsAt) && !asOf.After(d.EndsAt)
}

// FindActive returns the first discount in ds that targets productID and is
// active at asOf. When several active discounts target the same product the
// first one in iteration order wins; no attempt is made to pick the best.
func FindActive(productID string, ds []Discount, asOf time.Time) (Discount, bool) {
	id := normalizeID(productID)
	for _, d := range ds {
		if normalizeID(d.ProductID) == id && IsActive(d, asOf) {
			return d, true
		}
	}
	return Discount{}, false
}

// DiscountAmount returns original * p / 100. The second result is false when
// p is invalid, in which case no discount applies.
func DiscountAmount(original decimal.Decimal, p Percentage) (decimal.Decimal, bool) {
	v, ok := p.Decimal()
	if !ok {
		return decimal.Zero, false
	}
	return original.Mul(v).Shift(-2), true
}

// DiscountedPrice returns original * (1 - p/100). The second result is false
// when p is invalid and original is returned unchanged.
//
// DiscountedPrice(x, p) + DiscountAmount(x, p) == x holds exactly.
func DiscountedPrice(original decimal.Decimal, p Percentage) (decimal.Decimal, bool) {
	amount, ok := DiscountAmount(original, p)
	if !ok {
		return original, false
	}
	return original.Sub(amount), true
}

// normalizeID makes product identifiers comparable by their string form.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
