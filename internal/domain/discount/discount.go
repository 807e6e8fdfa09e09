package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a discount does not exist.
var ErrNotFound = errors.New("discount not found")

// Discount is a time-boxed percentage reduction on a single product.
//
// Several discounts may reference the same product over time. At most one
// is expected to be active at any instant, but nothing enforces it.
type Discount struct {
	ID         string
	ProductID  string
	Percentage Percentage
	StartsAt   time.Time
	EndsAt     time.Time
	CreatedAt  time.Time
}

// Repository provides read and admin write access to discount records.
type Repository interface {
	Discounts(ctx context.Context) ([]Discount, error)
	Create(ctx context.Context, d *Discount) error
	Delete(ctx context.Context, id string) error
}
