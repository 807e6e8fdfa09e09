package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Image    string
}

// ImageURL resolves the image path against base. Absolute URLs and empty
// paths are returned unchanged.
func (p Product) ImageURL(base string) string {
	if p.Image == "" || base == "" || strings.Contains(p.Image, "://") {
		return p.Image
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p.Image, "/")
}

// Filter narrows a product listing. Zero values match everything.
type Filter struct {
	Category string
}

// Repository reads the catalog and applies admin edits. Save upserts by ID.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Save(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
