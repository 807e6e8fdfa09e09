// Package catalog holds the read-only reference data a checkout session
// prices against: shipping zones and discounts.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

// Resource names reported by CatalogLoadError.
const (
	ResourceZones     = "zones"
	ResourceDiscounts = "discounts"
)

// ErrZoneNotFound is returned when a shipping zone does not exist.
var ErrZoneNotFound = errors.New("shipping zone not found")

// Zone is a named shipping region with a flat cost.
type Zone struct {
	ID   string
	Name string
	Cost decimal.Decimal
}

// Source loads catalog data. Implementations may fail transiently; callers
// surface failures as retryable.
type Source interface {
	Zones(ctx context.Context) ([]Zone, error)
	Discounts(ctx context.Context) ([]discount.Discount, error)
}

// CatalogLoadError reports that a catalog resource could not be loaded.
type CatalogLoadError struct {
	Resource string
	Err      error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Resource, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// Snapshot is the catalog as seen at LoadedAt. Zones and discounts load
// independently: a failure of one is recorded without discarding the other.
type Snapshot struct {
	Zones        []Zone
	Discounts    []discount.Discount
	ZonesErr     error
	DiscountsErr error
	LoadedAt     time.Time
}

// Load fetches zones and discounts from src. It never returns an error;
// failures are kept on the snapshot as *CatalogLoadError values.
func Load(ctx context.Context, src Source, now time.Time) *Snapshot {
	s := &Snapshot{LoadedAt: now}

	zones, err := src.Zones(ctx)
	if err != nil {
		s.ZonesErr = &CatalogLoadError{Resource: ResourceZones, Err: err}
	} else {
		s.Zones = zones
	}

	discounts, err := src.Discounts(ctx)
	if err != nil {
		s.DiscountsErr = &CatalogLoadError{Resource: ResourceDiscounts, Err: err}
	} else {
		s.Discounts = discounts
	}
	return s
}

// Zone returns the zone with the given id.
func (s *Snapshot) Zone(id string) (Zone, error) {
	if s.ZonesErr != nil {
		return Zone{}, s.ZonesErr
	}
	for _, z := range s.Zones {
		if z.ID == id {
			return z, nil
		}
	}
	return Zone{}, ErrZoneNotFound
}

// Err returns the first load failure, zones before discounts.
func (s *Snapshot) Err() error {
	if s.ZonesErr != nil {
		return s.ZonesErr
	}
	return s.DiscountsErr
}
