package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	listZonesSQL = `SELECT id, name, cost FROM shipping_zones ORDER BY position, id`

	upsertZoneSQL = `INSERT INTO shipping_zones (id, name, cost, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			cost = EXCLUDED.cost,
			position = EXCLUDED.position`

	listDiscountsSQL = `SELECT id, product_id, percentage, starts_at, ends_at, created_at
		FROM discounts ORDER BY created_at, id`

	upsertDiscountSQL = `INSERT INTO discounts (id, product_id, percentage, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			percentage = EXCLUDED.percentage,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at
		RETURNING created_at`

	deleteDiscountSQL = `DELETE FROM discounts WHERE id = $1`
)

var (
	_ catalog.Source      = (*CatalogRepository)(nil)
	_ discount.Repository = (*CatalogRepository)(nil)
)

// CatalogRepository serves shipping zones and discounts from PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Zones returns shipping zones in display order.
func (r *CatalogRepository) Zones(ctx context.Context) ([]catalog.Zone, error) {
	rows, err := r.pool.Query(ctx, listZonesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing shipping zones: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Zone, error) {
		var z catalog.Zone
		err := row.Scan(&z.ID, &z.Name, &z.Cost)
		return z, err
	})
}

// SaveZone inserts or replaces a shipping zone at the given position.
func (r *CatalogRepository) SaveZone(ctx context.Context, z catalog.Zone, position int) error {
	if _, err := r.pool.Exec(ctx, upsertZoneSQL, z.ID, z.Name, z.Cost, position); err != nil {
		return fmt.Errorf("saving shipping zone %q: %w", z.ID, err)
	}
	return nil
}

// Discounts returns every discount, oldest first. Stored percentages that
// do not parse come back as invalid percentages.
func (r *CatalogRepository) Discounts(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// Create inserts or replaces a discount.
func (r *CatalogRepository) Create(ctx context.Context, d *discount.Discount) error {
	err := r.pool.QueryRow(ctx, upsertDiscountSQL,
		d.ID, d.ProductID, d.Percentage.String(), d.StartsAt, d.EndsAt,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving discount %q: %w", d.ID, err)
	}
	return nil
}

// Delete removes a discount.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteDiscountSQL, id)
	if err != nil {
		return fmt.Errorf("deleting discount %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d   discount.Discount
		pct string
	)
	if err := row.Scan(&d.ID, &d.ProductID, &pct, &d.StartsAt, &d.EndsAt, &d.CreatedAt); err != nil {
		return discount.Discount{}, err
	}
	d.Percentage = discount.ParsePercentage(pct)
	return d, nil
}
