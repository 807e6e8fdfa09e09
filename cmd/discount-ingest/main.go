// Command discount-ingest loads discount feeds into the catalog.
//
// Feeds are gzip-compressed CSV files with the columns
// id,product_id,percentage,starts_at,ends_at. Rows for products the store
// does not sell are dropped through a bloom filter of known product ids;
// its false positives only admit discounts that can never match a cart
// line. When a discount id repeats, the row from the later file wins.
//
// With --redis-url (or REDIS_URL) the cached discount list read by running
// API servers is dropped after the write; otherwise they serve the previous
// list until the cache TTL expires.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/repository"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	numColumns    = 5
)

// fileResult holds the rows kept from one feed file.
type fileResult struct {
	discounts []discount.Discount
	skipped   int
}

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		redisURL    string
		workers     int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing discount feeds")
	flag.StringVar(&pattern, "pattern", "discounts*.csv.gz", "glob selecting feed files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL of the catalog cache to invalidate (or REDIS_URL env)")
	flag.IntVar(&workers, "workers", 4, "files parsed concurrently")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, redisURL, workers); err != nil {
		slog.Error("discount ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL, redisURL string, workers int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "match feed files")
	}
	if len(files) == 0 {
		slog.Info("no feed files found", slog.String("dir", dataDir), slog.String("pattern", pattern))
		return nil
	}
	sort.Strings(files)

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// Pass 1: index the products on sale.
	ids, err := repository.NewProductRepository(pool).IDs(ctx)
	if err != nil {
		return errors.Wrap(err, "list product ids")
	}
	known := productFilter(ids)
	slog.Info("product filter built", slog.Int("products", len(ids)))

	// Pass 2: parse feeds concurrently.
	slog.Info("parsing feeds", slog.Int("files", len(files)))

	discounts, err := parseFeeds(ctx, files, known, workers)
	if err != nil {
		return errors.Wrap(err, "parse feeds")
	}
	if len(discounts) == 0 {
		slog.Info("no discounts to write")
		return nil
	}

	if err := writeDiscounts(ctx, repository.NewCatalogRepository(pool), discounts); err != nil {
		return err
	}
	if redisURL == "" {
		slog.Info("no redis configured, cached discounts expire with their TTL")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	return invalidateCache(ctx, rdb)
}

// invalidateCache drops the cached discount list so servers reload it.
func invalidateCache(ctx context.Context, rdb redis.Cmdable) error {
	if err := rdb.Del(ctx, cache.KeyDiscounts).Err(); err != nil {
		return errors.Wrap(err, "invalidate cached discounts")
	}
	slog.Info("cached discounts invalidated", slog.String("key", cache.KeyDiscounts))
	return nil
}

func productFilter(ids []string) *bloom.BloomFilter {
	f := bloom.NewWithEstimates(uint(max(len(ids), 1)), bloomFPR)
	for _, id := range ids {
		f.AddString(strings.TrimSpace(id))
	}
	return f
}

// parseFeeds reads every file and merges the rows by discount id in file
// order.
func parseFeeds(ctx context.Context, files []string, known *bloom.BloomFilter, workers int) ([]discount.Discount, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, f := range files {
		g.Go(func() error {
			r, err := parseFile(ctx, f, known)
			if err != nil {
				return errors.Wrapf(err, "parse %s", filepath.Base(f))
			}
			results[i] = r
			slog.Info("feed parsed",
				slog.String("file", filepath.Base(f)),
				slog.Int("kept", len(r.discounts)),
				slog.Int("skipped", r.skipped),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]int)
	var merged []discount.Discount
	for _, r := range results {
		for _, d := range r.discounts {
			if i, ok := byID[d.ID]; ok {
				merged[i] = d
				continue
			}
			byID[d.ID] = len(merged)
			merged = append(merged, d)
		}
	}
	return merged, nil
}

func parseFile(ctx context.Context, path string, known *bloom.BloomFilter) (fileResult, error) {
	var res fileResult
	err := streamGzFile(ctx, path, func(row []string) {
		d, err := parseRow(row)
		if err != nil || !known.TestString(d.ProductID) {
			res.skipped++
			return
		}
		res.discounts = append(res.discounts, d)
	})
	return res, err
}

// parseRow converts one CSV record. The percentage must lie in [0, 100]
// and the window must not end before it starts.
func parseRow(row []string) (discount.Discount, error) {
	if len(row) != numColumns {
		return discount.Discount{}, errors.Errorf("expected %d columns, got %d", numColumns, len(row))
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	d := discount.Discount{
		ID:         row[0],
		ProductID:  row[1],
		Percentage: discount.ParsePercentage(row[2]),
	}
	if d.ID == "" || d.ProductID == "" {
		return discount.Discount{}, errors.New("missing id")
	}
	if !d.Percentage.InBounds() {
		return discount.Discount{}, errors.Errorf("percentage %q out of range", row[2])
	}

	var err error
	if d.StartsAt, err = time.Parse(time.RFC3339, row[3]); err != nil {
		return discount.Discount{}, errors.Wrap(err, "starts_at")
	}
	if d.EndsAt, err = time.Parse(time.RFC3339, row[4]); err != nil {
		return discount.Discount{}, errors.Wrap(err, "ends_at")
	}
	if d.EndsAt.Before(d.StartsAt) {
		return discount.Discount{}, errors.New("ends before it starts")
	}
	return d, nil
}

// streamGzFile opens a gzip-compressed CSV file and calls fn for each
// record after the header.
func streamGzFile(ctx context.Context, path string, fn func(row []string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var count uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		count++
		if count == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "id") {
			continue
		}
		if count%progressEvery == 0 {
			slog.Info("parse progress", slog.String("file", filepath.Base(path)), slog.Uint64("rows", count))
		}
		fn(row)
	}
}

// writeDiscounts upserts every discount.
func writeDiscounts(ctx context.Context, repo discount.Repository, ds []discount.Discount) error {
	slog.Info("writing discounts to database", slog.Int("count", len(ds)))

	for i := range ds {
		if err := repo.Create(ctx, &ds[i]); err != nil {
			return errors.Wrapf(err, "upsert discount %s", ds[i].ID)
		}
		if (i+1)%100 == 0 || i+1 == len(ds) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(ds)))
		}
	}
	return nil
}
