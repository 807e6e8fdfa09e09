// Command seed-db loads the demo catalog, shipping zones, discounts and an
// admin API key.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/repository"
)

type options struct {
	databaseURL  string
	seedDir      string
	apiKey       string
	apiKeyPepper string
	adminEmail   string
	fakeProducts int
}

var fakeCategories = []string{"Waffle", "Cake", "Pie", "Macaron", "Brownie", "Tart"}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.seedDir, "seed-dir", "", "directory with products.json, zones.json and discounts.json (embedded demo data when empty)")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.StringVar(&opts.adminEmail, "admin-email", "", "register an admin user receiving order notifications")
	flag.IntVar(&opts.fakeProducts, "fake-products", 0, "number of generated products to add")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seed, err := fs.Sub(db.Seed, "seed")
	if err != nil {
		return errors.Wrap(err, "open embedded seed")
	}
	if opts.seedDir != "" {
		seed = os.DirFS(opts.seedDir)
	}

	products := repository.NewProductRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)

	if err := seedProducts(ctx, products, seed); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if opts.fakeProducts > 0 {
		if err := seedFakeProducts(ctx, products, opts.fakeProducts); err != nil {
			return errors.Wrap(err, "seed fake products")
		}
	}
	if err := seedZones(ctx, catalogRepo, seed); err != nil {
		return errors.Wrap(err, "seed zones")
	}
	if err := seedDiscounts(ctx, catalogRepo, seed); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	if opts.adminEmail != "" {
		if err := seedAdmin(ctx, repository.NewUserRepository(pool), opts.adminEmail); err != nil {
			return errors.Wrap(err, "seed admin")
		}
	}

	return nil
}

// readArray decodes a JSON array file, calling field for every object key.
// next is called after each object is complete.
func readArray(fsys fs.FS, name string, field func(d *jx.Decoder, key string) error, next func() error) error {
	slog.Info("reading seed file", slog.String("name", name))

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return errors.Wrapf(err, "read %s", name)
	}
	return jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		if err := d.Obj(field); err != nil {
			return err
		}
		return next()
	})
}

// str reads a string or a number as its literal text.
func str(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		return n.String(), err
	}
	return d.Str()
}

func amount(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := str(d)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

func seedProducts(ctx context.Context, repo product.Repository, fsys fs.FS) error {
	var p product.Product
	return readArray(fsys, "products.json", func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			p.ID, err = str(d)
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = amount(d)
		case "category":
			p.Category, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}, func() error {
		if err := repo.Save(ctx, &p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
		p = product.Product{}
		return nil
	})
}

func seedFakeProducts(ctx context.Context, repo product.Repository, n int) error {
	slog.Info("generating products", slog.Int("count", n))

	for i := range n {
		p := product.Product{
			ID:       "fake-" + gofakeit.Numerify("######"),
			Name:     gofakeit.Company() + " " + fakeCategories[gofakeit.Number(0, len(fakeCategories)-1)],
			Price:    decimal.New(int64(gofakeit.Number(150, 2500)), -2),
			Category: fakeCategories[gofakeit.Number(0, len(fakeCategories)-1)],
			Image:    fmt.Sprintf("img/fake-%s.jpg", gofakeit.Numerify("####")),
		}
		if err := repo.Save(ctx, &p); err != nil {
			return errors.Wrapf(err, "upsert fake product %d", i)
		}
	}
	return nil
}

type zoneSaver interface {
	SaveZone(ctx context.Context, z catalog.Zone, position int) error
}

func seedZones(ctx context.Context, repo zoneSaver, fsys fs.FS) error {
	var (
		z        catalog.Zone
		position int
	)
	return readArray(fsys, "zones.json", func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			z.ID, err = str(d)
		case "name":
			z.Name, err = d.Str()
		case "cost":
			z.Cost, err = amount(d)
		default:
			err = d.Skip()
		}
		return err
	}, func() error {
		if err := repo.SaveZone(ctx, z, position); err != nil {
			return errors.Wrapf(err, "upsert zone %s", z.ID)
		}
		slog.Info("upserted zone", slog.String("id", z.ID), slog.String("cost", z.Cost.StringFixed(2)))
		position++
		z = catalog.Zone{}
		return nil
	})
}

// seedDiscounts accepts product ids and percentages as strings or numbers.
func seedDiscounts(ctx context.Context, repo discount.Repository, fsys fs.FS) error {
	var disc discount.Discount
	parseTime := func(d *jx.Decoder) (time.Time, error) {
		s, err := d.Str()
		if err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339, s)
	}
	return readArray(fsys, "discounts.json", func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			disc.ID, err = str(d)
		case "product_id":
			disc.ProductID, err = str(d)
		case "percentage":
			err = disc.Percentage.Decode(d)
		case "starts_at":
			disc.StartsAt, err = parseTime(d)
		case "ends_at":
			disc.EndsAt, err = parseTime(d)
		default:
			err = d.Skip()
		}
		return err
	}, func() error {
		if !disc.Percentage.InBounds() {
			slog.Warn("skipping discount with invalid percentage",
				slog.String("id", disc.ID),
				slog.String("percentage", disc.Percentage.String()),
			)
			disc = discount.Discount{}
			return nil
		}
		if err := repo.Create(ctx, &disc); err != nil {
			return errors.Wrapf(err, "upsert discount %s", disc.ID)
		}
		slog.Info("upserted discount",
			slog.String("id", disc.ID),
			slog.String("product_id", disc.ProductID),
			slog.String("percentage", disc.Percentage.String()),
		)
		disc = discount.Discount{}
		return nil
	})
}

func seedAPIKey(ctx context.Context, repo auth.Repository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	k := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: handler.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := repo.Save(ctx, &k); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", k.ID), slog.String("name", k.Name))
	return nil
}

func seedAdmin(ctx context.Context, repo user.Repository, email string) error {
	u := user.User{
		ID:       uuid.NewString(),
		Email:    email,
		Username: strings.SplitN(email, "@", 2)[0],
		Role:     user.RoleAdmin,
	}
	switch err := repo.Create(ctx, &u); {
	case errors.Is(err, user.ErrExists):
		slog.Info("admin user already exists", slog.String("email", email))
		return nil
	case err != nil:
		return err
	}
	slog.Info("registered admin user", slog.String("id", u.ID), slog.String("email", email))
	return nil
}
