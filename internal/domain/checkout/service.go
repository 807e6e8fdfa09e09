// Package checkout implements the checkout session: cart lines with
// snapshotted prices, form fields that may be filled in any order, one
// readiness predicate and an idempotent submit.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Item is a requested cart line.
type Item struct {
	ProductID string
	Quantity  int
}

// Config tunes session behavior.
type Config struct {
	// AutoSelectZone picks the first zone when the saved address is chosen
	// and no zone is selected yet.
	AutoSelectZone bool
	// Clock overrides time.Now.
	Clock func() time.Time
}

// Service starts and looks up checkout sessions.
type Service struct {
	products product.Repository
	source   catalog.Source
	gateway  Gateway
	users    user.Provider
	store    *Store
	tracer   trace.Tracer
	cfg      Config
}

// NewService creates a checkout Service.
func NewService(
	products product.Repository,
	source catalog.Source,
	gateway Gateway,
	users user.Provider,
	store *Store,
	tp trace.TracerProvider,
	cfg Config,
) *Service {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		products: products,
		source:   source,
		gateway:  gateway,
		users:    users,
		store:    store,
		tracer:   tp.Tracer("storefront/checkout"),
		cfg:      cfg,
	}
}

// Start opens a session for items. Unit prices are read once here and never
// re-fetched; the catalog snapshot is taken once as well. Catalog failures
// do not prevent the session from starting and are reported on its draft.
func (s *Service) Start(ctx context.Context, items []Item) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Start")
	defer span.End()

	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		lines = append(lines, pricing.Line{
			ProductID: p.ID,
			Title:     p.Name,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
		})
	}

	us, err := s.users.Current(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "current user")
	}

	snap := catalog.Load(ctx, s.source, s.cfg.Clock())
	if err := snap.Err(); err != nil {
		zctx.From(ctx).Warn("Catalog unavailable for checkout", zap.Error(err))
	}

	sess := &Session{
		id:             uuid.New().String(),
		userID:         us.UserID,
		gateway:        s.gateway,
		source:         s.source,
		clock:          s.cfg.Clock,
		autoSelectZone: s.cfg.AutoSelectZone,
		lines:          lines,
		snapshot:       snap,
		email:          us.Email,
		contact:        Contact{Email: us.Email},
	}
	s.store.Put(sess)

	span.SetAttributes(
		attribute.String("checkout.session_id", sess.id),
		attribute.Int("checkout.lines", len(lines)),
	)
	return sess, nil
}

// Get returns a live session.
func (s *Service) Get(_ context.Context, id string) (*Session, error) {
	return s.store.Get(id)
}

// Submit places the order for a live session.
func (s *Service) Submit(ctx context.Context, id string) (Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Submit")
	defer span.End()

	sess, err := s.store.Get(id)
	if err != nil {
		return Receipt{}, err
	}
	r, err := sess.Submit(ctx)
	if err != nil {
		span.RecordError(err)
		return Receipt{}, err
	}
	span.SetAttributes(attribute.String("order.id", r.OrderID))
	return r, nil
}

// Abandon discards a session without persisting anything.
func (s *Service) Abandon(_ context.Context, id string) error {
	return s.store.Delete(id)
}
