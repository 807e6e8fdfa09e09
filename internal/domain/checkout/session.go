package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// Gateway accepts a finished order. *order.Service implements it.
type Gateway interface {
	Submit(ctx context.Context, o *order.Order) (string, error)
}

// Contact is the delivery contact entered by the customer. Address is only
// required for order.ShippingNewAddress.
type Contact struct {
	Name    string
	Phone   string
	Address string
	Notes   string
	Email   string
}

// Receipt identifies a placed order.
type Receipt struct {
	OrderID      string
	Number       int64
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// Draft is a point-in-time view of a session. Totals are recomputed every
// time a draft is built.
type Draft struct {
	SessionID      string
	UserID         string
	Quote          pricing.Quote
	PaymentMethod  order.PaymentMethod
	ShippingMethod order.ShippingMethod
	Zone           *catalog.Zone
	Zones          []catalog.Zone
	Contact        Contact
	ShippingCost   decimal.Decimal
	GrandTotal     decimal.Decimal
	Status         order.Status
	// Missing is the first unmet requirement, empty when ready.
	Missing string
	// CatalogErr is set when zones or discounts failed to load.
	CatalogErr error
	Receipt    *Receipt
}

// Ready reports whether the draft can be submitted.
func (d Draft) Ready() bool { return d.Missing == "" }

// Session is a single customer's checkout. Mutations are serialized; they
// may happen in any order and any number of times before Submit.
type Session struct {
	id     string
	userID string

	gateway        Gateway
	source         catalog.Source
	clock          func() time.Time
	autoSelectZone bool

	flight singleflight.Group

	mu         sync.Mutex
	lines      []pricing.Line
	snapshot   *catalog.Snapshot
	payment    order.PaymentMethod
	shipping   order.ShippingMethod
	zone       *catalog.Zone
	contact    Contact
	email      string
	submitting bool
	receipt    *Receipt
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetPaymentMethod sets how the customer pays.
func (s *Session) SetPaymentMethod(m order.PaymentMethod) error {
	if !m.Valid() {
		return &ValidationError{Field: FieldPaymentMethod}
	}
	return s.mutate(func() error {
		s.payment = m
		return nil
	})
}

// SetShippingMethod sets the shipping method. Choosing the saved address
// with no zone selected picks the first known zone when auto-selection is
// enabled.
func (s *Session) SetShippingMethod(m order.ShippingMethod) error {
	if !m.Valid() {
		return &ValidationError{Field: FieldShippingMethod}
	}
	return s.mutate(func() error {
		s.shipping = m
		if m == order.ShippingSavedAddress && s.zone == nil && s.autoSelectZone &&
			s.snapshot.ZonesErr == nil && len(s.snapshot.Zones) > 0 {
			z := s.snapshot.Zones[0]
			s.zone = &z
		}
		return nil
	})
}

// SetShippingZone replaces the selected zone. It fails with ErrUnknownZone
// for ids missing from the snapshot, and with *catalog.CatalogLoadError
// when zones could not be loaded.
func (s *Session) SetShippingZone(zoneID string) error {
	return s.mutate(func() error {
		z, err := s.snapshot.Zone(zoneID)
		switch {
		case err == nil:
		case errors.Is(err, catalog.ErrZoneNotFound):
			return ErrUnknownZone
		default:
			return err
		}
		s.zone = &z
		return nil
	})
}

// SetContact replaces the contact details. An empty email falls back to the
// signed-in user's email.
func (s *Session) SetContact(c Contact) error {
	return s.mutate(func() error {
		c.Name = strings.TrimSpace(c.Name)
		c.Phone = strings.TrimSpace(c.Phone)
		c.Address = strings.TrimSpace(c.Address)
		if c.Email == "" {
			c.Email = s.email
		}
		s.contact = c
		return nil
	})
}

// Reload fetches the catalog again, replacing the snapshot. The selected
// zone is kept as chosen.
func (s *Session) Reload(ctx context.Context) error {
	snap := catalog.Load(ctx, s.source, s.clock())
	return s.mutate(func() error {
		s.snapshot = snap
		return nil
	})
}

// Ready reports whether every required field is set.
func (s *Session) Ready() bool {
	_, missing := s.Missing()
	return !missing
}

// Missing returns the first required field that is not set.
func (s *Session) Missing() (field string, missing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	field = s.missingLocked()
	return field, field != ""
}

func (s *Session) missingLocked() string {
	switch {
	case s.payment == "":
		return FieldPaymentMethod
	case s.shipping == "":
		return FieldShippingMethod
	case s.zone == nil:
		return FieldShippingZone
	case s.contact.Name == "":
		return FieldName
	case s.contact.Phone == "":
		return FieldPhone
	case s.shipping == order.ShippingNewAddress && s.contact.Address == "":
		return FieldAddress
	default:
		return ""
	}
}

// Draft returns the current state with totals priced at the session clock.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := pricing.Compute(s.lines, s.snapshot.Discounts, s.clock())
	shipping := decimal.Zero
	var zone *catalog.Zone
	if s.zone != nil {
		z := *s.zone
		zone = &z
		shipping = z.Cost
	}

	d := Draft{
		SessionID:      s.id,
		UserID:         s.userID,
		Quote:          q,
		PaymentMethod:  s.payment,
		ShippingMethod: s.shipping,
		Zone:           zone,
		Zones:          s.snapshot.Zones,
		Contact:        s.contact,
		ShippingCost:   shipping,
		GrandTotal:     q.Subtotal.Add(shipping),
		Status:         order.StatusPending,
		Missing:        s.missingLocked(),
		CatalogErr:     s.snapshot.Err(),
	}
	if s.receipt != nil {
		r := *s.receipt
		d.Receipt = &r
	}
	return d
}

// Submit places the order. Concurrent calls share a single submission and
// calls after success return the same receipt. A failed submission can be
// retried.
func (s *Session) Submit(ctx context.Context) (Receipt, error) {
	v, err, _ := s.flight.Do("submit", func() (any, error) {
		return s.submit(ctx)
	})
	if err != nil {
		return Receipt{}, err
	}
	return v.(Receipt), nil
}

func (s *Session) submit(ctx context.Context) (Receipt, error) {
	s.mu.Lock()
	if s.receipt != nil {
		r := *s.receipt
		s.mu.Unlock()
		return r, nil
	}
	o, err := s.buildOrderLocked()
	if err != nil {
		s.mu.Unlock()
		return Receipt{}, err
	}
	s.submitting = true
	s.mu.Unlock()

	id, err := s.gateway.Submit(ctx, o)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if err != nil {
		return Receipt{}, err
	}
	s.receipt = &Receipt{
		OrderID:      id,
		Number:       o.Number,
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		Total:        o.Total,
	}
	return *s.receipt, nil
}

// buildOrderLocked revalidates the session and prices the order at the
// current clock. s.mu must be held.
func (s *Session) buildOrderLocked() (*order.Order, error) {
	if len(s.lines) == 0 {
		return nil, ErrEmptyCart
	}
	if field := s.missingLocked(); field != "" {
		return nil, &ValidationError{Field: field}
	}
	// Charging without the discount list would ignore active discounts.
	if s.snapshot.DiscountsErr != nil {
		return nil, s.snapshot.DiscountsErr
	}

	now := s.clock()
	q := pricing.Compute(s.lines, s.snapshot.Discounts, now)

	items := make([]order.Item, 0, len(q.Lines))
	for _, t := range q.Lines {
		item := order.Item{
			ProductID: t.Line.ProductID,
			Title:     t.Line.Title,
			UnitPrice: t.Line.UnitPrice,
			Quantity:  t.Line.Quantity,
			Original:  t.Original,
			Total:     t.Discounted,
		}
		if t.Applied != nil {
			item.DiscountID = t.Applied.ID
		}
		items = append(items, item)
	}

	return &order.Order{
		ID:             uuid.New().String(),
		Number:         now.UnixMilli(),
		UserID:         s.userID,
		Email:          s.contact.Email,
		PaymentMethod:  s.payment,
		ShippingMethod: s.shipping,
		ZoneID:         s.zone.ID,
		ZoneName:       s.zone.Name,
		Contact: order.Contact{
			Name:    s.contact.Name,
			Phone:   s.contact.Phone,
			Address: s.contact.Address,
			Notes:   s.contact.Notes,
		},
		Items:        items,
		Subtotal:     q.Subtotal,
		ShippingCost: s.zone.Cost,
		Total:        q.Subtotal.Add(s.zone.Cost),
		Status:       order.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.receipt != nil:
		return ErrSubmitted
	case s.submitting:
		return ErrSubmitting
	}
	return fn()
}
