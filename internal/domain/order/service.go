package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// PersistenceError reports that the order store rejected a write. The order
// was not saved and may be submitted again.
type PersistenceError struct {
	OrderID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist order %s: %v", e.OrderID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const defaultNotifyTimeout = 10 * time.Second

// Service is the order submission gateway. It persists orders and then
// notifies administrators without waiting for delivery.
type Service struct {
	store         Store
	notifier      Notifier
	notifyTimeout time.Duration

	wg sync.WaitGroup

	submitted    metric.Int64Counter
	notifyErrors metric.Int64Counter
}

// NewService creates an order Service. A nil notifier disables
// notifications.
func NewService(store Store, notifier Notifier, mp metric.MeterProvider) (*Service, error) {
	meter := mp.Meter("storefront/order")

	submitted, err := meter.Int64Counter("orders.submitted",
		metric.WithDescription("Order submissions by outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "submitted counter")
	}
	notifyErrors, err := meter.Int64Counter("orders.notify.errors",
		metric.WithDescription("Failed admin notifications"))
	if err != nil {
		return nil, errors.Wrap(err, "notify errors counter")
	}

	return &Service{
		store:         store,
		notifier:      notifier,
		notifyTimeout: defaultNotifyTimeout,
		submitted:     submitted,
		notifyErrors:  notifyErrors,
	}, nil
}

// Submit persists o and returns its id. A store failure is returned as
// *PersistenceError and is never retried here.
func (s *Service) Submit(ctx context.Context, o *Order) (string, error) {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if err := s.store.Save(ctx, o); err != nil {
		s.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return "", &PersistenceError{OrderID: o.ID, Err: err}
	}
	s.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))

	zctx.From(ctx).Info("Order submitted",
		zap.String("order_id", o.ID),
		zap.Int64("order_number", o.Number),
		zap.String("total", o.Total.StringFixed(2)),
	)

	s.notify(ctx, "New Order", fmt.Sprintf("Order #%d - %s", o.Number, o.Total.StringFixed(2)))
	return o.ID, nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// List returns orders matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	return s.store.List(ctx, f)
}

// UpdateStatus moves an order to a new status and notifies administrators.
func (s *Service) UpdateStatus(ctx context.Context, id string, u StatusUpdate) (*Order, error) {
	o, err := s.store.UpdateStatus(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "Order Status Updated", fmt.Sprintf("Order #%d is now: %s", o.Number, o.Status))
	return o, nil
}

// Close waits for in-flight notifications.
func (s *Service) Close() error {
	s.wg.Wait()
	return nil
}

// notify dispatches in the background. The request context may already be
// done by the time delivery runs, so only its values are kept.
func (s *Service) notify(ctx context.Context, title, body string) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, title, body); err != nil {
			s.notifyErrors.Add(ctx, 1)
			zctx.From(ctx).Warn("Admin notification failed",
				zap.String("title", title),
				zap.Error(err),
			)
		}
	}()
}
