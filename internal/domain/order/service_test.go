package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

// --- Mock implementations ---

type mockStore struct {
	mu     sync.Mutex
	saved  []*Order
	err    error
	byID   map[string]*Order
	update StatusUpdate
}

func (m *mockStore) Save(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, o)
	return nil
}

func (m *mockStore) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockStore) List(_ context.Context, _ Filter) ([]Order, error) {
	return nil, nil
}

func (m *mockStore) UpdateStatus(_ context.Context, id string, u StatusUpdate) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.update = u
	o.Status = u.Status
	return o, nil
}

type notification struct {
	title, body string
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []notification
	err   error
}

func (m *mockNotifier) Notify(_ context.Context, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, notification{title: title, body: body})
	return m.err
}

// --- Helpers ---

func newTestService(t *testing.T, store Store, notifier Notifier) *Service {
	t.Helper()
	svc, err := NewService(store, notifier, noop.NewMeterProvider())
	require.NoError(t, err)
	return svc
}

func newTestOrder() *Order {
	return &Order{
		ID:     "ord-1",
		Number: 1705312800000,
		Total:  decimal.RequireFromString("145"),
	}
}

// --- Tests ---

func TestSubmit(t *testing.T) {
	store := &mockStore{}
	notifier := &mockNotifier{}
	svc := newTestService(t, store, notifier)

	id, err := svc.Submit(context.Background(), newTestOrder())
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	assert.Equal(t, "ord-1", id)
	require.Len(t, store.saved, 1)
	assert.Equal(t, StatusPending, store.saved[0].Status)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "New Order", notifier.calls[0].title)
	assert.Equal(t, "Order #1705312800000 - 145.00", notifier.calls[0].body)
}

func TestSubmitPersistenceError(t *testing.T) {
	dbErr := errors.New("connection reset")
	notifier := &mockNotifier{}
	svc := newTestService(t, &mockStore{err: dbErr}, notifier)

	_, err := svc.Submit(context.Background(), newTestOrder())
	require.Error(t, err)
	require.NoError(t, svc.Close())

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "ord-1", persistErr.OrderID)
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, notifier.calls, "no notification for unsaved order")
}

func TestSubmitNotifierFailureSwallowed(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, store, &mockNotifier{err: errors.New("broker down")})

	id, err := svc.Submit(context.Background(), newTestOrder())
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	assert.Equal(t, "ord-1", id)
	assert.Len(t, store.saved, 1)
}

func TestSubmitNotificationOutlivesRequest(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newTestService(t, &mockStore{}, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Submit(ctx, newTestOrder())
	require.NoError(t, err)
	cancel()

	require.NoError(t, svc.Close())
	assert.Len(t, notifier.calls, 1)
}

func TestSubmitWithoutNotifier(t *testing.T) {
	svc := newTestService(t, &mockStore{}, nil)

	_, err := svc.Submit(context.Background(), newTestOrder())
	require.NoError(t, err)
	require.NoError(t, svc.Close())
}

func TestUpdateStatus(t *testing.T) {
	courier := "courier-1"
	store := &mockStore{byID: map[string]*Order{"ord-1": newTestOrder()}}
	notifier := &mockNotifier{}
	svc := newTestService(t, store, notifier)

	o, err := svc.UpdateStatus(context.Background(), "ord-1", StatusUpdate{
		Status:         StatusShipped,
		DeliveryUserID: &courier,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, &courier, store.update.DeliveryUserID)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "Order #1705312800000 is now: shipped", notifier.calls[0].body)

	_, err = svc.UpdateStatus(context.Background(), "missing", StatusUpdate{Status: StatusShipped})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "confirmed", "processing", "shipped", "completed", "cancelled"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), got)
	}
	_, err := ParseStatus("lost")
	assert.Error(t, err)
}
