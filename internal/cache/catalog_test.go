package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
)

const ttl = 5 * time.Minute

type mockBackend struct {
	zones     []catalog.Zone
	discounts []discount.Discount
	err       error
	loads     int
	created   []string
	deleted   []string
	// onLoad runs inside Discounts before it returns.
	onLoad func()
}

func (m *mockBackend) Zones(context.Context) ([]catalog.Zone, error) {
	m.loads++
	return m.zones, m.err
}

func (m *mockBackend) Discounts(context.Context) ([]discount.Discount, error) {
	m.loads++
	ds := m.discounts
	if m.onLoad != nil {
		m.onLoad()
	}
	return ds, m.err
}

func (m *mockBackend) Create(_ context.Context, d *discount.Discount) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, d.ID)
	return nil
}

func (m *mockBackend) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func testZones() []catalog.Zone {
	return []catalog.Zone{
		{ID: "downtown", Name: "Downtown", Cost: decimal.RequireFromString("25.00")},
		{ID: "airport", Name: "Airport", Cost: decimal.RequireFromString("55.5")},
	}
}

func testDiscounts() []discount.Discount {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []discount.Discount{
		{
			ID:         "d1",
			ProductID:  "42",
			Percentage: discount.ParsePercentage("20"),
			StartsAt:   start,
			EndsAt:     start.AddDate(0, 1, 0),
			CreatedAt:  start,
		},
		{
			ID:         "broken",
			ProductID:  "7",
			Percentage: discount.ParsePercentage("twenty"),
			StartsAt:   start,
			EndsAt:     start.AddDate(0, 1, 0),
			CreatedAt:  start,
		},
	}
}

func TestZonesMissThenHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backend := &mockBackend{zones: testZones()}
	c := NewCatalog(db, backend, ttl)
	ctx := context.Background()

	payload := encodeZones(testZones())
	mock.ExpectGet(KeyZones).RedisNil()
	mock.ExpectSet(KeyZones, payload, ttl).SetVal("OK")
	mock.ExpectGet(KeyZones).SetVal(string(payload))

	first, err := c.Zones(ctx)
	require.NoError(t, err)
	second, err := c.Zones(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.loads)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "Airport", second[1].Name)
	assert.True(t, first[1].Cost.Equal(second[1].Cost))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscountsRoundTripThroughCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewCatalog(db, &mockBackend{}, ttl)

	mock.ExpectGet(KeyDiscounts).SetVal(string(encodeDiscounts(testDiscounts())))

	got, err := c.Discounts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := testDiscounts()
	assert.Equal(t, want[0].ProductID, got[0].ProductID)
	assert.True(t, want[0].StartsAt.Equal(got[0].StartsAt))
	assert.True(t, want[0].EndsAt.Equal(got[0].EndsAt))
	pct, ok := got[0].Percentage.Decimal()
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(20).Equal(pct))
	assert.False(t, got[1].Percentage.Valid(), "invalid percentage survives caching")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisFailureFallsBackToBackend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backend := &mockBackend{zones: testZones()}
	c := NewCatalog(db, backend, ttl)

	mock.ExpectGet(KeyZones).SetErr(errors.New("connection refused"))
	mock.ExpectSet(KeyZones, encodeZones(testZones()), ttl).SetErr(errors.New("connection refused"))

	got, err := c.Zones(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, backend.loads)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUndecodableEntryReloads(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backend := &mockBackend{zones: testZones()}
	c := NewCatalog(db, backend, ttl)

	mock.ExpectGet(KeyZones).SetVal(`{"not":"an array"}`)
	mock.ExpectSet(KeyZones, encodeZones(testZones()), ttl).SetVal("OK")

	got, err := c.Zones(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendErrorNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backendErr := errors.New("db down")
	c := NewCatalog(db, &mockBackend{err: backendErr}, ttl)

	mock.ExpectGet(KeyDiscounts).RedisNil()

	_, err := c.Discounts(context.Background())
	assert.ErrorIs(t, err, backendErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscountWritesInvalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backend := &mockBackend{}
	c := NewCatalog(db, backend, ttl)
	ctx := context.Background()

	mock.ExpectDel(KeyDiscounts).SetVal(1)
	mock.ExpectDel(KeyDiscounts).SetVal(0)

	require.NoError(t, c.Create(ctx, &discount.Discount{ID: "d9"}))
	require.NoError(t, c.Delete(ctx, "d9"))

	assert.Equal(t, []string{"d9"}, backend.created)
	assert.Equal(t, []string{"d9"}, backend.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscountWriteFailureKeepsCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewCatalog(db, &mockBackend{err: discount.ErrNotFound}, ttl)

	err := c.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, discount.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDuringLoadSkipsStaleWrite(t *testing.T) {
	db, mock := redismock.NewClientMock()
	backend := &mockBackend{discounts: testDiscounts()}
	c := NewCatalog(db, backend, ttl)

	core, logs := observer.New(zap.DebugLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	// The delete lands after the backend read but before the cache write.
	backend.onLoad = func() {
		backend.onLoad = nil
		backend.discounts = testDiscounts()[1:]
		require.NoError(t, c.Delete(ctx, "d1"))
	}

	mock.ExpectGet(KeyDiscounts).RedisNil()
	mock.ExpectDel(KeyDiscounts).SetVal(0)

	got, err := c.Discounts(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2, "the caller still sees what it loaded")
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, logs.FilterMessage("Cache entry invalidated during load, not storing").Len())
	assert.Zero(t, logs.FilterMessage("Cache write failed").Len())

	// The next read loads and stores the current list.
	fresh := testDiscounts()[1:]
	mock.ExpectGet(KeyDiscounts).RedisNil()
	mock.ExpectSet(KeyDiscounts, encodeDiscounts(fresh), ttl).SetVal("OK")

	got, err = c.Discounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "broken", got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
