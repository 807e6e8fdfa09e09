package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

type storeEntry struct {
	session *Session
	seen    time.Time
}

// Store keeps live sessions in memory. Sessions idle for longer than the TTL
// are evicted by the sweeper; eviction discards the draft without
// persisting anything.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*storeEntry
}

// NewStore creates a Store with the given idle TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*storeEntry),
	}
}

// Put stores s.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.id] = &storeEntry{session: s, seen: st.now()}
}

// Get returns the session and refreshes its idle timer.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := st.now()
	if now.Sub(e.seen) >= st.ttl {
		delete(st.sessions, id)
		return nil, ErrSessionNotFound
	}
	e.seen = now
	return e.session, nil
}

// Delete abandons the session.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Instrument reports the live session count as an observable gauge.
func (st *Store) Instrument(mp metric.MeterProvider) error {
	_, err := mp.Meter("storefront/checkout").Int64ObservableGauge("checkout.sessions.active",
		metric.WithDescription("Live checkout sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(st.Len()))
			return nil
		}),
	)
	if err != nil {
		return errors.Wrap(err, "sessions gauge")
	}
	return nil
}

// sweep removes idle sessions and reports how many were evicted.
func (st *Store) sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	var n int
	for id, e := range st.sessions {
		if now.Sub(e.seen) >= st.ttl {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// StartSweeper evicts idle sessions every interval until ctx is cancelled.
func (st *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				st.sweep(now)
			}
		}
	}()
}
