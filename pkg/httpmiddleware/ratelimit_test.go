package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func fromAddr(addr string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := hit(h, nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	require.Equal(t, http.StatusOK, hit(h, nil).Code)
	require.Equal(t, http.StatusOK, hit(h, nil).Code)

	w := hit(h, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name   string
		cfg    RateLimitConfig
		first  func(*http.Request)
		second func(*http.Request)
		want   int
	}{
		{
			name:   "different IPs are independent",
			first:  fromAddr("10.0.0.1:1234"),
			second: fromAddr("10.0.0.2:1234"),
			want:   http.StatusOK,
		},
		{
			name:   "same IP different port is limited",
			first:  fromAddr("10.0.0.1:1234"),
			second: fromAddr("10.0.0.1:5678"),
			want:   http.StatusTooManyRequests,
		},
		{
			name: "first forwarded hop is the key",
			first: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.1:4444"
				r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
			},
			second: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.2:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
			},
			want: http.StatusTooManyRequests,
		},
		{
			name: "custom key func",
			cfg: RateLimitConfig{KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-API-Key")
			}},
			first:  func(r *http.Request) { r.Header.Set("X-API-Key", "key-a") },
			second: func(r *http.Request) { r.Header.Set("X-API-Key", "key-b") },
			want:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Max, cfg.Window = 1, time.Minute
			h := RateLimit(cfg)(okHandler())

			require.Equal(t, http.StatusOK, hit(h, tt.first).Code)
			assert.Equal(t, tt.want, hit(h, tt.second).Code)
		})
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	start := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	for range 4 {
		_, _, ok := l.take("k", start)
		require.True(t, ok)
	}
	_, _, ok := l.take("k", start.Add(30*time.Second))
	assert.False(t, ok, "budget spent within the window")

	// Half way into the next window, half of the previous count still
	// applies: 4 * 0.5 = 2 used, so two more requests fit.
	next := start.Add(90 * time.Second)
	_, _, ok = l.take("k", next)
	assert.True(t, ok)
	_, _, ok = l.take("k", next)
	assert.True(t, ok)
	_, _, ok = l.take("k", next)
	assert.False(t, ok)

	// Two idle windows reset everything.
	remaining, _, ok := l.take("k", start.Add(5*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 3, remaining)
}

func TestLimiter_Evict(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	start := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	l.take("a", start)
	l.take("b", start.Add(90*time.Second))
	l.evict(start.Add(2 * time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.windows, "a")
	assert.Contains(t, l.windows, "b")
}
