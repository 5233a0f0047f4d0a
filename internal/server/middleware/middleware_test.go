package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthAcceptsBearerAndAPIKeyHeaders(t *testing.T) {
	h := Auth("sekret")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	require.Equal(t, http.StatusOK, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("X-API-Key", "sekret")
	require.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestAuthRejectsMissingAndWrongToken(t *testing.T) {
	h := Auth("sekret")(okHandler())

	require.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest(http.MethodGet, "/api/markets", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	require.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
}

func TestAuthExemptsHealthProbes(t *testing.T) {
	h := Auth("sekret")(okHandler())
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	h := Auth("")(okHandler())
	require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/api/markets", nil)).Code)
}

func TestCORSReflectsAllowedOrigin(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = serve(h, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	h := CORS(nil)(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/api/markets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := serve(h, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

// fakeLimiter counts requests per key in memory, with switchable failure.
type fakeLimiter struct {
	counts map[string]int
	fail   bool
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.fail {
		return false, errors.New("limiter backend down")
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}

func TestRateLimitThrottlesPerClient(t *testing.T) {
	lim := &fakeLimiter{}
	h := RateLimit(lim, 2, time.Minute)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	require.Equal(t, http.StatusOK, serve(h, req).Code)
	require.Equal(t, http.StatusOK, serve(h, req).Code)

	rec := serve(h, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different client is unaffected.
	other := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	other.Header.Set("X-Forwarded-For", "203.0.113.8")
	require.Equal(t, http.StatusOK, serve(h, other).Code)
}

func TestRateLimitSkipsHealthAndFailsOpen(t *testing.T) {
	lim := &fakeLimiter{}
	h := RateLimit(lim, 1, time.Minute)(okHandler())

	// Health probes never consume quota.
	for range 3 {
		require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)
	}
	assert.Empty(t, lim.counts)

	// A limiter outage lets traffic through.
	lim.fail = true
	require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/api/markets", nil)).Code)
}

func TestLoggingRecordsStatusAndPassesBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"market not found"}`))
	}))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/markets/99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"market not found"}`, rec.Body.String())
}
