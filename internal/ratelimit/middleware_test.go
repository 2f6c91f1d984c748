package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/ctxutil"
	"github.com/ashita-ai/suisen/internal/model"
)

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, error) {
	f.calls++
	return f.allow, f.err
}

func (f *fakeLimiter) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	m := newTestLimiter(t, 1, 2)
	h := Middleware(m, IPKey, discardLogger())(okHandler())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
		req.RemoteAddr = "10.0.0.5:42113"
		req = req.WithContext(ctxutil.WithRequestID(req.Context(), "req-123"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, http.StatusOK, do().Code)

	rec := do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp model.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, model.ErrCodeRateLimited, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Meta.RequestID)
	assert.False(t, resp.Meta.Timestamp.IsZero())
}

func TestMiddlewareSkipsEmptyKey(t *testing.T) {
	fake := &fakeLimiter{allow: false}
	skipAll := func(*http.Request) string { return "" }
	h := Middleware(fake, skipAll, discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, fake.calls, "limiter must not be consulted for empty keys")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	fake := &fakeLimiter{allow: false, err: errors.New("backend down")}
	h := Middleware(fake, IPKey, discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "limiter errors must not block traffic")
	assert.Equal(t, 1, fake.calls)
}

func TestTenantKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	req.RemoteAddr = "192.168.1.9:55001"

	assert.Equal(t, "ip:192.168.1.9", TenantKey(req), "no tenant falls back to IP")

	req = req.WithContext(ctxutil.WithTenant(req.Context(), "acme"))
	assert.Equal(t, "tenant:acme", TenantKey(req))
}

func TestIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:9999"
	assert.Equal(t, "ip:10.1.2.3", IPKey(req))

	req.RemoteAddr = "10.1.2.3"
	assert.Equal(t, "ip:10.1.2.3", IPKey(req), "bare address passes through")
}
