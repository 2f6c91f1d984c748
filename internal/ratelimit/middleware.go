package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/suisen/internal/ctxutil"
	"github.com/ashita-ai/suisen/internal/model"
)

// KeyFunc derives the rate-limit key for a request. Returning an empty
// string skips limiting for that request.
type KeyFunc func(r *http.Request) string

// TenantKey keys limits on the tenant resolved by the server middleware,
// falling back to the client IP when no tenant is on the context. It must
// therefore sit inside the tenant middleware in the chain.
func TenantKey(r *http.Request) string {
	if tenant := ctxutil.TenantFromContext(r.Context()); tenant != "" {
		return "tenant:" + tenant
	}
	return "ip:" + clientIP(r)
}

// IPKey keys limits on the client IP from RemoteAddr. X-Forwarded-For is
// deliberately not consulted: any client can set it, so honoring it would
// let callers pick their own bucket. Behind a trusted proxy, have the
// proxy rewrite RemoteAddr instead.
func IPKey(r *http.Request) string {
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// Middleware enforces limiter on every request whose key is non-empty.
// Rejected requests get a 429 with the standard response envelope and a
// Retry-After hint. A limiter error fails open: the request proceeds and
// the failure is logged, on the theory that a broken limiter should never
// take the API down with it.
func Middleware(limiter Limiter, keyFunc KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error("rate limiter failure, failing open", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeLimited(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.ErrorDetail{
			Code:    model.ErrCodeRateLimited,
			Message: "too many requests",
		},
		Meta: model.ResponseMeta{
			RequestID: ctxutil.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}
