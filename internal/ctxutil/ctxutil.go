// Package ctxutil provides shared context key accessors.
//
// This package exists to break the circular dependency between server and mcp:
// server mounts the MCP handler, and mcp needs to read the tenant that
// server's middleware resolved. Both packages import ctxutil instead of
// each other.
package ctxutil

import "context"

type contextKey string

const (
	keyTenant    contextKey = "tenant_id"
	keyRequestID contextKey = "request_id"
)

// WithTenant returns a new context carrying the resolved tenant id.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, keyTenant, tenantID)
}

// TenantFromContext extracts the tenant id from the context, "" when absent.
func TenantFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyTenant).(string); ok {
		return v
	}
	return ""
}

// WithRequestID returns a new context carrying the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestIDFromContext extracts the request id from the context, "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}
