package shared

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// ContextKey is the type of request context keys set by the api packages.
type ContextKey string

// Context keys for various values
const (
	// UserIDContextKey is the context key for the authenticated owner id.
	UserIDContextKey ContextKey = "userID"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader echoes the trace ID back to the client.
	TraceIDHeader = "X-Trace-ID"
)

// SetTraceID adds a fresh trace ID to the context.
// Trace IDs are ULIDs, so they sort by creation time in the logs.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, ulid.Make().String())
}

// WithTraceID adds the given trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}
