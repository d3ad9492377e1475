package services

import "context"

type contextKey string

const (
	recordKeyKey contextKey = "record_key"
	holderKey    contextKey = "holder"
	actionKey    contextKey = "action"
	requestIDKey contextKey = "request_id"
)

// WithRecordKey annotates context with the record key under review.
func WithRecordKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, recordKeyKey, key)
}

// RecordKeyFromContext extracts the record key if present.
func RecordKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(recordKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithHolder annotates context with the reviewer identity acting on a record.
func WithHolder(ctx context.Context, holder string) context.Context {
	if holder == "" {
		return ctx
	}
	return context.WithValue(ctx, holderKey, holder)
}

// HolderFromContext returns the reviewer identity if present.
func HolderFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(holderKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAction annotates context with the submit action (approve, upload, ...).
func WithAction(ctx context.Context, action string) context.Context {
	if action == "" {
		return ctx
	}
	return context.WithValue(ctx, actionKey, action)
}

// ActionFromContext returns the submit action if present.
func ActionFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(actionKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
