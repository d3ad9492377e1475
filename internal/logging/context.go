package logging

import (
	"context"
	"log/slog"

	"nemfreview/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRecordKey is the standardized key for record identifiers (image filenames).
	FieldRecordKey = "record_key"
	// FieldHolder is the standardized key for the reviewer identity holding or requesting a claim.
	FieldHolder = "holder"
	// FieldAction is the standardized key for submit actions.
	FieldAction = "action"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldDecisionType names the kind of decision being logged (selection, reconciliation).
	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if key, ok := services.RecordKeyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRecordKey, key))
	}
	if holder, ok := services.HolderFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldHolder, holder))
	}
	if action, ok := services.ActionFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAction, action))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
