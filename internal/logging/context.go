package logging

import (
	"context"
	"log/slog"

	"prismatic/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldProjectID is the standardized structured logging key for project identifiers.
	FieldProjectID = "project_id"
	// FieldPostID is the standardized structured logging key for post identifiers.
	FieldPostID = "post_id"
	// FieldScheduledPostID is the standardized structured logging key for scheduled post identifiers.
	FieldScheduledPostID = "scheduled_post_id"
	// FieldPlatform is the standardized structured logging key for publishing platform names.
	FieldPlatform = "platform"
	// FieldStage is the standardized structured logging key for lifecycle stage names.
	FieldStage = "stage"
	// FieldTrigger is the standardized structured logging key for lifecycle trigger names.
	FieldTrigger = "trigger"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log records with a machine-readable event name.
	FieldEventType = "event_type"
	// FieldFailureTag carries the stored failure taxonomy tag for delivery failures.
	FieldFailureTag = "failure_tag"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.ProjectIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldProjectID, id))
	}
	if id, ok := services.PostIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldPostID, id))
	}
	if platform, ok := services.PlatformFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPlatform, platform))
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
