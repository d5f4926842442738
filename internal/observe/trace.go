package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/voicewriter"

// AttrWorkspace is the span attribute and log key carrying the dictation
// workspace id.
const AttrWorkspace = "workspace"

type workspaceKey struct{}

// WithWorkspace tags ctx with a workspace id. Spans started and loggers
// derived from the returned context carry the id.
func WithWorkspace(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey{}, id)
}

// WorkspaceID returns the id set by [WithWorkspace], or "".
func WorkspaceID(ctx context.Context) string {
	id, _ := ctx.Value(workspaceKey{}).(string)
	return id
}

// StartSpan starts a span on the global tracer provider. The caller must
// end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if id := WorkspaceID(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(attribute.String(AttrWorkspace, id)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// CorrelationID returns the trace id of the span in ctx, or "". The HTTP
// middleware echoes it as X-Correlation-ID.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the trace, span and workspace ids
// found in ctx attached.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := WorkspaceID(ctx); id != "" {
		l = l.With(slog.String(AttrWorkspace, id))
	}
	return l
}
