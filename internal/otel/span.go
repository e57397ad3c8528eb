// Package otel provides small OpenTelemetry helpers shared by the storage
// and API layers.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Shared attribute keys so spans across the codebase name things identically.
const (
	AttrEntityKind    = attribute.Key("entity.kind")
	AttrEntityID      = attribute.Key("entity.id")
	AttrEntityVersion = attribute.Key("entity.version")
	AttrListLimit     = attribute.Key("list.limit")
	AttrListFiltered  = attribute.Key("list.filtered")
	AttrResultCount   = attribute.Key("result.count")
)

// StartSpan starts a span when tracer is non-nil and degrades to the span
// already on the context otherwise, so call sites need no nil checks.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on the span and marks the span failed. The status
// description stays generic so connection strings and SQL fragments never
// leak into trace status; the error itself is still attached as an event.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "operation failed")
}
