package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "castforge"

// Tracer wraps the OpenTelemetry API for job and unit spans. Without an
// SDK exporter configured the spans are no-ops, so this costs nothing in
// the default deployment.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

// StartJobSpan starts a span covering one generation job.
func (t *Tracer) StartJobSpan(ctx context.Context, jobID string, requestedTotal int) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job.run", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("job.requested_total", requestedTotal),
	))
	return ctx, func() { span.End() }
}

// StartUnitSpan starts a span covering one generation work item.
func (t *Tracer) StartUnitSpan(ctx context.Context, jobID, kind string, unitIndex int) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "unit.generate", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("unit.kind", kind),
		attribute.Int("unit.index", unitIndex),
	))
	return ctx, func() { span.End() }
}

// RecordError records an error on the current span.
func (t *Tracer) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
