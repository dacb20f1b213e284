package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation is a traced and timed unit of domain work.
type Operation struct {
	component string
	name      string
	start     time.Time
	span      trace.Span
	metrics   *Metrics
}

// StartOperation opens a span named "<component>.<name>". metrics may be nil.
func StartOperation(ctx context.Context, metrics *Metrics, component, name string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	ctx, span := StartSpan(ctx, component+"."+name, trace.WithAttributes(
		append([]attribute.KeyValue{
			attribute.String(AttrComponent, component),
			attribute.String(AttrOperation, name),
		}, attrs...)...,
	))
	return ctx, &Operation{
		component: component,
		name:      name,
		start:     time.Now(),
		span:      span,
		metrics:   metrics,
	}
}

// SetAttributes adds attributes to the operation's span.
func (o *Operation) SetAttributes(attrs ...attribute.KeyValue) {
	o.span.SetAttributes(attrs...)
}

// End closes the span and records the outcome. A nil err counts as "ok".
func (o *Operation) End(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
	o.span.SetAttributes(attribute.String(AttrStatus, status))
	o.span.End()

	if o.metrics != nil {
		o.metrics.RecordOperation(ctx, o.component, o.name, status, time.Since(o.start))
	}
}
