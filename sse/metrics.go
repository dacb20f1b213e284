package sse

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kbukum/qprofile/logger"
	"github.com/kbukum/qprofile/observability"
)

const meterName = "github.com/kbukum/qprofile/sse"

// instruments groups the counters recorded by the publisher and streams.
type instruments struct {
	publishedTotal metric.Int64Counter
	deliveredTotal metric.Int64Counter
	missedTotal    metric.Int64Counter
	streamsActive  metric.Int64UpDownCounter
}

func newInstruments() *instruments {
	ins, err := buildInstruments(observability.Meter(meterName))
	if err != nil {
		logger.Warn("[SSE] Metric instruments unavailable, using no-op meter", map[string]interface{}{
			"error": err.Error(),
		})
		ins, _ = buildInstruments(noop.NewMeterProvider().Meter(meterName))
	}
	return ins
}

func buildInstruments(meter metric.Meter) (*instruments, error) {
	published, err := meter.Int64Counter("sse.events.published",
		metric.WithDescription("Events appended to the broadcast buffer"),
	)
	if err != nil {
		return nil, err
	}
	delivered, err := meter.Int64Counter("sse.events.delivered",
		metric.WithDescription("Event frames written to streams"),
	)
	if err != nil {
		return nil, err
	}
	missed, err := meter.Int64Counter("sse.events.missed",
		metric.WithDescription("Events evicted before a stream could deliver them"),
	)
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64UpDownCounter("sse.streams.active",
		metric.WithDescription("Open SSE streams"),
	)
	if err != nil {
		return nil, err
	}
	return &instruments{
		publishedTotal: published,
		deliveredTotal: delivered,
		missedTotal:    missed,
		streamsActive:  active,
	}, nil
}

func (i *instruments) published(ctx context.Context, kind Kind) {
	i.publishedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (i *instruments) delivered(ctx context.Context, n int) {
	i.deliveredTotal.Add(ctx, int64(n))
}

func (i *instruments) missed(ctx context.Context, n uint64) {
	i.missedTotal.Add(ctx, int64(n))
}

func (i *instruments) streamOpened(ctx context.Context) { i.streamsActive.Add(ctx, 1) }

func (i *instruments) streamClosed(ctx context.Context) { i.streamsActive.Add(ctx, -1) }
