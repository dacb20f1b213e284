package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/qprofile/component"
)

// Component owns the tracer and meter providers.
type Component struct {
	cfg Config
	svc ServiceInfo

	mu sync.Mutex
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a telemetry component. Nothing is exported until Start.
func NewComponent(cfg Config, svc ServiceInfo) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, svc: svc}
}

// Name returns the component name.
func (c *Component) Name() string { return "telemetry" }

// Start installs the OTLP providers when export is enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tp, err := InitTracer(ctx, c.cfg, c.svc)
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, c.cfg, c.svc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	c.tp, c.mp = tp, mp
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.tp != nil {
		errs = append(errs, c.tp.Shutdown(ctx))
		c.tp = nil
	}
	if c.mp != nil {
		errs = append(errs, c.mp.Shutdown(ctx))
		c.mp = nil
	}
	return errors.Join(errs...)
}

// Health reports whether export is active.
func (c *Component) Health(_ context.Context) component.Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case !c.cfg.Enabled:
		h.Message = "export disabled"
	case c.tp == nil:
		h.Status = component.StatusDegraded
		h.Message = "providers not running"
	default:
		h.Message = "exporting to " + c.cfg.Endpoint
	}
	return h
}

// Describe returns infrastructure summary info for the bootstrap display.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("OTLP %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "OpenTelemetry", Type: "telemetry", Details: details}
}
