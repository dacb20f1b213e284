package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/qprofile/component"
)

// Component owns the buffer, hub, publisher and stream handler of one
// application. Register it with the component registry so the hub is torn
// down on shutdown.
type Component struct {
	cfg       Config
	buffer    *Buffer
	hub       *Hub
	publisher *Publisher
	stream    *Stream
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent builds the SSE service graph from cfg.
func NewComponent(cfg Config) *Component {
	cfg.ApplyDefaults()
	buf := NewBuffer(cfg.Capacity)
	hub := NewHub()
	return &Component{
		cfg:       cfg,
		buffer:    buf,
		hub:       hub,
		publisher: NewPublisher(buf),
		stream:    NewStream(hub, buf, cfg),
	}
}

// Buffer returns the event buffer.
func (c *Component) Buffer() *Buffer { return c.buffer }

// Hub returns the connection hub.
func (c *Component) Hub() *Hub { return c.hub }

// Publisher returns the broadcaster handed to mutating handlers.
func (c *Component) Publisher() *Publisher { return c.publisher }

// Handler returns the events endpoint handler.
func (c *Component) Handler() *Stream { return c.stream }

// Name returns the component name.
func (c *Component) Name() string { return "sse" }

// Start is a no-op; the buffer accepts events from construction.
func (c *Component) Start(_ context.Context) error { return nil }

// Stop closes every open stream and rejects new ones.
func (c *Component) Stop(_ context.Context) error {
	c.hub.Stop()
	return nil
}

// Health reports open streams and buffer fill.
func (c *Component) Health(_ context.Context) component.Health {
	status := component.StatusHealthy
	select {
	case <-c.hub.Done():
		status = component.StatusUnhealthy
	default:
	}
	return component.Health{
		Name:   c.Name(),
		Status: status,
		Message: fmt.Sprintf("%d streams, %d/%d events buffered",
			c.hub.Count(), c.buffer.Len(), c.buffer.Capacity()),
	}
}

// Status is the live view of the event stream served to operators.
type Status struct {
	Streams     int        `json:"streams"`
	Buffered    int        `json:"buffered"`
	Capacity    int        `json:"capacity"`
	Next        uint64     `json:"next_index"`
	Oldest      uint64     `json:"oldest_index"`
	Connections []ConnInfo `json:"connections"`
}

// Status returns buffer bounds and every open stream's cursor.
func (c *Component) Status() Status {
	conns := c.hub.Snapshot()
	return Status{
		Streams:     len(conns),
		Buffered:    c.buffer.Len(),
		Capacity:    c.buffer.Capacity(),
		Next:        c.buffer.Next(),
		Oldest:      c.buffer.Oldest(),
		Connections: conns,
	}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "SSE Stream",
		Type:    "sse",
		Details: fmt.Sprintf("Path: %s, capacity: %d, poll: %s", c.cfg.Path, c.cfg.Capacity, c.cfg.PollInterval),
	}
}
