package sse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kbukum/qprofile/logger"
)

// Broadcaster is an interface for publishing events to every open stream.
// This allows handlers to depend on an abstraction rather than a concrete
// Publisher.
type Broadcaster interface {
	// Publish appends an event of the given kind carrying payload encoded as
	// JSON. It returns the stored event.
	Publish(ctx context.Context, kind Kind, payload any) (Event, error)
}

// Publisher appends events to a Buffer. It is the only writer of the buffer.
type Publisher struct {
	buffer  *Buffer
	log     *logger.Logger
	metrics *instruments
}

// Ensure Publisher implements Broadcaster.
var _ Broadcaster = (*Publisher)(nil)

// NewPublisher creates a publisher writing into buffer.
func NewPublisher(buffer *Buffer) *Publisher {
	return &Publisher{
		buffer:  buffer,
		log:     logger.WithComponent("sse"),
		metrics: newInstruments(),
	}
}

// Publish encodes payload and appends it to the buffer.
func (p *Publisher) Publish(ctx context.Context, kind Kind, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("sse: encode %s payload: %w", kind, err)
	}

	ev := p.buffer.Append(kind, data)
	p.metrics.published(ctx, kind)

	p.log.Debug("[SSE] Event published", map[string]interface{}{
		"kind":      string(kind),
		"index":     ev.Index,
		"data_size": len(data),
		"buffered":  p.buffer.Len(),
	})
	return ev, nil
}
