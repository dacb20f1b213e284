package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/qprofile/logger"
)

// Stream is the http.Handler for the events endpoint. Each request becomes
// one connection that receives buffered events published after it opened.
type Stream struct {
	hub     *Hub
	buffer  *Buffer
	cfg     Config
	log     *logger.Logger
	metrics *instruments
	newID   func() string
}

// NewStream creates a stream handler reading from buffer and tracking
// connections in hub. Zero config fields take their defaults.
func NewStream(hub *Hub, buffer *Buffer, cfg Config) *Stream {
	cfg.ApplyDefaults()
	return &Stream{
		hub:     hub,
		buffer:  buffer,
		cfg:     cfg,
		log:     logger.WithComponent("sse"),
		metrics: newInstruments(),
		newID:   uuid.NewString,
	}
}

// ServeHTTP runs the connection until the client goes away, a write fails,
// or the hub is stopped.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		s.log.Error("[SSE] Streaming not supported", map[string]interface{}{
			"remote_addr": r.RemoteAddr,
		})
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Long-lived response; the server's WriteTimeout must not apply.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log.Warn("[SSE] Could not disable write deadline", map[string]interface{}{
			"error": err.Error(),
		})
	}

	conn := NewConn(s.newID(), r.RemoteAddr, s.buffer.Next())
	if err := s.hub.Register(conn); err != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.Unregister(conn.ID())

	ctx := r.Context()
	s.metrics.streamOpened(ctx)
	defer s.metrics.streamClosed(context.WithoutCancel(ctx))

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fw := &frameWriter{w: w, rc: rc}
	if err := fw.data(KindConnected, ConnectedEvent{
		ConnectionID: conn.ID(),
		Status:       "connected",
		Cursor:       conn.Cursor(),
	}); err != nil {
		s.closed(conn, "write_error", err)
		return
	}
	if err := fw.flush(); err != nil {
		s.closed(conn, "write_error", err)
		return
	}

	s.log.Debug("[SSE] Client connected", map[string]interface{}{
		"connection_id": conn.ID(),
		"cursor":        conn.Cursor(),
		"remote_addr":   r.RemoteAddr,
	})

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		// Fetched before draining so an append in between still wakes us.
		notify := s.buffer.Notify()
		if err := s.drain(ctx, fw, conn); err != nil {
			s.closed(conn, "write_error", err)
			return
		}

		select {
		case <-ctx.Done():
			s.closed(conn, "client_gone", ctx.Err())
			return
		case <-s.hub.Done():
			s.closed(conn, "shutdown", nil)
			return
		case <-notify:
		case <-poll.C:
		case t := <-heartbeat.C:
			if err := fw.comment(fmt.Sprintf("heartbeat %d", t.Unix())); err != nil {
				s.closed(conn, "write_error", err)
				return
			}
			if err := fw.flush(); err != nil {
				s.closed(conn, "write_error", err)
				return
			}
		}
	}
}

// drain writes every event at or after the connection's cursor and advances
// it past the last one written.
func (s *Stream) drain(ctx context.Context, fw *frameWriter, conn *Conn) error {
	cursor := conn.Cursor()
	events, missed := s.buffer.SliceFrom(cursor)
	if len(events) == 0 && missed == 0 {
		return nil
	}

	if missed > 0 {
		s.metrics.missed(ctx, missed)
		s.log.Warn("[SSE] Stream fell behind buffer", map[string]interface{}{
			"connection_id": conn.ID(),
			"missed":        missed,
			"from":          cursor,
		})
		if !s.cfg.SuppressGaps {
			gap := GapEvent{Missed: missed, From: cursor, To: cursor + missed}
			if err := fw.data(KindGap, gap); err != nil {
				return err
			}
		}
		conn.skipTo(cursor + missed)
	}

	for _, ev := range events {
		if err := fw.event(ev); err != nil {
			return err
		}
		conn.advance(ev)
	}
	if len(events) > 0 {
		s.metrics.delivered(ctx, len(events))
	}
	return fw.flush()
}

func (s *Stream) closed(conn *Conn, reason string, err error) {
	fields := map[string]interface{}{
		"connection_id": conn.ID(),
		"reason":        reason,
		"delivered":     conn.Delivered(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.log.Debug("[SSE] Client disconnected", fields)
}

// frameWriter encodes SSE frames onto a response.
type frameWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (f *frameWriter) event(ev Event) error {
	_, err := fmt.Fprintf(f.w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Index, ev.Kind, ev.Data)
	return err
}

func (f *frameWriter) data(kind Kind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f.w, "event: %s\ndata: %s\n\n", kind, data)
	return err
}

func (f *frameWriter) comment(text string) error {
	_, err := fmt.Fprintf(f.w, ": %s\n\n", text)
	return err
}

func (f *frameWriter) flush() error {
	return f.rc.Flush()
}
