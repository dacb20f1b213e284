package sse

import (
	"errors"
	"testing"
	"time"
)

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub()
	a := NewConn("a", "1.2.3.4:1", 0)
	b := NewConn("b", "1.2.3.4:2", 3)

	if err := h.Register(a); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if err := h.Register(b); err != nil {
		t.Fatalf("Register b: %v", err)
	}
	if h.Count() != 2 {
		t.Fatalf("Count = %d, want 2", h.Count())
	}

	h.Unregister("a")
	h.Unregister("missing")
	snap := h.Snapshot()
	if len(snap) != 1 || snap[0].ID != b.ID() || snap[0].Cursor != 3 {
		t.Fatalf("after unregister: %+v", snap)
	}
}

func TestHub_StopRejectsRegistration(t *testing.T) {
	h := NewHub()
	h.Stop()
	h.Stop()

	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if err := h.Register(NewConn("x", "", 0)); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("Register after Stop = %v, want ErrHubStopped", err)
	}
}

func TestHub_Snapshot(t *testing.T) {
	h := NewHub()
	first := NewConn("first", "10.0.0.1:1", 0)
	_ = h.Register(first)
	time.Sleep(2 * time.Millisecond)
	second := NewConn("second", "10.0.0.2:1", 4)
	_ = h.Register(second)

	first.advance(Event{Index: 0})
	first.advance(Event{Index: 1})
	second.skipTo(9)

	snap := h.Snapshot()
	if len(snap) != 2 || snap[0].ID != "first" {
		t.Fatalf("snapshot order: %+v", snap)
	}
	if snap[0].Cursor != 2 || snap[0].Delivered != 2 {
		t.Errorf("first: cursor=%d delivered=%d", snap[0].Cursor, snap[0].Delivered)
	}
	if snap[1].Cursor != 9 || snap[1].Delivered != 0 {
		t.Errorf("second: cursor=%d delivered=%d", snap[1].Cursor, snap[1].Delivered)
	}
}
