package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type frameResult struct {
	frame *Frame
	err   error
}

// startStream runs the component's handler behind an httptest server.
func startStream(t *testing.T, cfg Config) (*Component, *httptest.Server) {
	t.Helper()
	comp := NewComponent(cfg)
	srv := httptest.NewServer(comp.Handler())
	t.Cleanup(func() {
		_ = comp.Stop(context.Background())
		srv.Close()
	})
	return comp, srv
}

// connect opens a stream and returns a channel of frames read from it.
func connect(t *testing.T, url string) <-chan frameResult {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := NewReader(resp.Body)
	t.Cleanup(func() { _ = r.Close() })
	out := make(chan frameResult, 64)
	go func() {
		defer close(out)
		for {
			f, err := r.Next()
			out <- frameResult{f, err}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func nextFrame(t *testing.T, frames <-chan frameResult) *Frame {
	t.Helper()
	select {
	case res, ok := <-frames:
		if !ok {
			t.Fatal("stream closed")
		}
		if res.err != nil {
			t.Fatalf("read frame: %v", res.err)
		}
		return res.frame
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return nil
}

func expectConnected(t *testing.T, frames <-chan frameResult) ConnectedEvent {
	t.Helper()
	f := nextFrame(t, frames)
	if f.Kind() != KindConnected {
		t.Fatalf("first frame kind = %q, want connected", f.Event)
	}
	if f.ID != "" {
		t.Fatalf("connected frame carries id %q", f.ID)
	}
	var ev ConnectedEvent
	if err := json.Unmarshal([]byte(f.Data), &ev); err != nil {
		t.Fatalf("decode connected: %v", err)
	}
	if ev.Status != "connected" || ev.ConnectionID == "" {
		t.Fatalf("connected payload = %+v", ev)
	}
	return ev
}

func TestStream_DeliversPublishedEventsInOrder(t *testing.T) {
	comp, srv := startStream(t, Config{})
	frames := connect(t, srv.URL)
	expectConnected(t, frames)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if _, err := comp.Publisher().Publish(ctx, KindUserCreated, map[string]int{"id": i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if _, err := comp.Publisher().Publish(ctx, KindUserDeleted, map[string]int{"id": 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	want := []struct {
		id, kind, data string
	}{
		{"0", "user_created", `{"id":1}`},
		{"1", "user_created", `{"id":2}`},
		{"2", "user_created", `{"id":3}`},
		{"3", "user_deleted", `{"id":2}`},
	}
	for _, w := range want {
		f := nextFrame(t, frames)
		if f.ID != w.id || f.Event != w.kind || f.Data != w.data {
			t.Fatalf("frame = %+v, want %+v", f, w)
		}
	}
}

func TestStream_NewConnectionSkipsHistory(t *testing.T) {
	comp, srv := startStream(t, Config{})
	ctx := context.Background()

	first := connect(t, srv.URL)
	expectConnected(t, first)

	if _, err := comp.Publisher().Publish(ctx, KindUserCreated, map[string]int{"id": 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if f := nextFrame(t, first); f.ID != "0" {
		t.Fatalf("first stream got %+v", f)
	}

	second := connect(t, srv.URL)
	if ev := expectConnected(t, second); ev.Cursor != 1 {
		t.Fatalf("second stream cursor = %d, want 1", ev.Cursor)
	}

	if _, err := comp.Publisher().Publish(ctx, KindUserCreated, map[string]int{"id": 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if f := nextFrame(t, first); f.ID != "1" {
		t.Fatalf("first stream got %+v", f)
	}
	if f := nextFrame(t, second); f.ID != "1" {
		t.Fatalf("second stream should start at event 1, got %+v", f)
	}

	if n := comp.Hub().Count(); n != 2 {
		t.Fatalf("hub count = %d, want 2", n)
	}
}

func TestStream_HubStopEndsStream(t *testing.T) {
	comp, srv := startStream(t, Config{})
	frames := connect(t, srv.URL)
	expectConnected(t, frames)

	_ = comp.Stop(context.Background())

	select {
	case res := <-frames:
		if res.err == nil {
			t.Fatalf("expected end of stream, got frame %+v", res.frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream not closed after hub stop")
	}

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status after stop = %d, want 503", resp.StatusCode)
	}
}

func TestStream_UnregistersOnDisconnect(t *testing.T) {
	comp, srv := startStream(t, Config{PollInterval: 10 * time.Millisecond, HeartbeatInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(5 * time.Second)
	for comp.Hub().Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	for comp.Hub().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection not unregistered after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_Heartbeat(t *testing.T) {
	_, srv := startStream(t, Config{PollInterval: 10 * time.Millisecond, HeartbeatInterval: 30 * time.Millisecond})

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream ended before heartbeat")
			}
			if strings.HasPrefix(line, ": heartbeat ") {
				return
			}
		case <-timeout:
			t.Fatal("no heartbeat received")
		}
	}
}

func TestStream_DrainSignalsGap(t *testing.T) {
	tests := []struct {
		name     string
		suppress bool
	}{
		{"gap frame", false},
		{"suppressed", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer(3)
			appendN(buf, 5) // retains 2..4
			s := NewStream(NewHub(), buf, Config{SuppressGaps: tt.suppress})
			conn := NewConn("c", "", 0)

			rec := httptest.NewRecorder()
			fw := &frameWriter{w: rec, rc: http.NewResponseController(rec)}
			if err := s.drain(context.Background(), fw, conn); err != nil {
				t.Fatalf("drain: %v", err)
			}

			if conn.Cursor() != 5 || conn.Delivered() != 3 {
				t.Fatalf("cursor=%d delivered=%d", conn.Cursor(), conn.Delivered())
			}

			r := NewReader(nopCloser{strings.NewReader(rec.Body.String())})
			var frames []*Frame
			for {
				f, err := r.Next()
				if err != nil {
					break
				}
				frames = append(frames, f)
			}

			offset := 0
			if !tt.suppress {
				if len(frames) != 4 || frames[0].Kind() != KindGap {
					t.Fatalf("frames = %+v", frames)
				}
				var gap GapEvent
				if err := json.Unmarshal([]byte(frames[0].Data), &gap); err != nil {
					t.Fatalf("decode gap: %v", err)
				}
				if gap != (GapEvent{Missed: 2, From: 0, To: 2}) {
					t.Fatalf("gap = %+v", gap)
				}
				offset = 1
			} else if len(frames) != 3 {
				t.Fatalf("frames = %+v", frames)
			}
			for i, want := range []string{"2", "3", "4"} {
				if frames[offset+i].ID != want {
					t.Fatalf("frame %d id = %q, want %q", i, frames[offset+i].ID, want)
				}
			}
		})
	}
}

func TestStream_DrainNothingToSend(t *testing.T) {
	buf := NewBuffer(3)
	s := NewStream(NewHub(), buf, Config{})
	conn := NewConn("c", "", buf.Next())
	rec := httptest.NewRecorder()
	fw := &frameWriter{w: rec, rc: http.NewResponseController(rec)}

	if err := s.drain(context.Background(), fw, conn); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("unexpected output %q", rec.Body.String())
	}
}

type nopCloser struct{ *strings.Reader }

func (nopCloser) Close() error { return nil }
