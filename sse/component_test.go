package sse

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/qprofile/component"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Path != "/events" || cfg.Capacity != 100 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.PollInterval != time.Second || cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("intervals = %s / %s", cfg.PollInterval, cfg.HeartbeatInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative capacity", func(c *Config) { c.Capacity = -1 }, "capacity"},
		{"negative poll", func(c *Config) { c.PollInterval = -time.Second }, "poll_interval"},
		{"heartbeat shorter than poll", func(c *Config) { c.HeartbeatInterval = 500 * time.Millisecond }, "heartbeat_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestPublisher_RejectsUnencodable(t *testing.T) {
	p := NewPublisher(NewBuffer(3))
	if _, err := p.Publish(context.Background(), KindUserCreated, math.NaN()); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent(Config{Capacity: 5})
	ctx := context.Background()

	if comp.Name() != "sse" {
		t.Fatalf("Name = %q", comp.Name())
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := comp.Publisher().Publish(ctx, KindUserCreated, map[string]string{"username": "ada"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	h := comp.Health(ctx)
	if h.Status != component.StatusHealthy {
		t.Fatalf("health = %s", h.Status)
	}
	if h.Message != "0 streams, 1/5 events buffered" {
		t.Fatalf("health message = %q", h.Message)
	}
	if d := comp.Describe(); d.Type != "sse" || !strings.Contains(d.Details, "/events") {
		t.Fatalf("describe = %+v", d)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Fatalf("health after stop = %s", h.Status)
	}
}

func TestComponent_Status(t *testing.T) {
	comp := NewComponent(Config{Capacity: 2})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := comp.Publisher().Publish(ctx, KindUserDeleted, map[string]int{"id": i}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if err := comp.Hub().Register(NewConn("c1", "10.0.0.1:1", 3)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	st := comp.Status()
	if st.Streams != 1 || st.Buffered != 2 || st.Capacity != 2 {
		t.Fatalf("status = %+v", st)
	}
	if st.Next != 3 || st.Oldest != 1 {
		t.Fatalf("bounds next=%d oldest=%d", st.Next, st.Oldest)
	}
	if len(st.Connections) != 1 || st.Connections[0].ID != "c1" || st.Connections[0].Cursor != 3 {
		t.Fatalf("connections = %+v", st.Connections)
	}

	comp.Hub().Unregister("c1")
	if st := comp.Status(); st.Streams != 0 || len(st.Connections) != 0 {
		t.Fatalf("after unregister = %+v", st)
	}
}
