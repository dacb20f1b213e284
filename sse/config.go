package sse

import (
	"fmt"
	"time"
)

// Config holds SSE stream configuration.
type Config struct {
	Path              string        `yaml:"path" mapstructure:"path"`
	Capacity          int           `yaml:"capacity" mapstructure:"capacity"`
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	// SuppressGaps disables the gap frame sent when a stream falls behind
	// the oldest buffered event. Eviction is then silent.
	SuppressGaps bool `yaml:"suppress_gaps" mapstructure:"suppress_gaps"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "/events"
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("sse.capacity must be positive (got: %d)", c.Capacity)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("sse.poll_interval must be positive (got: %s)", c.PollInterval)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("sse.heartbeat_interval must be positive (got: %s)", c.HeartbeatInterval)
	}
	if c.HeartbeatInterval < c.PollInterval {
		return fmt.Errorf("sse.heartbeat_interval (%s) must not be shorter than sse.poll_interval (%s)",
			c.HeartbeatInterval, c.PollInterval)
	}
	return nil
}
