package reconciler

import (
	"fmt"
	"time"
)

// Config configures a Reconciler.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:5000.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Password logs in before syncing when the session gate is enabled.
	Password string `yaml:"password" mapstructure:"password"`
	// EventsPath and UsersPath locate the stream and the list endpoint.
	EventsPath string `yaml:"events_path" mapstructure:"events_path"`
	UsersPath  string `yaml:"users_path" mapstructure:"users_path"`
	// PollInterval is the fallback fetch interval while the stream is down.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// MaxBackoff caps the fetch delay after consecutive failures.
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	// ReconnectInterval is how long polling lasts before the stream is retried.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" mapstructure:"reconnect_interval"`
	// RequestTimeout bounds each list fetch.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.EventsPath == "" {
		c.EventsPath = "/events"
	}
	if c.UsersPath == "" {
		c.UsersPath = "/api/users"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 60 * time.Second
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = 30 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("reconciler: base_url is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("reconciler: poll_interval must be positive (got: %s)", c.PollInterval)
	}
	if c.MaxBackoff < c.PollInterval {
		return fmt.Errorf("reconciler: max_backoff (%s) must not be shorter than poll_interval (%s)",
			c.MaxBackoff, c.PollInterval)
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconciler: reconnect_interval must be positive (got: %s)", c.ReconnectInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("reconciler: request_timeout must be positive (got: %s)", c.RequestTimeout)
	}
	return nil
}
