package app

import (
	"fmt"
	"time"

	"github.com/kbukum/qprofile/auth"
	"github.com/kbukum/qprofile/config"
	"github.com/kbukum/qprofile/observability"
	"github.com/kbukum/qprofile/server"
	"github.com/kbukum/qprofile/sse"
)

// ServiceName is the service identifier used for config lookup, logs and
// /health.
const ServiceName = "q-profile-vending"

// Config is the complete configuration of the serve command.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	SSE           sse.Config           `yaml:"sse" mapstructure:"sse"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	LoginLimit    LoginLimitConfig     `yaml:"login_limit" mapstructure:"login_limit"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// LoginLimitConfig throttles POST /login per client IP.
type LoginLimitConfig struct {
	// Attempts is the burst allowed per client.
	Attempts int `yaml:"attempts" mapstructure:"attempts"`
	// Window is how long one attempt takes to refill.
	Window time.Duration `yaml:"window" mapstructure:"window"`
	// PruneInterval is how often idle client buckets are dropped.
	PruneInterval time.Duration `yaml:"prune_interval" mapstructure:"prune_interval"`
}

// Rate returns the refill rate in attempts per second.
func (c *LoginLimitConfig) Rate() float64 {
	return 1 / c.Window.Seconds()
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.SSE.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Observability.ApplyDefaults()

	if c.LoginLimit.Attempts == 0 {
		c.LoginLimit.Attempts = 5
	}
	if c.LoginLimit.Window == 0 {
		c.LoginLimit.Window = 12 * time.Second
	}
	if c.LoginLimit.PruneInterval == 0 {
		c.LoginLimit.PruneInterval = time.Minute
	}
}

// Validate checks every section and refuses development credentials in
// production.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.SSE.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if c.LoginLimit.Attempts < 1 {
		return fmt.Errorf("login_limit.attempts must be positive (got: %d)", c.LoginLimit.Attempts)
	}
	if c.LoginLimit.Window <= 0 {
		return fmt.Errorf("login_limit.window must be positive (got: %s)", c.LoginLimit.Window)
	}
	if c.IsProduction() && c.Auth.IsEnabled() && c.Auth.UsesDevelopmentDefaults() {
		return fmt.Errorf("auth: %s and %s must be set in production", auth.EnvAdminPassword, auth.EnvSecretKey)
	}
	return nil
}
