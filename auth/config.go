package auth

import (
	"fmt"
	"os"
	"time"
)

// Development fallbacks used when neither the config file nor the environment
// provide credentials.
const (
	DefaultAdminPassword = "admin123"
	DefaultSecretKey     = "dev-secret-key-change-in-production"

	EnvAdminPassword = "ADMIN_PASSWORD"
	EnvSecretKey     = "SECRET_KEY"

	DefaultSessionTTL = 12 * time.Hour
	DefaultCookieName = "qprofile_session"
	DefaultIssuer     = "q-profile-vending"

	minSecretKeyLength = 16
)

// Config holds the session gate configuration.
type Config struct {
	// Enabled turns the gate on. Nil means enabled.
	Enabled *bool `yaml:"enabled" mapstructure:"enabled"`

	AdminPassword string        `yaml:"admin_password" mapstructure:"admin_password"`
	SecretKey     string        `yaml:"secret_key" mapstructure:"secret_key"`
	SessionTTL    time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	CookieName    string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	Issuer        string        `yaml:"issuer" mapstructure:"issuer"`

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

// ApplyDefaults fills credentials from ADMIN_PASSWORD and SECRET_KEY, then
// from the development fallbacks.
func (c *Config) ApplyDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.AdminPassword == "" {
		c.AdminPassword = envOr(EnvAdminPassword, DefaultAdminPassword)
	}
	if c.SecretKey == "" {
		c.SecretKey = envOr(EnvSecretKey, DefaultSecretKey)
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
}

// IsEnabled reports whether the gate is active.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// UsesDevelopmentDefaults reports whether either credential is still the
// built-in fallback.
func (c *Config) UsesDevelopmentDefaults() bool {
	return c.AdminPassword == DefaultAdminPassword || c.SecretKey == DefaultSecretKey
}

// Validate checks the configuration for an enabled gate.
func (c *Config) Validate() error {
	if !c.IsEnabled() {
		return nil
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("admin_password is required")
	}
	if len(c.AdminPassword) > 72 {
		return fmt.Errorf("admin_password must be at most 72 bytes")
	}
	if len(c.SecretKey) < minSecretKeyLength {
		return fmt.Errorf("secret_key must be at least %d characters", minSecretKeyLength)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if c.CookieName == "" {
		return fmt.Errorf("cookie_name is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
