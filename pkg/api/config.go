package api

import (
	"fmt"
	"os"
	"time"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/session"
)

// EnvSessionSecret is the name of the environment variable for the
// session token signing secret.
const EnvSessionSecret = "PODIUM_SESSION_SECRET"

// MaxRequestBody bounds every request body.
const MaxRequestBody = 1 << 20 // 1 MiB

// APIConfig configures the command API HTTP server.
type APIConfig struct {
	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means there is no timeout.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// A zero or negative value means there is no timeout.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If zero, the value of ReadTimeout is used.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds each request's handler. Default: 30s.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// Session configures token signing.
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// SessionConfig configures session token generation and validation.
type SessionConfig struct {
	// Secret is the HMAC signing key for session tokens.
	// Must be at least 32 characters long.
	// Can also be set via PODIUM_SESSION_SECRET environment variable.
	// Environment variable takes precedence over config file.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// TokenDuration is the lifetime of session tokens.
	// Default: 1h
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *APIConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Session.TokenDuration == 0 {
		c.Session.TokenDuration = session.DefaultTokenDuration
	}
}

// GetSessionSecret returns the signing secret, preferring the
// environment variable. Returns empty string if neither is set. Logs a
// warning if the environment variable overrides a config file value.
func (c *APIConfig) GetSessionSecret() string {
	envSecret := os.Getenv(EnvSessionSecret)
	if envSecret != "" {
		if c.Session.Secret != "" && c.Session.Secret != envSecret {
			logger.Warn("session secret from environment variable overrides config file value",
				"env_var", EnvSessionSecret)
		}
		return envSecret
	}
	return c.Session.Secret
}

// Validate checks the configuration.
func (c *APIConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("api port must be between 1 and 65535, got %d", c.Port)
	}
	if len(c.GetSessionSecret()) < session.MinSecretLength {
		return fmt.Errorf("session secret must be at least %d characters (set %s)",
			session.MinSecretLength, EnvSessionSecret)
	}
	return nil
}
