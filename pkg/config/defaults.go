package config

import (
	"strings"
	"time"

	"github.com/podium-chat/podium/pkg/api/presence"
	"github.com/podium-chat/podium/pkg/identity"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Zero values (0, "", false) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	cfg.Database.ApplyDefaults()
	applyAPIDefaults(cfg)
	applyIdentityDefaults(&cfg.Identity)
	applyPresenceDefaults(&cfg.Presence)
	applyAdminDefaults(&cfg.Admin)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyAPIDefaults delegates to the API package's own defaults.
func applyAPIDefaults(cfg *Config) {
	c := &cfg.API
	if c.Port == 0 {
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
}

// applyIdentityDefaults sets the lockout policy defaults.
func applyIdentityDefaults(cfg *IdentityConfig) {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = identity.DefaultMaxFailures
	}
	if cfg.LockoutDuration == 0 {
		cfg.LockoutDuration = identity.DefaultLockoutDuration
	}
}

// applyPresenceDefaults sets the presence grace defaults.
func applyPresenceDefaults(cfg *PresenceConfig) {
	if cfg.Grace == 0 {
		cfg.Grace = presence.DefaultGrace
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = presence.DefaultSweepInterval
	}
}

// applyAdminDefaults sets the bootstrap admin defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	// Password has no default; it is generated on first start when
	// neither config nor PODIUM_ADMIN_PASSWORD provides one.
}

// GetDefaultConfig returns a Config struct with all default values
// applied.
//
// Useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
