package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for values that would prevent the
// server from starting correctly. Call after ApplyDefaults.
func Validate(cfg *Config) error {
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", cfg.ShutdownTimeout)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", cfg.API.Port)
	}

	if cfg.Identity.MaxFailures < 1 {
		return fmt.Errorf("identity.max_failures must be at least 1, got %d", cfg.Identity.MaxFailures)
	}
	if cfg.Identity.LockoutDuration <= 0 {
		return fmt.Errorf("identity.lockout_duration must be positive, got %s", cfg.Identity.LockoutDuration)
	}

	if cfg.Presence.Grace < time.Second {
		return fmt.Errorf("presence.grace must be at least 1s, got %s", cfg.Presence.Grace)
	}
	if cfg.Presence.SweepInterval <= 0 || cfg.Presence.SweepInterval > cfg.Presence.Grace {
		return fmt.Errorf("presence.sweep_interval must be positive and no longer than the grace period, got %s",
			cfg.Presence.SweepInterval)
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Level)
	}

	switch cfg.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Format)
	}

	if cfg.Output == "" {
		return fmt.Errorf("logging.output must not be empty")
	}

	return nil
}
