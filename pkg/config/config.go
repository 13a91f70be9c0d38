// Package config loads and validates the Podium server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/podium-chat/podium/pkg/api"
	"github.com/podium-chat/podium/pkg/store"
)

// EnvAdminPassword is the environment variable for the bootstrap admin
// password.
const EnvAdminPassword = "PODIUM_ADMIN_PASSWORD"

// Config represents the Podium server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (PODIUM_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Accounts themselves are managed at runtime through the API; only the
// bootstrap admin is configured here.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Database configures message and audit persistence
	// (SQLite, PostgreSQL or Badger).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the command API server configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Identity contains login lockout policy
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`

	// Presence controls when a silent client is considered gone
	Presence PresenceConfig `mapstructure:"presence" yaml:"presence"`

	// Admin contains the bootstrap admin account configuration.
	// The account is created on first start if it does not exist.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served
	// at /metrics on the API port.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// IdentityConfig contains login lockout policy.
type IdentityConfig struct {
	// MaxFailures is the number of consecutive failed logins that
	// locks an account. Default: 5
	MaxFailures int `mapstructure:"max_failures" yaml:"max_failures"`

	// LockoutDuration is how long a locked account stays locked.
	// Default: 15m
	LockoutDuration time.Duration `mapstructure:"lockout_duration" yaml:"lockout_duration"`
}

// PresenceConfig controls when a silent principal is declared gone and
// its writer lock reclaimed.
type PresenceConfig struct {
	// Grace is how long a principal may stay silent before being
	// considered gone. Default: 30s
	Grace time.Duration `mapstructure:"grace" yaml:"grace"`

	// SweepInterval is how often the presence tracker scans for
	// vanished principals. Default: 5s
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// AdminConfig contains the bootstrap admin account.
type AdminConfig struct {
	// Username is the admin username. Default: "admin"
	Username string `mapstructure:"username" yaml:"username"`

	// Password is the bootstrap admin password. Can also be set via
	// PODIUM_ADMIN_PASSWORD; the environment variable takes
	// precedence. A random password is generated when neither is set.
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// GetAdminPassword returns the bootstrap admin password, preferring the
// environment variable. Returns empty string if neither is set.
func (c *AdminConfig) GetAdminPassword() string {
	if env := os.Getenv(EnvAdminPassword); env != "" {
		return env
	}
	return c.Password
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages. It checks
// that the config file exists and tells the user how to create one if
// it does not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			// No file anywhere: run on defaults. Podium works out of
			// the box with SQLite in the XDG data dir.
			return Load("")
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  podium init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in
// YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry the session secret and admin password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// InitConfig writes a sample configuration file at the default location.
// Returns the path of the created file.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration file at the given path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}
	return SaveConfig(GetDefaultConfig(), path)
}

// setupViper configures viper with environment variables and config
// file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the PODIUM_ prefix and underscores.
	// Example: PODIUM_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("PODIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/podium/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// the current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "podium")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "podium")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for
// the init command).
func GetConfigDir() string {
	return getConfigDir()
}
