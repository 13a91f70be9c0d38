package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/podium-chat/podium/pkg/store"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite
  sqlite:
    path: "` + filepath.ToSlash(tmpDir) + `/podium.db"

api:
  port: 8080
  session:
    secret: "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Defaults fill the gaps the file leaves.
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.Session.Secret != "test-secret-key-for-testing-minimum-32-chars" {
		t.Errorf("Session secret not loaded from file")
	}
	if cfg.Identity.MaxFailures != 5 {
		t.Errorf("Expected default max_failures 5, got %d", cfg.Identity.MaxFailures)
	}
	if cfg.Presence.Grace != 30*time.Second {
		t.Errorf("Expected default presence grace 30s, got %v", cfg.Presence.Grace)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config so
	// the server can run without one for quick testing.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected default database type sqlite, got %q", cfg.Database.Type)
	}
}

func TestLoad_DurationStrings(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
shutdown_timeout: 45s

database:
  type: sqlite
  sqlite:
    path: "` + filepath.ToSlash(tmpDir) + `/podium.db"

presence:
  grace: 2m
  sweep_interval: 10s

identity:
  lockout_duration: 1h
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ShutdownTimeout != 45*time.Second {
		t.Errorf("Expected shutdown_timeout 45s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Presence.Grace != 2*time.Minute {
		t.Errorf("Expected presence grace 2m, got %v", cfg.Presence.Grace)
	}
	if cfg.Presence.SweepInterval != 10*time.Second {
		t.Errorf("Expected sweep interval 10s, got %v", cfg.Presence.SweepInterval)
	}
	if cfg.Identity.LockoutDuration != time.Hour {
		t.Errorf("Expected lockout duration 1h, got %v", cfg.Identity.LockoutDuration)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("logging: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestGetAdminPassword_EnvPrecedence(t *testing.T) {
	t.Setenv(EnvAdminPassword, "from-env-1")

	cfg := AdminConfig{Password: "from-file-1"}
	if got := cfg.GetAdminPassword(); got != "from-env-1" {
		t.Errorf("Expected environment variable to win, got %q", got)
	}

	_ = os.Unsetenv(EnvAdminPassword)
	if got := cfg.GetAdminPassword(); got != "from-file-1" {
		t.Errorf("Expected config file value, got %q", got)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.API.Port = 9999
	cfg.Admin.Username = "root"

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.API.Port != 9999 {
		t.Errorf("Expected port 9999 after round trip, got %d", loaded.API.Port)
	}
	if loaded.Admin.Username != "root" {
		t.Errorf("Expected admin username 'root' after round trip, got %q", loaded.Admin.Username)
	}
}
