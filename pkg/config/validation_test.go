package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("Expected logging.level error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
}

func TestValidate_NegativePort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative port")
	}
}

func TestValidate_ZeroMaxFailures(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Identity.MaxFailures = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero max_failures")
	}
}

func TestValidate_SweepLongerThanGrace(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Presence.Grace = 10 * time.Second
	cfg.Presence.SweepInterval = time.Minute

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error when sweep interval exceeds grace")
	}
}

func TestValidate_ShortGrace(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Presence.Grace = 100 * time.Millisecond
	cfg.Presence.SweepInterval = 50 * time.Millisecond

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sub-second grace")
	}
}
