package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/api"
	"github.com/podium-chat/podium/pkg/api/presence"
	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/bus"
	"github.com/podium-chat/podium/pkg/config"
	"github.com/podium-chat/podium/pkg/identity"
	"github.com/podium-chat/podium/pkg/message"
	"github.com/podium-chat/podium/pkg/semaphore"
	"github.com/podium-chat/podium/pkg/session"
	"github.com/podium-chat/podium/pkg/store"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Podium server",
	Long: `Start the Podium server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/podium/config.yaml.

Examples:
  # Start in background (default)
  podium start

  # Start in foreground
  podium start --foreground

  # Start with custom config file
  podium start --config /etc/podium/config.yaml

  # Start with environment variable overrides
  PODIUM_LOGGING_LEVEL=DEBUG podium start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/podium/podium.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/podium/podium.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("Podium - single-writer chat service")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	// The session secret is the one piece of config the server cannot
	// invent silently: tokens signed with an ephemeral secret die with
	// the process.
	if cfg.API.GetSessionSecret() == "" {
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		cfg.API.Session.Secret = secret
		logger.Warn("no session secret configured, generated an ephemeral one; sessions will not survive a restart",
			"env_var", api.EnvSessionSecret)
	}
	if err := cfg.API.Validate(); err != nil {
		return fmt.Errorf("invalid API configuration: %w", err)
	}

	// Persistence layer
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	// Identity registry with the configured lockout policy
	registry, err := identity.NewRegistry(identity.RegistryConfig{
		MaxFailures:     cfg.Identity.MaxFailures,
		LockoutDuration: cfg.Identity.LockoutDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize identity registry: %w", err)
	}

	// Session tokens
	signer, err := session.NewJWTSigner(session.JWTConfig{
		Secret:        cfg.API.GetSessionSecret(),
		TokenDuration: cfg.API.Session.TokenDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token signer: %w", err)
	}
	authority := session.NewAuthority(signer, registry)

	// Metrics registry (if enabled)
	var promReg *prometheus.Registry
	var semMetrics *semaphore.Metrics
	var busMetrics *bus.Metrics
	if cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		semMetrics = semaphore.NewMetrics(promReg)
		busMetrics = bus.NewMetrics(promReg)
		logger.Info("Metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Audit trail backed by the store
	auditLog, err := audit.NewLog(ctx, audit.Config{Store: st})
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}

	// Writer lock and event bus. The lock's hooks publish lock_state
	// and append ownership audit entries in commit order; the bus is
	// assigned right after, and nothing can acquire the lock before the
	// API server starts.
	var b *bus.Bus
	lock := semaphore.New(semaphore.Config{
		Enabled: true,
		Metrics: semMetrics,
		OnChange: func(state semaphore.State) {
			b.PublishLockState(bus.LockState{
				Enabled: state.Enabled,
				Holder:  state.Holder,
				Value:   state.Value(),
			})
		},
		OnTransition: func(t semaphore.Transition) {
			// The shutdown release fires after ctx is cancelled; the
			// entry must still reach the store.
			auditLog.RecordLockTransition(context.WithoutCancel(ctx), t)
		},
	})
	b = bus.New(bus.Config{
		Metrics: busMetrics,
		Status: func() bus.LockState {
			state := lock.Status()
			return bus.LockState{
				Enabled: state.Enabled,
				Holder:  state.Holder,
				Value:   state.Value(),
			}
		},
	})

	// Message service
	messages, err := message.NewService(message.Config{
		Store: st,
		Lock:  lock,
		Audit: auditLog,
		Bus:   b,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize message service: %w", err)
	}

	// Presence tracker: a holder whose stream vanishes loses the lock
	// after the grace period.
	tracker := presence.New(presence.Config{
		Grace:         cfg.Presence.Grace,
		SweepInterval: cfg.Presence.SweepInterval,
		OnVanish: func(username string) {
			if !lock.ReleaseIfHeldBy(username, semaphore.ReasonClientGone) {
				return
			}
			logger.Info("writer lock reclaimed from vanished client", "username", username)
			b.PublishWriterChange(bus.WriterForced, username)
		},
	})

	// Ensure the admin user exists (generates a random password on
	// first run unless one is configured)
	adminPassword := cfg.Admin.GetAdminPassword()
	generated := false
	if adminPassword == "" {
		adminPassword, err = randomPassword()
		if err != nil {
			return fmt.Errorf("failed to generate admin password: %w", err)
		}
		generated = true
	}
	_, created, err := registry.EnsureAdmin(cfg.Admin.Username, adminPassword)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if created && generated {
		logger.Info("Admin user created", "username", cfg.Admin.Username)
		fmt.Printf("\n*** IMPORTANT: Admin user created with password: %s ***\n", adminPassword)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	// Assemble the API server
	apiCfg := cfg.API
	server := api.NewServer(apiCfg, api.Deps{
		Registry:  registry,
		Authority: authority,
		Signer:    signer,
		Lock:      lock,
		Messages:  messages,
		Audit:     auditLog,
		Bus:       b,
		Presence:  tracker,
		Metrics:   promReg,
	})
	logger.Info("API server configured", "port", apiCfg.Port)

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Background loops: event reconciler and presence sweeper
	go b.Run(ctx)
	go tracker.Run(ctx)

	// Serve until interrupted
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// randomSecret returns a hex-encoded secret long enough for token signing.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// randomPassword returns a generated password that satisfies the
// password policy (letters and digits, well above the minimum length).
func randomPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf) + "a1", nil
}

// startDaemon starts the server as a background daemon process.
func startDaemon() error {
	stateDir := GetDefaultStateDir()

	// Create state directory if it doesn't exist
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Set default PID file if not specified
	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(stateDir, "podium.pid")
	}

	// Check if already running
	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("Podium is already running (PID %d)\nUse 'podium stop' to stop the running instance", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	// Set default log file if not specified
	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(stateDir, "podium.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	daemon := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	daemon.Stdout = logFileHandle
	daemon.Stderr = logFileHandle

	// Detach from parent process
	daemon.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := daemon.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("Podium started in background (PID %d)\n", daemon.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'podium stop' to stop the server")
	fmt.Println("Use 'podium status' to check server status")

	return nil
}
