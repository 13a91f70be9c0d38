package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/bus"
	"github.com/podium-chat/podium/pkg/semaphore"
)

// Server provides the HTTP command surface and the streaming event
// surface.
//
// The server supports graceful shutdown with a bounded timeout; on
// shutdown a held writer lock is force-released so it cannot survive
// the process and strand the next one.
type Server struct {
	server       *http.Server
	config       APIConfig
	deps         Deps
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin
// serving requests. Defaults are applied here so the server works
// correctly even when created directly in tests.
func NewServer(config APIConfig, deps Deps) *Server {
	config.applyDefaults()

	router := NewRouter(config, deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
		deps:   deps,
	}
}

// Start starts the API HTTP server and blocks until the context is
// cancelled or an error occurs. Cancellation triggers graceful
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. A held writer lock is released on
// the way down and the release lands on the audit trail.
//
// Stop is safe to call multiple times and concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.releaseLockForShutdown()

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err.Error())
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// releaseLockForShutdown frees the writer lock so a restart starts
// from a clean slate. The RELEASE audit entry comes out of the
// semaphore's transition hook.
func (s *Server) releaseLockForShutdown() {
	if s.deps.Lock == nil {
		return
	}
	holder, released := s.deps.Lock.ForceRelease(semaphore.ReasonShutdown)
	if !released {
		return
	}

	logger.Info("writer lock released for shutdown", logger.KeyHolder, holder)

	if s.deps.Bus != nil {
		s.deps.Bus.PublishWriterChange(bus.WriterForced, holder)
	}
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
