package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/api/handlers"
	"github.com/podium-chat/podium/pkg/api/middleware"
	"github.com/podium-chat/podium/pkg/api/presence"
	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/bus"
	"github.com/podium-chat/podium/pkg/identity"
	"github.com/podium-chat/podium/pkg/message"
	"github.com/podium-chat/podium/pkg/semaphore"
	"github.com/podium-chat/podium/pkg/session"
)

// Deps carries the core components the router dispatches to.
type Deps struct {
	Registry  *identity.Registry
	Authority *session.Authority
	Signer    session.TokenSigner
	Lock      *semaphore.Semaphore
	Messages  *message.Service
	Audit     *audit.Log
	Bus       *bus.Bus
	Presence  *presence.Tracker

	// Metrics, when non-nil, is served at /metrics.
	Metrics *prometheus.Registry

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

// NewRouter creates and configures the chi router with all middleware
// and routes. The router is the only component that knows about HTTP;
// everything behind it deals in plain values.
func NewRouter(cfg APIConfig, deps Deps) http.Handler {
	cfg.applyDefaults()

	r := chi.NewRouter()

	// Middleware stack - order matters. The request timeout is applied
	// per-group below, never globally: the event stream must outlive it.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(limitBody)

	recorder := &handlers.Recorder{Log: deps.Audit, Lock: deps.Lock}

	authHandler := handlers.NewAuthHandler(deps.Registry, deps.Authority, deps.Signer, deps.Presence, recorder)
	messageHandler := handlers.NewMessageHandler(deps.Messages)
	writerHandler := handlers.NewWriterHandler(deps.Lock, deps.Bus, recorder, deps.Now)
	auditHandler := handlers.NewAuditHandler(deps.Audit, recorder)
	userHandler := handlers.NewUserHandler(deps.Registry)
	eventsHandler := handlers.NewEventsHandler(deps.Authority, deps.Bus, deps.Presence)
	healthHandler := handlers.NewHealthHandler(deps.Audit, deps.Bus)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// The event stream authenticates itself (websocket dials from
		// browsers cannot carry headers) and stays open for the life of
		// the subscription, so it sits outside the timeout group.
		r.Get("/events", eventsHandler.Stream)

		// Every command is bounded by the request timeout.
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

			// Public: no token yet.
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)

			// Everything else requires a bearer token. Authenticated
			// requests feed the presence tracker.
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(deps.Authority, deps.Presence.Touch))

				r.Post("/auth/logout", authHandler.Logout)
				r.Get("/messages", messageHandler.List)
				r.Get("/status", writerHandler.Status)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireWriter())
					r.Post("/messages", messageHandler.Create)
					r.Put("/messages/{id}", messageHandler.Update)
					r.Delete("/messages/{id}", messageHandler.Delete)
					r.Post("/writer/acquire", writerHandler.Acquire)
					r.Post("/writer/release", writerHandler.Release)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin())
					r.Get("/audit", auditHandler.List)
					r.Get("/users", userHandler.List)
					r.Put("/writer/enabled", writerHandler.SetEnabled)
					r.Post("/writer/force-release", writerHandler.ForceRelease)
				})
			})
		})
	})

	return r
}

// limitBody caps request bodies; oversized reads fail inside the
// handler's decoder.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBody)
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger seeds the per-request log context and logs start and
// completion of every request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimiddleware.GetReqID(r.Context())
		lc := logger.NewLogContext(r.RemoteAddr).WithRequestID(requestID)
		ctx := logger.WithContext(r.Context(), lc)

		logger.DebugCtx(ctx, "request started",
			"method", r.Method,
			"path", r.URL.Path,
		)

		// Wrap response writer to capture status code
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.InfoCtx(ctx, "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, lc.DurationMs(),
		)
	})
}
