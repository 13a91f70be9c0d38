package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/api/presence"
	"github.com/podium-chat/podium/pkg/bus"
	"github.com/podium-chat/podium/pkg/session"
)

// Write and control-frame deadlines for the stream.
const (
	streamWriteTimeout = 5 * time.Second
	streamReadLimit    = 512
)

// EventsHandler upgrades authenticated requests to a live event
// stream. Each connection gets its own bounded subscription queue; a
// consumer that cannot keep up sees the lossy flag instead of slowing
// the publishers down.
type EventsHandler struct {
	authority *session.Authority
	bus       *bus.Bus
	presence  *presence.Tracker
	upgrader  websocket.Upgrader
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(authority *session.Authority, b *bus.Bus, tracker *presence.Tracker) *EventsHandler {
	return &EventsHandler{
		authority: authority,
		bus:       b,
		presence:  tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Token auth gates the stream; origin checks add nothing.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream handles GET /api/v1/events. Browsers cannot set headers on
// websocket dials, so the token is accepted from either the
// Authorization header or a token query parameter.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token, ok := extractStreamToken(r)
	if !ok {
		WriteKind(w, http.StatusUnauthorized, KindTokenInvalid, "token required")
		return
	}

	claims, err := h.authority.Authenticate(token)
	if err != nil {
		WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.WarnCtx(r.Context(), "websocket upgrade failed",
			logger.KeyUsername, claims.Username,
			logger.KeyError, err.Error())
		return
	}
	defer conn.Close()

	h.presence.SubscriptionOpened(claims.Username)
	defer h.presence.SubscriptionClosed(claims.Username)

	sub := h.bus.Subscribe()
	defer sub.Close()

	logger.InfoCtx(r.Context(), "event stream opened",
		logger.KeyUsername, claims.Username,
		logger.KeySubscriptionID, sub.ID())

	// The stream lives at most as long as the token: an expired holder
	// must drop into presence grace, not stay subscribed forever.
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if claims.ExpiresAt.IsZero() {
		ctx, cancel = context.WithCancel(r.Context())
	} else {
		ctx, cancel = context.WithDeadline(r.Context(), claims.ExpiresAt)
	}
	defer cancel()

	// Reader loop: the client sends no data frames, but reading is what
	// services its ping and close frames.
	go func() {
		conn.SetReadLimit(streamReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			break
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			logger.DebugCtx(r.Context(), "event stream write failed, closing",
				logger.KeySubscriptionID, sub.ID(),
				logger.KeyError, err.Error())
			break
		}
	}

	logger.InfoCtx(r.Context(), "event stream closed",
		logger.KeyUsername, claims.Username,
		logger.KeySubscriptionID, sub.ID())
}

func extractStreamToken(r *http.Request) (string, bool) {
	if token, ok := extractBearer(r); ok {
		return token, true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

func extractBearer(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):], true
	}
	return "", false
}
