package handlers

import (
	"net/http"
	"time"

	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/bus"
)

// HealthHandler handles the unauthenticated health probes.
type HealthHandler struct {
	audit     *audit.Log
	bus       *bus.Bus
	startedAt time.Time
}

// NewHealthHandler creates a health handler. Either dependency may be
// nil, in which case readiness reports unavailable.
func NewHealthHandler(log *audit.Log, b *bus.Bus) *HealthHandler {
	return &HealthHandler{audit: log, bus: b, startedAt: time.Now().UTC()}
}

// Liveness handles GET /health. Succeeds whenever the process serves
// HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	WriteOK(w, map[string]any{
		"service":    "podium",
		"started_at": h.startedAt.Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	})
}

// Readiness handles GET /health/ready. A degraded audit trail is a
// warning, not an outage: the service keeps accepting commands while
// entries buffer in memory.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		WriteKind(w, http.StatusServiceUnavailable, KindInternal, "audit log not initialized")
		return
	}

	data := map[string]any{
		"audit":    "ok",
		"buffered": h.audit.Buffered(),
	}
	if h.bus != nil {
		data["subscribers"] = h.bus.SubscriberCount()
	}
	if !h.audit.Healthy() {
		data["audit"] = "degraded"
	}

	WriteOK(w, data)
}
