package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/api/middleware"
	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/bus"
	"github.com/podium-chat/podium/pkg/semaphore"
)

// WriterHandler handles writer lock acquisition, release, status and
// the admin gate.
//
// ACQUIRE, RELEASE and ADMIN_FORCE_RELEASE audit entries are not
// recorded here: they come out of the semaphore's transition hook, in
// commit order.
type WriterHandler struct {
	lock     *semaphore.Semaphore
	bus      *bus.Bus
	recorder *Recorder
	now      func() time.Time
}

// NewWriterHandler creates a WriterHandler. A nil clock selects
// time.Now.
func NewWriterHandler(lock *semaphore.Semaphore, b *bus.Bus, recorder *Recorder, now func() time.Time) *WriterHandler {
	if now == nil {
		now = time.Now
	}
	return &WriterHandler{lock: lock, bus: b, recorder: recorder, now: now}
}

// StatusResponse is the wire form of the lock state.
type StatusResponse struct {
	LockValue     int       `json:"lock_value"`
	Holder        string    `json:"holder,omitempty"`
	WriterEnabled bool      `json:"writer_enabled"`
	Timestamp     time.Time `json:"ts"`
}

func (h *WriterHandler) statusResponse(state semaphore.State) StatusResponse {
	return StatusResponse{
		LockValue:     state.Value(),
		Holder:        state.Holder,
		WriterEnabled: state.Enabled,
		Timestamp:     h.now().UTC(),
	}
}

// Acquire handles POST /api/v1/writer/acquire.
func (h *WriterHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	state, err := h.lock.TryAcquire(claims.Username)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.bus.PublishWriterChange(bus.WriterAcquired, claims.Username)

	logger.InfoCtx(r.Context(), "writer lock acquired",
		logger.KeyHolder, claims.Username)

	WriteOK(w, map[string]any{
		"owner":       state.Holder,
		"acquired_at": state.AcquiredAt,
	})
}

// Release handles POST /api/v1/writer/release.
func (h *WriterHandler) Release(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	if _, err := h.lock.Release(claims.Username); err != nil {
		WriteError(w, err)
		return
	}

	h.bus.PublishWriterChange(bus.WriterReleased, claims.Username)

	logger.InfoCtx(r.Context(), "writer lock released",
		logger.KeyHolder, claims.Username)

	WriteOK(w, struct{}{})
}

// Status handles GET /api/v1/status. Any authenticated role may read
// the lock state.
func (h *WriterHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, h.statusResponse(h.lock.Status()))
}

// EnabledRequest is the request body for PUT /api/v1/writer/enabled.
type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetEnabled handles PUT /api/v1/writer/enabled. Disabling while the
// lock is held force-releases the holder; the transition hook records
// the ADMIN_FORCE_RELEASE before the ADMIN_TOGGLE entry lands here.
func (h *WriterHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var req EnabledRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		WriteKind(w, http.StatusBadRequest, KindInvalidInput, "enabled is required")
		return
	}

	released, changed := h.lock.SetEnabled(*req.Enabled)
	if changed {
		if released != "" {
			h.bus.PublishWriterChange(bus.WriterForced, released)
		}
		h.recorder.Record(r, audit.ActionAdminToggle, claims.Username, fmt.Sprintf("enabled=%t", *req.Enabled))
		h.bus.PublishAdminToggle(claims.Username, *req.Enabled)

		logger.InfoCtx(r.Context(), "writer gate toggled",
			logger.KeyEnabled, *req.Enabled,
			logger.KeyHolder, released)
	}

	WriteOK(w, map[string]bool{"writer_enabled": *req.Enabled})
}

// ForceRelease handles POST /api/v1/writer/force-release. Admin
// intervention for a stuck holder.
func (h *WriterHandler) ForceRelease(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	holder, released := h.lock.ForceRelease(semaphore.ReasonAdmin)
	if released {
		h.bus.PublishWriterChange(bus.WriterForced, holder)

		logger.InfoCtx(r.Context(), "writer lock force-released",
			logger.KeyHolder, holder,
			logger.KeyUsername, claims.Username)
	}

	WriteOK(w, map[string]any{
		"released": released,
		"holder":   holder,
	})
}
