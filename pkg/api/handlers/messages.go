package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/podium-chat/podium/pkg/api/middleware"
	"github.com/podium-chat/podium/pkg/message"
)

// MessageHandler handles the message log endpoints. Lock ownership,
// author checks and auditing live in the message service; the handler
// only translates between HTTP and the service.
type MessageHandler struct {
	svc *message.Service
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(svc *message.Service) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// BodyRequest is the request body for create and update.
type BodyRequest struct {
	Body string `json:"body"`
}

// MessageResponse is the wire form of one message.
type MessageResponse struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// List handles GET /api/v1/messages.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	page, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	result, err := h.svc.List(r.Context(), claims.Username, page, limit)
	if err != nil {
		WriteStoreError(w, err)
		return
	}
	WriteOK(w, result)
}

// Create handles POST /api/v1/messages.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var req BodyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	msg, err := h.svc.Create(r.Context(), claims.Username, req.Body)
	if err != nil {
		WriteStoreError(w, err)
		return
	}

	WriteCreated(w, MessageResponse{
		ID:        msg.ID,
		Author:    msg.Author,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	})
}

// Update handles PUT /api/v1/messages/{id}.
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	var req BodyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	msg, err := h.svc.Update(r.Context(), claims.Username, id, req.Body)
	if err != nil {
		WriteStoreError(w, err)
		return
	}

	WriteOK(w, MessageResponse{
		ID:        msg.ID,
		Author:    msg.Author,
		Body:      msg.Body,
		UpdatedAt: msg.UpdatedAt,
	})
}

// Delete handles DELETE /api/v1/messages/{id}.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	id, ok := parseMessageID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), claims.Username, id); err != nil {
		WriteStoreError(w, err)
		return
	}

	WriteOK(w, map[string]int64{"id": id})
}

func parseMessageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		WriteKind(w, http.StatusBadRequest, KindInvalidInput, "message id must be a positive integer")
		return 0, false
	}
	return id, true
}
