package handlers

import (
	"net/http"
	"time"

	"github.com/podium-chat/podium/pkg/identity"
)

// UserHandler exposes account administration.
type UserHandler struct {
	registry *identity.Registry
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(registry *identity.Registry) *UserHandler {
	return &UserHandler{registry: registry}
}

// UserResponse is a sanitized account representation.
type UserResponse struct {
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
}

// List handles GET /api/v1/users. Admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users := h.registry.List()

	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = UserResponse{
			Username:    u.Username,
			Role:        string(u.Role),
			CreatedAt:   u.CreatedAt,
			LastLoginAt: u.LastLoginAt,
		}
	}

	WriteOK(w, map[string]any{"users": out, "count": len(out)})
}
