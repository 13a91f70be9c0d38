package handlers

import (
	"errors"
	"net/http"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/api/middleware"
	"github.com/podium-chat/podium/pkg/api/presence"
	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/identity"
	"github.com/podium-chat/podium/pkg/session"
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	registry  *identity.Registry
	authority *session.Authority
	signer    session.TokenSigner
	presence  *presence.Tracker
	recorder  *Recorder
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(registry *identity.Registry, authority *session.Authority, signer session.TokenSigner, tracker *presence.Tracker, recorder *Recorder) *AuthHandler {
	return &AuthHandler{
		registry:  registry,
		authority: authority,
		signer:    signer,
		presence:  tracker,
		recorder:  recorder,
	}
}

// RegisterRequest is the request body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Role defaults to reader. Admin accounts cannot be self-registered.
	Role string `json:"role,omitempty"`
}

// CredentialsRequest is the request body for POST /api/v1/auth/login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is the response body for register and login.
type SessionResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// Register handles POST /api/v1/auth/register. It creates an account
// and signs the first session token in one step.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	role := identity.Role(req.Role)
	if role == identity.RoleAdmin {
		WriteKind(w, http.StatusForbidden, KindForbidden, "admin accounts cannot be self-registered")
		return
	}

	user, err := h.registry.Register(req.Username, req.Password, role)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.recorder.Record(r, audit.ActionRegister, user.Username, "role="+string(user.Role))

	token, _, err := h.signer.Sign(user)
	if err != nil {
		logger.ErrorCtx(r.Context(), "token signing failed", logger.KeyError, err.Error())
		WriteKind(w, http.StatusInternalServerError, KindInternal, "internal error")
		return
	}

	logger.InfoCtx(r.Context(), "account registered",
		logger.KeyUsername, user.Username,
		logger.KeyRole, string(user.Role))

	WriteCreated(w, SessionResponse{Username: user.Username, Role: string(user.Role), Token: token})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteKind(w, http.StatusBadRequest, KindInvalidInput, "username and password are required")
		return
	}

	token, claims, err := h.authority.Login(req.Username, req.Password)
	if err != nil {
		var locked *identity.LockedError
		switch {
		case errors.As(err, &locked) && locked.Triggered:
			h.recorder.Record(r, audit.ActionLockout, req.Username, "")
		case errors.Is(err, identity.ErrInvalidCredentials):
			h.recorder.Record(r, audit.ActionLoginFailed, req.Username, "")
		}
		WriteError(w, err)
		return
	}

	h.presence.Touch(claims.Username)
	h.recorder.Record(r, audit.ActionLogin, claims.Username, "")

	logger.InfoCtx(r.Context(), "login",
		logger.KeyUsername, claims.Username,
		logger.KeyRole, string(claims.Role))

	WriteOK(w, SessionResponse{Username: claims.Username, Role: string(claims.Role), Token: token})
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so
// logout only drops presence; a held writer lock is released through
// the vanish path.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		WriteKind(w, http.StatusUnauthorized, KindTokenInvalid, "authentication required")
		return
	}

	h.presence.Logout(claims.Username)

	logger.InfoCtx(r.Context(), "logout", logger.KeyUsername, claims.Username)
	WriteOK(w, struct{}{})
}
