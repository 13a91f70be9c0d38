package handlers

import (
	"fmt"
	"net/http"

	"github.com/podium-chat/podium/pkg/api/middleware"
	"github.com/podium-chat/podium/pkg/audit"
)

// AuditHandler exposes the audit trail to admins.
type AuditHandler struct {
	log      *audit.Log
	recorder *Recorder
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(log *audit.Log, recorder *Recorder) *AuditHandler {
	return &AuditHandler{log: log, recorder: recorder}
}

// AuditPage is one page of the trail, newest first.
type AuditPage struct {
	Items   []audit.Entry `json:"items"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Total   int64         `json:"total"`
	HasMore bool          `json:"has_more"`
}

// List handles GET /api/v1/audit. Reading the trail is itself an
// audited action.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	page, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	items, total, err := h.log.List(r.Context(), (page-1)*limit, limit)
	if err != nil {
		WriteStoreError(w, err)
		return
	}

	h.recorder.Record(r, audit.ActionRead, claims.Username,
		fmt.Sprintf("admin accessed audit log (page=%d limit=%d)", page, limit))

	WriteOK(w, AuditPage{
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: int64(page*limit) < total,
	})
}
