package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/message"
	"github.com/podium-chat/podium/pkg/semaphore"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteKind(w, http.StatusBadRequest, KindInvalidInput, "invalid request body")
		return false
	}
	return true
}

// parsePagination reads page and limit query parameters, applying the
// defaults for absent values. Returns false after writing an error
// response when a parameter is malformed or out of range.
func parsePagination(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	page, ok = parseBoundedParam(w, r, "page", message.DefaultPage, 1, message.MaxPage)
	if !ok {
		return 0, 0, false
	}
	limit, ok = parseBoundedParam(w, r, "limit", message.DefaultLimit, 1, message.MaxLimit)
	if !ok {
		return 0, 0, false
	}
	return page, limit, true
}

func parseBoundedParam(w http.ResponseWriter, r *http.Request, name string, def, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		WriteKind(w, http.StatusBadRequest, KindInvalidInput,
			name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
		return 0, false
	}
	return v, true
}

// Recorder appends audit entries on behalf of the handlers, stamping
// each with the lock value observed after the recorded effect.
type Recorder struct {
	Log  *audit.Log
	Lock *semaphore.Semaphore
}

// Record appends one entry. Failures are logged, never surfaced: the
// audited operation has already committed.
func (rec *Recorder) Record(r *http.Request, action, username, content string) {
	_, err := rec.Log.Append(r.Context(), audit.Entry{
		Action:    action,
		Username:  username,
		Content:   content,
		LockValue: rec.Lock.Status().Value(),
	})
	if err != nil {
		logger.ErrorCtx(r.Context(), "audit append failed",
			logger.KeyAction, action,
			logger.KeyError, err.Error())
	}
}
