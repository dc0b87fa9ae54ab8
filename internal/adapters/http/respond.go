package httpadapter

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

type outcomeResponse struct {
	Notice *domain.Notice  `json:"notice,omitempty"`
	State  *domain.Session `json:"state,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// respond finishes an action. JSON clients get the outcome with a status
// mapped from err; browsers are redirected to target with the notice flashed.
func (rt *Router) respond(w http.ResponseWriter, r *http.Request, out domain.Outcome, err error, target string) {
	sessionID := sessionIDFromContext(r.Context())

	if err != nil && !isExpected(err) {
		slog.Error("studio_action_failed",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionID,
			"path", r.URL.Path,
			"error", err,
		)
		if wantsJSON(r) {
			writeJSON(w, http.StatusInternalServerError, outcomeResponse{Error: "internal error"})
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) {
		resp := outcomeResponse{State: &out.Session}
		if !out.Notice.IsZero() {
			n := out.Notice
			resp.Notice = &n
		}
		if err != nil {
			resp.Error = publicErrorMessage(err)
		}
		writeJSON(w, mapErrorToHTTPStatus(err), resp)
		return
	}

	if flashErr := rt.studio.Flash(r.Context(), sessionID, out.Notice); flashErr != nil {
		slog.Warn("flash_failed", "session_id", sessionID, "error", flashErr)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// publicErrorMessage names the error kind without leaking upstream details.
func publicErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return domain.ErrInvalidInput.Error()
	case domain.IsKind(err, domain.ErrDesignNotFound):
		return domain.ErrDesignNotFound.Error()
	case domain.IsKind(err, domain.ErrBusy):
		return domain.ErrBusy.Error()
	case domain.IsKind(err, domain.ErrCompositionFailed):
		return domain.ErrCompositionFailed.Error()
	case domain.IsKind(err, domain.ErrSubmissionFailed):
		return domain.ErrSubmissionFailed.Error()
	case domain.IsKind(err, domain.ErrTemporary):
		return domain.ErrTemporary.Error()
	}
	return "request failed"
}
