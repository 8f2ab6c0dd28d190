package http

import (
	"net/http"
	"sort"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := h.checks[name](r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		logHTTPOperationError(r.Context(), "readiness_check", http.StatusServiceUnavailable, "NOT_READY", "dependency unavailable", nil)
		writeJSON(w, http.StatusServiceUnavailable, apiError{
			Status:  "error",
			Code:    "NOT_READY",
			Message: "dependency unavailable",
			Fields:  failed,
		})
		return
	}
	writeMessage(w, http.StatusOK, "ready")
}
