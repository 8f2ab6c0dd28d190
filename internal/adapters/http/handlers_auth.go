package http

import (
	"net/http"

	"github.com/viralforge/account-service/internal/application"
)

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "authenticate", err)
		return
	}
	req.IPAddress = readIP(r)

	res, err := h.service.Authenticate(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "authenticate", err)
		return
	}
	w.Header().Set("Authorization", "Bearer "+res.IDToken)
	writeJSON(w, http.StatusOK, res)
}

// isAuthenticated echoes the caller's login, or an empty body for anonymous callers.
func (h *Handler) isAuthenticated(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeText(w, http.StatusOK, "")
		return
	}
	writeText(w, http.StatusOK, claims.Login)
}
