package http

import (
	"net/http"

	"github.com/viralforge/account-service/internal/application"
)

func (h *Handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	email, err := readRawBody(r)
	if err != nil {
		writeValidationError(r.Context(), w, "request_password_reset", err)
		return
	}
	if err := h.service.InitPasswordReset(r.Context(), email); err != nil {
		writeTextError(r.Context(), w, "request_password_reset", err)
		return
	}
	writeText(w, http.StatusOK, "email was sent")
}

func (h *Handler) finishPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req application.KeyAndPassword
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "finish_password_reset", err)
		return
	}
	if _, err := h.service.CompletePasswordReset(r.Context(), req.NewPassword, req.Key); err != nil {
		writeTextError(r.Context(), w, "finish_password_reset", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
