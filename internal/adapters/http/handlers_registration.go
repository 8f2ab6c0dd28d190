package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/viralforge/account-service/internal/adapters/metrics"
	"github.com/viralforge/account-service/internal/application"
	"github.com/viralforge/account-service/internal/domain"
)

func (h *Handler) registerAccount(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeUserBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register_account", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeValidationError(r.Context(), w, "register_account", err)
		return
	}
	req.IPAddress = readIP(r)

	if _, err := h.service.Register(r.Context(), req); err != nil {
		if errors.Is(err, domain.ErrRegistrationThrottled) {
			metrics.RegistrationsThrottled.Inc()
		}
		writeTextError(r.Context(), w, "register_account", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) activateAccount(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if _, err := h.service.ActivateRegistration(r.Context(), key); err != nil {
		writeMappedError(r.Context(), w, "activate_account", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
