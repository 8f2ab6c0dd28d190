package http

import (
	"errors"
	"net/http"

	"github.com/viralforge/account-service/internal/application"
	"github.com/viralforge/account-service/internal/domain"
)

// profileRequest is the profile document as posted back by clients. Login, activation
// state and authorities are accepted but never applied.
type profileRequest struct {
	Login       string   `json:"login"`
	FirstName   string   `json:"firstName" validate:"max=50"`
	LastName    string   `json:"lastName" validate:"max=50"`
	Email       string   `json:"email" validate:"required,email,min=5,max=100"`
	ImageURL    string   `json:"imageUrl" validate:"max=256"`
	Activated   bool     `json:"activated"`
	LangKey     string   `json:"langKey" validate:"omitempty,min=2,max=5"`
	Authorities []string `json:"authorities"`
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "get_account")
		return
	}
	user, err := h.service.GetAccount(r.Context(), claims.Login)
	if err != nil {
		writeMappedError(r.Context(), w, "get_account", err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToAccount(user))
}

func (h *Handler) saveAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "save_account")
		return
	}
	var req profileRequest
	if err := decodeUserBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "save_account", err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeValidationError(r.Context(), w, "save_account", err)
		return
	}

	_, err := h.service.UpdateUser(r.Context(), claims.Login, application.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		LangKey:   req.LangKey,
		ImageURL:  req.ImageURL,
	})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrDuplicateEmail):
		logHTTPOperationError(r.Context(), "save_account", http.StatusBadRequest, "EMAIL_IN_USE", "Email already in use", err)
		writeText(w, http.StatusBadRequest, "Email already in use")
	default:
		writeMappedError(r.Context(), w, "save_account", err)
	}
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "change_password")
		return
	}
	password, err := readRawBody(r)
	if err != nil {
		writeValidationError(r.Context(), w, "change_password", err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), claims.Login, password); err != nil {
		writeTextError(r.Context(), w, "change_password", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
