package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
)

const maxBodyBytes = 64 << 10

func decodeBody(r *http.Request, dst any) error {
	return decodeJSON(r, dst, true)
}

// decodeUserBody accepts a full user document and ignores server-owned fields such as
// id, activated and authorities.
func decodeUserBody(r *http.Request, dst any) error {
	return decodeJSON(r, dst, false)
}

func decodeJSON(r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// readRawBody returns the request body as a string. Some endpoints take a bare value
// (a password, an email) instead of JSON.
func readRawBody(r *http.Request) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read request body: %w", err)
	}
	return string(raw), nil
}

func readIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrWeakPassword):
		return http.StatusBadRequest, "WEAK_PASSWORD", "Incorrect password"
	case errors.Is(err, domain.ErrRegistrationThrottled):
		return http.StatusBadRequest, "REGISTRATION_THROTTLED", "You cannot register"
	case errors.Is(err, domain.ErrDuplicateLogin):
		return http.StatusBadRequest, "LOGIN_IN_USE", "login already in use"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusBadRequest, "EMAIL_IN_USE", "email address already in use"
	case errors.Is(err, domain.ErrUnknownEmail):
		return http.StatusBadRequest, "EMAIL_NOT_REGISTERED", "email address not registered"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid login or password"
	case errors.Is(err, domain.ErrNotActivated):
		return http.StatusUnauthorized, "NOT_ACTIVATED", "account is not activated"
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusTooManyRequests, "ACCOUNT_LOCKED", "account temporarily locked"
	case errors.Is(err, domain.ErrActivationFailed):
		return http.StatusInternalServerError, "ACTIVATION_FAILED", "no user was found for this activation key"
	case errors.Is(err, domain.ErrResetFailed):
		return http.StatusInternalServerError, "RESET_FAILED", "no user was found for this reset key"
	case errors.Is(err, domain.ErrNotFound):
		// The caller authenticated, yet its account cannot be resolved.
		return http.StatusInternalServerError, "ACCOUNT_UNRESOLVED", "user could not be found"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

// writeTextError reports 4xx outcomes as plain text and falls back to the JSON
// envelope for everything else.
func writeTextError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	if status == http.StatusBadRequest && !errors.Is(err, domain.ErrInvalidInput) {
		writeText(w, status, msg)
		return
	}
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, code, msg, err)

	var verr *validationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, apiError{
			Status:  "error",
			Code:    code,
			Message: "request validation failed",
			Fields:  verr.fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, code, msg)
}

func writeMissingBearerError(ctx context.Context, w http.ResponseWriter, operation string) {
	code := "UNAUTHORIZED"
	msg := "missing bearer token"
	logHTTPOperationError(ctx, operation, http.StatusUnauthorized, code, msg, nil)
	writeError(w, http.StatusUnauthorized, code, msg)
}
