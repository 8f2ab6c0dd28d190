package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
)

const (
	serviceName = "account-service"
	// keyBytes gives 20 hex characters for activation and reset keys.
	keyBytes = 10
)

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

// normalizeEmail canonicalizes and validates email format before persistence/comparison.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	// Only a bare mailbox is stored; display names and angle-bracket forms would let
	// two accounts share one address.
	if addr.Name != "" || addr.Address != trimmed {
		return "", fmt.Errorf("%w: email must be a bare address", domain.ErrInvalidInput)
	}
	return addr.Address, nil
}

// randomHex returns a cryptographically random hex token.
func randomHex(bytesLen int) string {
	raw := make([]byte, bytesLen)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

// storeErr keeps domain outcomes intact and folds everything else into ErrStoreUnavailable.
func storeErr(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateLogin),
		errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrStoreUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	appLogger().ErrorContext(ctx, "credential store failure",
		"operation", operation,
		"outcome", "failure",
		"error", err,
	)
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, operation, err)
}

// notFoundAs maps a missing record to the outcome the caller is allowed to see.
func notFoundAs(err, outcome error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return outcome
	}
	return err
}
