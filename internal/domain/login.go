package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const maxLoginLength = 50

var loginPattern = regexp.MustCompile(`^[_'.@A-Za-z0-9-]*$`)

// NormalizeLogin lowercases a login and checks it against the allowed alphabet.
func NormalizeLogin(login string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(login))
	if normalized == "" {
		return "", fmt.Errorf("%w: login is required", ErrInvalidInput)
	}
	if len(normalized) > maxLoginLength {
		return "", fmt.Errorf("%w: login must be <= %d characters", ErrInvalidInput, maxLoginLength)
	}
	if !loginPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: login contains invalid characters", ErrInvalidInput)
	}
	return normalized, nil
}
