package domain

import (
	"fmt"
	"unicode/utf8"
)

const (
	DefaultPasswordMinLength = 4
	DefaultPasswordMaxLength = 100
)

// PasswordPolicy bounds the length of a clear-text password.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

// DefaultPasswordPolicy returns the 4..100 character policy.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultPasswordMinLength, MaxLength: DefaultPasswordMaxLength}
}

// Validate checks the password length in characters, not bytes.
func (p PasswordPolicy) Validate(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrWeakPassword)
	}
	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrWeakPassword, p.MinLength)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return fmt.Errorf("%w: password must be <= %d characters", ErrWeakPassword, p.MaxLength)
	}
	return nil
}
