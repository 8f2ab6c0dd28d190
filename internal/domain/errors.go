package domain

import "errors"

var (
	// ErrNotFound is returned when the requested account does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicateLogin and ErrDuplicateEmail report a uniqueness violation on the credential store.
	ErrDuplicateLogin = errors.New("login already in use")
	ErrDuplicateEmail = errors.New("email address already in use")
	// ErrRegistrationThrottled is returned by the registration gate once an IP reached its daily quota.
	ErrRegistrationThrottled = errors.New("registration throttled")
	ErrActivationFailed      = errors.New("activation failed")
	ErrWeakPassword          = errors.New("password does not satisfy length policy")
	ErrUnknownEmail          = errors.New("email address not registered")
	// ErrResetFailed covers both a wrong and an expired reset key.
	// Callers must not be able to tell the two apart.
	ErrResetFailed = errors.New("password reset failed")
	// ErrStoreUnavailable wraps any credential store failure that is not a domain outcome.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotActivated       = errors.New("account not activated")
	ErrAccountLocked      = errors.New("account locked")
	ErrUnauthorized       = errors.New("unauthorized")
)
