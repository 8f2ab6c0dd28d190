package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// AuthorityUser is granted to every self-registered account.
	AuthorityUser = "ROLE_USER"

	DefaultLangKey = "en"
)

// User is the account aggregate owned by the credential store.
// PasswordHash never leaves the service boundary.
type User struct {
	ID               uuid.UUID
	Login            string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	ImageURL         string
	LangKey          string
	Activated        bool
	ActivationKey    string
	ResetKey         string
	ResetDate        *time.Time
	CreatedDate      time.Time
	LastModifiedDate time.Time
	IPAddress        string
	Authorities      []string
}

// Activate moves an unconfirmed account to active and burns its activation key.
func (u *User) Activate(now time.Time) {
	u.Activated = true
	u.ActivationKey = ""
	u.LastModifiedDate = now
}

// OpenReset starts a password-reset flow, replacing any key that was never redeemed.
func (u *User) OpenReset(key string, now time.Time) {
	issued := now
	u.ResetKey = key
	u.ResetDate = &issued
	u.LastModifiedDate = now
}

// ResetKeyValid reports whether the open reset key is still inside its validity window.
// A key issued exactly ttl ago is still accepted.
func (u User) ResetKeyValid(now time.Time, ttl time.Duration) bool {
	if u.ResetKey == "" || u.ResetDate == nil {
		return false
	}
	return !now.After(u.ResetDate.Add(ttl))
}

// CloseReset replaces the password hash and clears the reset flow.
func (u *User) CloseReset(passwordHash string, now time.Time) {
	u.PasswordHash = passwordHash
	u.ResetKey = ""
	u.ResetDate = nil
	u.LastModifiedDate = now
}

func (u User) HasAuthority(authority string) bool {
	for _, a := range u.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}
