package application

import (
	"time"

	"github.com/viralforge/account-service/internal/domain"
)

// Config carries every tunable of the lifecycle engine and the registration gate.
type Config struct {
	PasswordPolicy          domain.PasswordPolicy
	ResetKeyTTL             time.Duration
	RegistrationIPThreshold int
	RegistrationWindow      time.Duration
	DefaultAuthority        string
	TokenTTL                time.Duration
	RememberMeTokenTTL      time.Duration
	FailedLoginThreshold    int
	LockoutDuration         time.Duration
}

// DefaultConfig mirrors the production defaults: 4..100 password length, 24h reset keys,
// three registrations per IP per day.
func DefaultConfig() Config {
	return Config{
		PasswordPolicy:          domain.DefaultPasswordPolicy(),
		ResetKeyTTL:             24 * time.Hour,
		RegistrationIPThreshold: 3,
		RegistrationWindow:      24 * time.Hour,
		DefaultAuthority:        domain.AuthorityUser,
		TokenTTL:                30 * time.Minute,
		RememberMeTokenTTL:      7 * 24 * time.Hour,
		FailedLoginThreshold:    5,
		LockoutDuration:         15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PasswordPolicy.MinLength <= 0 && c.PasswordPolicy.MaxLength <= 0 {
		c.PasswordPolicy = def.PasswordPolicy
	}
	if c.ResetKeyTTL <= 0 {
		c.ResetKeyTTL = def.ResetKeyTTL
	}
	if c.RegistrationIPThreshold <= 0 {
		c.RegistrationIPThreshold = def.RegistrationIPThreshold
	}
	if c.RegistrationWindow <= 0 {
		c.RegistrationWindow = def.RegistrationWindow
	}
	if c.DefaultAuthority == "" {
		c.DefaultAuthority = def.DefaultAuthority
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = def.TokenTTL
	}
	if c.RememberMeTokenTTL <= 0 {
		c.RememberMeTokenTTL = def.RememberMeTokenTTL
	}
	if c.FailedLoginThreshold <= 0 {
		c.FailedLoginThreshold = def.FailedLoginThreshold
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = def.LockoutDuration
	}
	return c
}

// NewAccount is the input of CreateAccount.
type NewAccount struct {
	Login     string
	Password  string
	FirstName string
	LastName  string
	Email     string
	ImageURL  string
	LangKey   string
	IPAddress string
}

type RegisterRequest struct {
	Login     string `json:"login" validate:"required,max=50"`
	Password  string `json:"password"`
	FirstName string `json:"firstName" validate:"max=50"`
	LastName  string `json:"lastName" validate:"max=50"`
	Email     string `json:"email" validate:"required,email,min=5,max=100"`
	ImageURL  string `json:"imageUrl" validate:"max=256"`
	LangKey   string `json:"langKey" validate:"omitempty,min=2,max=5"`
	IPAddress string `json:"-"`
}

// ProfileUpdate holds the fields an account owner may change on itself.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Email     string
	LangKey   string
	ImageURL  string
}

type KeyAndPassword struct {
	Key         string `json:"key"`
	NewPassword string `json:"newPassword"`
}

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	IPAddress  string `json:"-"`
}

type LoginResponse struct {
	IDToken   string `json:"id_token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Account is the outward profile document. It never carries password material.
type Account struct {
	Login       string   `json:"login"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	ImageURL    string   `json:"imageUrl"`
	Activated   bool     `json:"activated"`
	LangKey     string   `json:"langKey"`
	Authorities []string `json:"authorities"`
}

func ToAccount(u domain.User) Account {
	authorities := make([]string, len(u.Authorities))
	copy(authorities, u.Authorities)
	return Account{
		Login:       u.Login,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		ImageURL:    u.ImageURL,
		Activated:   u.Activated,
		LangKey:     u.LangKey,
		Authorities: authorities,
	}
}
