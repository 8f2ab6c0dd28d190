package application

import (
	"time"

	"github.com/viralforge/account-service/internal/ports"
)

// Service owns the account lifecycle and the registration gate.
type Service struct {
	cfg         Config
	users       ports.UserRepository
	lockouts    ports.LockoutStore
	notifier    ports.Notifier
	hasher      ports.PasswordHasher
	tokenSigner ports.TokenSigner
	nowFn       func() time.Time
	keyFn       func() string
}

type Dependencies struct {
	Config      Config
	Users       ports.UserRepository
	Lockouts    ports.LockoutStore
	Notifier    ports.Notifier
	Hasher      ports.PasswordHasher
	TokenSigner ports.TokenSigner
	// Clock overrides time.Now; tests use it to move across key expiry boundaries.
	Clock func() time.Time
}

func NewService(deps Dependencies) *Service {
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:         deps.Config.withDefaults(),
		users:       deps.Users,
		lockouts:    deps.Lockouts,
		notifier:    deps.Notifier,
		hasher:      deps.Hasher,
		tokenSigner: deps.TokenSigner,
		nowFn:       nowFn,
		keyFn:       func() string { return randomHex(keyBytes) },
	}
}

// Config returns the effective configuration after defaults were applied.
func (s *Service) Config() Config {
	return s.cfg
}
