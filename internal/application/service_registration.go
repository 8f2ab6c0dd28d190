package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/account-service/internal/domain"
)

// CheckRegistrationAllowed is the per-IP registration gate. It counts accounts created from ip
// inside [now-window, now] and denies once the count reached the configured threshold.
// The check is read-then-decide; concurrent registrations from one IP can still slip past it.
func (s *Service) CheckRegistrationAllowed(ctx context.Context, ip string, now time.Time) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil
	}
	count, err := s.users.CountByIPCreatedBetween(ctx, ip, now.Add(-s.cfg.RegistrationWindow), now)
	if err != nil {
		return storeErr(ctx, "registration_gate", err)
	}
	if count >= s.cfg.RegistrationIPThreshold {
		appLogger().WarnContext(ctx, "registration denied by ip gate",
			"operation", "registration_gate",
			"outcome", "blocked",
			"ip_address", ip,
			"count", count,
			"threshold", s.cfg.RegistrationIPThreshold,
		)
		return domain.ErrRegistrationThrottled
	}
	return nil
}

// CreateAccount persists a new unconfirmed account. Uniqueness of login and email is
// expected to be checked by the caller; the store's unique indexes are the final guard.
// It never sends email.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount, now time.Time) (domain.User, error) {
	if err := s.cfg.PasswordPolicy.Validate(in.Password); err != nil {
		return domain.User{}, err
	}
	login, err := domain.NormalizeLogin(in.Login)
	if err != nil {
		return domain.User{}, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	langKey := strings.TrimSpace(in.LangKey)
	if langKey == "" {
		langKey = domain.DefaultLangKey
	}

	user := domain.User{
		ID:               uuid.New(),
		Login:            login,
		Email:            email,
		PasswordHash:     hash,
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		ImageURL:         strings.TrimSpace(in.ImageURL),
		LangKey:          langKey,
		Activated:        false,
		ActivationKey:    s.keyFn(),
		CreatedDate:      now,
		LastModifiedDate: now,
		IPAddress:        strings.TrimSpace(in.IPAddress),
		Authorities:      []string{s.cfg.DefaultAuthority},
	}

	if err := s.users.CreateWithOutboxTx(ctx, user, accountEvent(EventTypeAccountRegistered, user, now)); err != nil {
		return domain.User{}, storeErr(ctx, "create_account", err)
	}

	appLogger().InfoContext(ctx, "account created",
		"operation", "create_account",
		"outcome", "success",
		"user_id", user.ID,
		"login", user.Login,
	)
	return user, nil
}

// Register runs the full self-registration flow: password policy, IP gate, uniqueness checks,
// account creation and the activation email. The email is queued, never awaited.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (domain.User, error) {
	if err := s.cfg.PasswordPolicy.Validate(req.Password); err != nil {
		return domain.User{}, err
	}

	now := s.nowFn()
	if err := s.CheckRegistrationAllowed(ctx, req.IPAddress, now); err != nil {
		return domain.User{}, err
	}

	login, err := domain.NormalizeLogin(req.Login)
	if err != nil {
		return domain.User{}, err
	}
	switch _, err := s.users.GetByLogin(ctx, login); {
	case err == nil:
		return domain.User{}, domain.ErrDuplicateLogin
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, storeErr(ctx, "register", err)
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.User{}, err
	}
	switch _, err := s.users.GetByEmail(ctx, email); {
	case err == nil:
		return domain.User{}, domain.ErrDuplicateEmail
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, storeErr(ctx, "register", err)
	}

	user, err := s.CreateAccount(ctx, NewAccount{
		Login:     login,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		ImageURL:  req.ImageURL,
		LangKey:   req.LangKey,
		IPAddress: req.IPAddress,
	}, now)
	if err != nil {
		return domain.User{}, err
	}

	if s.notifier != nil {
		s.notifier.SendActivationEmail(ctx, user)
	}
	return user, nil
}
