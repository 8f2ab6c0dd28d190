package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
	"github.com/viralforge/account-service/internal/ports"
)

// Authenticate checks a login/password pair and issues a signed token.
// Repeated failures lock the login for LockoutDuration.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	login := strings.ToLower(strings.TrimSpace(req.Username))
	if login == "" || req.Password == "" {
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	lockKey := "login:" + login
	if s.lockouts != nil {
		state, err := s.lockouts.Get(ctx, lockKey)
		if err != nil {
			appLogger().WarnContext(ctx, "lockout state unavailable",
				"operation", "authenticate",
				"outcome", "warning",
				"login", login,
				"error", err,
			)
		} else if state.LockedUntil != nil && state.LockedUntil.After(s.nowFn()) {
			appLogger().WarnContext(ctx, "account lockout active",
				"operation", "authenticate",
				"outcome", "blocked",
				"login", login,
				"locked_until", state.LockedUntil,
			)
			return LoginResponse{}, domain.ErrAccountLocked
		}
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResponse{}, domain.ErrInvalidCredentials
		}
		return LoginResponse{}, storeErr(ctx, "authenticate", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return LoginResponse{}, s.recordLoginFailure(ctx, lockKey, login)
	}
	if !user.Activated {
		return LoginResponse{}, domain.ErrNotActivated
	}
	if s.lockouts != nil {
		_ = s.lockouts.Clear(ctx, lockKey)
	}

	now := s.nowFn()
	ttl := s.cfg.TokenTTL
	if req.RememberMe {
		ttl = s.cfg.RememberMeTokenTTL
	}
	token, err := s.tokenSigner.Sign(ports.AuthClaims{
		UserID:      user.ID,
		Login:       user.Login,
		Authorities: user.Authorities,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return LoginResponse{IDToken: token, ExpiresIn: int64(ttl.Seconds())}, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, lockKey, login string) error {
	if s.lockouts == nil {
		return domain.ErrInvalidCredentials
	}
	now := s.nowFn()
	state, err := s.lockouts.RecordFailure(ctx, lockKey, now, s.cfg.FailedLoginThreshold, s.cfg.LockoutDuration)
	if err != nil {
		appLogger().WarnContext(ctx, "lockout state unavailable",
			"operation", "authenticate",
			"outcome", "warning",
			"login", login,
			"error", err,
		)
		return domain.ErrInvalidCredentials
	}
	if state.LockedUntil != nil && state.LockedUntil.After(now) {
		appLogger().WarnContext(ctx, "account lockout triggered",
			"operation", "authenticate",
			"outcome", "blocked",
			"login", login,
			"locked_until", state.LockedUntil,
		)
		return domain.ErrAccountLocked
	}
	return domain.ErrInvalidCredentials
}

// ValidateToken parses a bearer token issued by Authenticate.
func (s *Service) ValidateToken(_ context.Context, token string) (ports.AuthClaims, error) {
	claims, err := s.tokenSigner.ParseAndValidate(token)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return claims, nil
}

func (s *Service) PublicJWKs() ([]map[string]any, error) {
	return s.tokenSigner.PublicJWKs()
}
