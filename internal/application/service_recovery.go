package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
)

// RequestPasswordReset opens a reset flow for the account owning email and returns it so the
// caller can notify. Any earlier unredeemed key is overwritten.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (domain.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, domain.ErrUnknownEmail
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return domain.User{}, storeErr(ctx, "request_password_reset", notFoundAs(err, domain.ErrUnknownEmail))
	}
	if !user.Activated {
		return domain.User{}, domain.ErrUnknownEmail
	}

	now := s.nowFn()
	user.OpenReset(s.keyFn(), now)
	if err := s.users.UpdateWithOutboxTx(ctx, user, accountEvent(EventTypePasswordResetRequested, user, now)); err != nil {
		return domain.User{}, storeErr(ctx, "request_password_reset", err)
	}
	return user, nil
}

// InitPasswordReset opens a reset flow and queues the reset email.
func (s *Service) InitPasswordReset(ctx context.Context, email string) error {
	user, err := s.RequestPasswordReset(ctx, email)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SendPasswordResetMail(ctx, user)
	}
	return nil
}

// CompletePasswordReset redeems a reset key issued at most ResetKeyTTL ago.
// A wrong key and an expired key both yield ErrResetFailed.
func (s *Service) CompletePasswordReset(ctx context.Context, newPassword, key string) (domain.User, error) {
	if err := s.cfg.PasswordPolicy.Validate(newPassword); err != nil {
		return domain.User{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.User{}, domain.ErrResetFailed
	}

	user, err := s.users.GetByResetKey(ctx, key)
	if err != nil {
		return domain.User{}, storeErr(ctx, "complete_password_reset", notFoundAs(err, domain.ErrResetFailed))
	}

	now := s.nowFn()
	if !user.ResetKeyValid(now, s.cfg.ResetKeyTTL) {
		appLogger().InfoContext(ctx, "reset key rejected",
			"operation", "complete_password_reset",
			"outcome", "expired",
			"user_id", user.ID,
		)
		return domain.User{}, domain.ErrResetFailed
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user.CloseReset(hash, now)
	if err := s.users.UpdateWithOutboxTx(ctx, user, accountEvent(EventTypePasswordResetCompleted, user, now)); err != nil {
		return domain.User{}, storeErr(ctx, "complete_password_reset", err)
	}
	return user, nil
}
