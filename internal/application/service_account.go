package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
)

// GetAccount loads the account of an authenticated login.
func (s *Service) GetAccount(ctx context.Context, login string) (domain.User, error) {
	user, err := s.users.GetByLogin(ctx, strings.ToLower(strings.TrimSpace(login)))
	if err != nil {
		return domain.User{}, storeErr(ctx, "get_account", err)
	}
	return user, nil
}

// ChangePassword replaces the password of an authenticated login. Authentication is the only gate.
func (s *Service) ChangePassword(ctx context.Context, login, newPassword string) error {
	if err := s.cfg.PasswordPolicy.Validate(newPassword); err != nil {
		return err
	}
	user, err := s.GetAccount(ctx, login)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.nowFn()
	user.PasswordHash = hash
	user.LastModifiedDate = now
	if err := s.users.UpdateWithOutboxTx(ctx, user, accountEvent(EventTypePasswordChanged, user, now)); err != nil {
		return storeErr(ctx, "change_password", err)
	}
	return nil
}

// UpdateUser changes profile fields of an authenticated login. Login, activation state and
// password are left untouched. The new email must not belong to another account.
func (s *Service) UpdateUser(ctx context.Context, login string, in ProfileUpdate) (domain.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.GetAccount(ctx, login)
	if err != nil {
		return domain.User{}, err
	}

	owner, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != user.ID:
		return domain.User{}, domain.ErrDuplicateEmail
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, storeErr(ctx, "update_user", err)
	}

	now := s.nowFn()
	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	user.Email = email
	if langKey := strings.TrimSpace(in.LangKey); langKey != "" {
		user.LangKey = langKey
	}
	user.ImageURL = strings.TrimSpace(in.ImageURL)
	user.LastModifiedDate = now

	if err := s.users.UpdateWithOutboxTx(ctx, user, accountEvent(EventTypeAccountUpdated, user, now)); err != nil {
		return domain.User{}, storeErr(ctx, "update_user", err)
	}
	return user, nil
}
