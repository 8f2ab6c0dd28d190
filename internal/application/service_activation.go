package application

import (
	"context"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
)

// ActivateRegistration redeems an activation key. Keys do not expire; a key works exactly once
// because activation clears it, so a second redemption fails the lookup.
func (s *Service) ActivateRegistration(ctx context.Context, key string) (domain.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.User{}, domain.ErrActivationFailed
	}

	user, err := s.users.GetByActivationKey(ctx, key)
	if err != nil {
		return domain.User{}, storeErr(ctx, "activate_registration", notFoundAs(err, domain.ErrActivationFailed))
	}
	if user.Activated {
		return domain.User{}, domain.ErrActivationFailed
	}

	now := s.nowFn()
	user.Activate(now)
	if err := s.users.UpdateWithOutboxTx(ctx, user, accountEvent(EventTypeAccountActivated, user, now)); err != nil {
		return domain.User{}, storeErr(ctx, "activate_registration", err)
	}

	appLogger().InfoContext(ctx, "account activated",
		"operation", "activate_registration",
		"outcome", "success",
		"user_id", user.ID,
	)
	return user, nil
}
