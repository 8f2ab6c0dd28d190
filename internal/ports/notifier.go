package ports

import (
	"context"

	"github.com/viralforge/account-service/internal/domain"
)

// Notifier hands account emails to a background sender.
// Implementations must return without waiting for delivery; a failed send is
// logged by the implementation and never reported back to the caller.
type Notifier interface {
	SendActivationEmail(ctx context.Context, user domain.User)
	SendPasswordResetMail(ctx context.Context, user domain.User)
}
