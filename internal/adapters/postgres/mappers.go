package postgres

import (
	"errors"
	"strings"

	"github.com/viralforge/account-service/internal/domain"
	"github.com/viralforge/account-service/internal/ports"
	"gorm.io/gorm"
)

func toDomainUser(rec userModel) domain.User {
	return domain.User{
		ID:               rec.UserID,
		Login:            rec.Login,
		Email:            rec.Email,
		PasswordHash:     rec.PasswordHash,
		FirstName:        rec.FirstName,
		LastName:         rec.LastName,
		ImageURL:         rec.ImageURL,
		LangKey:          rec.LangKey,
		Activated:        rec.Activated,
		ActivationKey:    derefString(rec.ActivationKey),
		ResetKey:         derefString(rec.ResetKey),
		ResetDate:        rec.ResetDate,
		CreatedDate:      rec.CreatedDate.UTC(),
		LastModifiedDate: rec.LastModifiedDate.UTC(),
		IPAddress:        derefString(rec.IPAddress),
		Authorities:      splitAuthorities(rec.Authorities),
	}
}

func toUserModel(u domain.User) userModel {
	return userModel{
		UserID:           u.ID,
		Login:            u.Login,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		ImageURL:         u.ImageURL,
		LangKey:          u.LangKey,
		Activated:        u.Activated,
		ActivationKey:    nullableString(u.ActivationKey),
		ResetKey:         nullableString(u.ResetKey),
		ResetDate:        u.ResetDate,
		CreatedDate:      u.CreatedDate,
		LastModifiedDate: u.LastModifiedDate,
		IPAddress:        nullableString(u.IPAddress),
		Authorities:      strings.Join(u.Authorities, ","),
	}
}

func toOutboxModel(event ports.OutboxEvent) accountOutboxModel {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	return accountOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    event.OccurredAt,
	}
}

func splitAuthorities(raw string) []string {
	out := make([]string, 0, 1)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
