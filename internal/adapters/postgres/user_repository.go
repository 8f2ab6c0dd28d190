package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/account-service/internal/domain"
	"github.com/viralforge/account-service/internal/ports"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (domain.User, error) {
	return r.takeWhere(ctx, "login = ?", login)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.takeWhere(ctx, "email = ?", email)
}

func (r *userRepository) GetByActivationKey(ctx context.Context, key string) (domain.User, error) {
	return r.takeWhere(ctx, "activation_key = ?", key)
}

func (r *userRepository) GetByResetKey(ctx context.Context, key string) (domain.User, error) {
	return r.takeWhere(ctx, "reset_key = ?", key)
}

func (r *userRepository) CountByIPCreatedBetween(ctx context.Context, ip string, from, to time.Time) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("ip_address = ? AND created_date BETWEEN ? AND ?", ip, from, to).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *userRepository) CreateWithOutboxTx(ctx context.Context, user domain.User, event ports.OutboxEvent) error {
	rec := toUserModel(user)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		outbox := toOutboxModel(event)
		return tx.Create(&outbox).Error
	})
	if isUniqueViolation(err) {
		return r.duplicateError(ctx, rec)
	}
	return err
}

func (r *userRepository) UpdateWithOutboxTx(ctx context.Context, user domain.User, event ports.OutboxEvent) error {
	rec := toUserModel(user)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userModel{}).
			Where("user_id = ?", rec.UserID).
			Updates(map[string]any{
				"email":              rec.Email,
				"password_hash":      rec.PasswordHash,
				"first_name":         rec.FirstName,
				"last_name":          rec.LastName,
				"image_url":          rec.ImageURL,
				"lang_key":           rec.LangKey,
				"activated":          rec.Activated,
				"activation_key":     rec.ActivationKey,
				"reset_key":          rec.ResetKey,
				"reset_date":         rec.ResetDate,
				"last_modified_date": rec.LastModifiedDate,
				"authorities":        rec.Authorities,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		outbox := toOutboxModel(event)
		return tx.Create(&outbox).Error
	})
	if isUniqueViolation(err) {
		return r.duplicateError(ctx, rec)
	}
	return err
}

// duplicateError resolves which unique index rejected rec. The translated driver error
// no longer names the constraint, so the login is checked first.
func (r *userRepository) duplicateError(ctx context.Context, rec userModel) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("login = ? AND user_id <> ?", rec.Login, rec.UserID).
		Count(&count).Error
	if err == nil && count > 0 {
		return domain.ErrDuplicateLogin
	}
	return domain.ErrDuplicateEmail
}

func (r *userRepository) takeWhere(ctx context.Context, query string, arg any) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}
