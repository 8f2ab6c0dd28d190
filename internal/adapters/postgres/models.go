package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Login            string     `gorm:"column:login"`
	Email            string     `gorm:"column:email"`
	PasswordHash     string     `gorm:"column:password_hash"`
	FirstName        string     `gorm:"column:first_name"`
	LastName         string     `gorm:"column:last_name"`
	ImageURL         string     `gorm:"column:image_url"`
	LangKey          string     `gorm:"column:lang_key"`
	Activated        bool       `gorm:"column:activated"`
	ActivationKey    *string    `gorm:"column:activation_key"`
	ResetKey         *string    `gorm:"column:reset_key"`
	ResetDate        *time.Time `gorm:"column:reset_date"`
	CreatedDate      time.Time  `gorm:"column:created_date"`
	LastModifiedDate time.Time  `gorm:"column:last_modified_date"`
	IPAddress        *string    `gorm:"column:ip_address"`
	Authorities      string     `gorm:"column:authorities"`
}

func (userModel) TableName() string { return "users" }

type accountOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (accountOutboxModel) TableName() string { return "account_outbox" }
