package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationReminder              NotificationType = "reminder"
	NotificationAchievement           NotificationType = "achievement"
	NotificationSubscriptionExpiry    NotificationType = "subscription_expiry"
	NotificationSubscriptionCancelled NotificationType = "subscription_cancelled"
	NotificationPaymentFailed         NotificationType = "payment_failed"
	NotificationSystem                NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationReminder, NotificationAchievement, NotificationSubscriptionExpiry,
		NotificationSubscriptionCancelled, NotificationPaymentFailed, NotificationSystem:
		return true
	}
	return false
}

type Notification struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	Type        NotificationType  `json:"type" gorm:"type:varchar(40);not null"`
	Title       string            `json:"title" gorm:"not null"`
	Message     string            `json:"message" gorm:"not null"`
	ActionURL   *string           `json:"action_url"`
	ActionLabel *string           `json:"action_label"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	Read        bool              `json:"read" gorm:"not null;index"`
	ReadAt      *time.Time        `json:"read_at"`
	// DedupeKey is set by scheduled producers; a second insert with the same key is dropped.
	DedupeKey *string   `json:"-" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (Notification) TableName() string { return "notifications" }
