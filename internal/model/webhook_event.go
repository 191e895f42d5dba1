package model

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent records delivered gateway event ids so exact re-deliveries are dropped early.
type WebhookEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Provider   string    `gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_delivery,priority:1"`
	EventID    string    `gorm:"not null;uniqueIndex:ux_webhook_events_delivery,priority:2"`
	EventType  string    `gorm:"not null"`
	ReceivedAt time.Time `gorm:"not null"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&SubscriptionPlan{},
		&UserSubscription{},
		&PaymentTransaction{},
		&Notification{},
		&UserStreak{},
		&AnalysisRecord{},
		&UsageRecord{},
		&AccountDeletionRequest{},
		&WebhookEvent{},
	}
}
