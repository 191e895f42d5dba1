package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base replaces gorm.Model for tables keyed by UUID. Ids are generated in Go so
// callers can reference a row (for example in gateway notes) before it is written.
type Base struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (t *PaymentTransaction) BeforeCreate(tx *gorm.DB) error { newID(&t.ID); return nil }
func (n *Notification) BeforeCreate(tx *gorm.DB) error       { newID(&n.ID); return nil }
func (a *AnalysisRecord) BeforeCreate(tx *gorm.DB) error     { newID(&a.ID); return nil }
func (u *UsageRecord) BeforeCreate(tx *gorm.DB) error        { newID(&u.ID); return nil }
func (w *WebhookEvent) BeforeCreate(tx *gorm.DB) error       { newID(&w.ID); return nil }
