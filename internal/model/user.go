package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile mirrors the Supabase auth user. The id is the auth user id.
type Profile struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string    `json:"email" gorm:"index;not null"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// DisplayName falls back to the mailbox part of the email.
func (p *Profile) DisplayName() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	if at := strings.Index(p.Email, "@"); at > 0 {
		return p.Email[:at]
	}
	return "Customer"
}

type DeletionStatus string

const (
	DeletionPending    DeletionStatus = "pending"
	DeletionProcessing DeletionStatus = "processing"
	DeletionCompleted  DeletionStatus = "completed"
	DeletionCancelled  DeletionStatus = "cancelled"
)

type AccountDeletionRequest struct {
	Base
	UserID uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Email  string         `json:"email" gorm:"not null"`
	Reason *string        `json:"reason"`
	Status DeletionStatus `json:"status" gorm:"type:varchar(20);not null"`
}

func (AccountDeletionRequest) TableName() string { return "account_deletion_requests" }
