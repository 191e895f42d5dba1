package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AnalysisRecord struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	SubscriptionID *uuid.UUID        `json:"subscription_id" gorm:"type:uuid"`
	OverallScore   *int              `json:"overall_score"`
	PhotoURL       string            `json:"photo_url"`
	PhotoKey       string            `json:"-"`
	Result         datatypes.JSONMap `json:"result"`
	CreatedAt      time.Time         `json:"created_at" gorm:"index"`
}

func (AnalysisRecord) TableName() string { return "analysis_history" }

type UsageRecord struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	SubscriptionID   uuid.UUID         `json:"subscription_id" gorm:"type:uuid;not null"`
	AnalysisDate     time.Time         `json:"analysis_date" gorm:"not null"`
	AnalysisType     string            `json:"analysis_type" gorm:"type:varchar(40);not null"`
	AnalysisResultID *uuid.UUID        `json:"analysis_result_id" gorm:"type:uuid"`
	Metadata         datatypes.JSONMap `json:"metadata"`
	CreatedAt        time.Time         `json:"created_at"`
}

func (UsageRecord) TableName() string { return "usage_tracking" }
