package model

import (
	"time"

	"github.com/google/uuid"
)

// UserStreak is the authoritative streak row. LastAnalysisDate is a calendar
// date in YYYY-MM-DD form.
type UserStreak struct {
	UserID            uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	CurrentStreak     int       `json:"current_streak" gorm:"not null"`
	LongestStreak     int       `json:"longest_streak" gorm:"not null"`
	LastAnalysisDate  *string   `json:"last_analysis_date" gorm:"type:varchar(10)"`
	StreakFreezeCount int       `json:"streak_freeze_count" gorm:"not null"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (UserStreak) TableName() string { return "user_streaks" }
