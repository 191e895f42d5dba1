package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PlanName string

const (
	PlanBasic PlanName = "Basic"
	PlanPro   PlanName = "Pro"
	PlanVIP   PlanName = "VIP"
)

// SubscriptionPlan is a catalog row. The app only reads these.
type SubscriptionPlan struct {
	Base
	PlanName             PlanName                      `json:"plan_name" gorm:"type:varchar(20);uniqueIndex;not null"`
	PlanPriceUSD         decimal.Decimal               `json:"plan_price_usd" gorm:"type:decimal(10,2);not null"`
	MonthlyAnalysesLimit int                           `json:"monthly_analyses_limit" gorm:"not null"`
	Description          string                        `json:"description"`
	Features             datatypes.JSONType[[]string] `json:"features"`
	IsActive             bool                          `json:"is_active" gorm:"not null"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }
