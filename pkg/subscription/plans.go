package subscription

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"muscleai_backend/internal/model"
)

type PlanSpec struct {
	Name         model.PlanName
	PriceUSD     decimal.Decimal
	MonthlyLimit int
	Description  string
	Features     []string
}

// Catalog is ordered by price.
var Catalog = []PlanSpec{
	{
		Name:         model.PlanBasic,
		PriceUSD:     decimal.NewFromInt(4),
		MonthlyLimit: 5,
		Description:  "Get started with monthly physique check-ins",
		Features: []string{
			"5 AI analyses per month",
			"Muscle group scores",
			"Daily streak tracking",
		},
	},
	{
		Name:         model.PlanPro,
		PriceUSD:     decimal.NewFromInt(9),
		MonthlyLimit: 20,
		Description:  "For consistent weekly progress tracking",
		Features: []string{
			"20 AI analyses per month",
			"Muscle group scores",
			"Daily streak tracking",
			"Progress history and daily stats",
		},
	},
	{
		Name:         model.PlanVIP,
		PriceUSD:     decimal.NewFromInt(19),
		MonthlyLimit: 60,
		Description:  "Daily analyses for serious athletes",
		Features: []string{
			"60 AI analyses per month",
			"Muscle group scores",
			"Daily streak tracking",
			"Progress history and daily stats",
			"Priority support",
		},
	},
}

// DefaultPlans returns fresh catalog rows ready to be upserted.
func DefaultPlans() []*model.SubscriptionPlan {
	out := make([]*model.SubscriptionPlan, 0, len(Catalog))
	for _, p := range Catalog {
		features := make([]string, len(p.Features))
		copy(features, p.Features)
		out = append(out, &model.SubscriptionPlan{
			PlanName:             p.Name,
			PlanPriceUSD:         p.PriceUSD,
			MonthlyAnalysesLimit: p.MonthlyLimit,
			Description:          p.Description,
			Features:             datatypes.NewJSONType(features),
			IsActive:             true,
		})
	}
	return out
}
