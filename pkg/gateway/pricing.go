package gateway

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Pricing converts catalog prices (USD) into the settlement currency using a
// fixed rate.
type Pricing struct {
	Currency string
	Rate     decimal.Decimal
	// WholeUnits rounds to whole settlement units before scaling to minor units.
	WholeUnits bool
}

func INRPricing(rate decimal.Decimal) Pricing {
	return Pricing{Currency: "INR", Rate: rate, WholeUnits: true}
}

func USDPricing() Pricing {
	return Pricing{Currency: "USD", Rate: decimal.NewFromInt(1)}
}

// MinorUnits returns the amount to charge for usd, in paise or cents.
func (p Pricing) MinorUnits(usd decimal.Decimal) int64 {
	major := usd.Mul(p.Rate)
	if p.WholeUnits {
		return major.Round(0).Mul(hundred).IntPart()
	}
	return major.Mul(hundred).Round(0).IntPart()
}

// Major converts minor units back to major units of the settlement currency.
func (p Pricing) Major(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// ToUSD converts a major amount in currency to USD. Amounts already in USD pass through.
func (p Pricing) ToUSD(major decimal.Decimal, currency string) decimal.Decimal {
	if currency == "" || strings.EqualFold(currency, "USD") || p.Rate.IsZero() {
		return major.Round(2)
	}
	return major.Div(p.Rate).Round(2)
}
