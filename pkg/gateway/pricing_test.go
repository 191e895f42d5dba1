package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestINRPricingRoundsToWholeRupees(t *testing.T) {
	p := INRPricing(decimal.NewFromInt(83))

	assert.Equal(t, int64(33200), p.MinorUnits(decimal.NewFromInt(4)))
	assert.Equal(t, int64(74700), p.MinorUnits(decimal.NewFromInt(9)))
	assert.Equal(t, int64(157700), p.MinorUnits(decimal.NewFromInt(19)))
	// 4.99 * 83 = 414.17, charged as 414 rupees.
	assert.Equal(t, int64(41400), p.MinorUnits(decimal.RequireFromString("4.99")))
}

func TestUSDPricingKeepsCents(t *testing.T) {
	p := USDPricing()

	assert.Equal(t, int64(499), p.MinorUnits(decimal.RequireFromString("4.99")))
	assert.Equal(t, "USD", p.Currency)
}

func TestToUSD(t *testing.T) {
	p := INRPricing(decimal.NewFromInt(83))

	assert.True(t, decimal.NewFromInt(4).Equal(p.ToUSD(decimal.NewFromInt(332), "INR")))
	assert.True(t, decimal.RequireFromString("9.5").Equal(p.ToUSD(decimal.RequireFromString("9.5"), "usd")))
	assert.True(t, decimal.NewFromInt(332).Equal(p.Major(33200)))
}
