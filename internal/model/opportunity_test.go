package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpportunityIDDeterministic(t *testing.T) {
	a := OpportunityID(KindSpotCross, "BTCUSDT", []string{"binance", "okx"}, 25.0)
	b := OpportunityID(KindSpotCross, "BTCUSDT", []string{"okx", "binance"}, 25.0)
	assert.Equal(t, a, b, "venue order must not change the ID")

	c := OpportunityID(KindSpotCross, "BTCUSDT", []string{"binance", "okx"}, 25.1)
	assert.NotEqual(t, a, c, "different spread must change the ID")

	d := OpportunityID(KindPerpPerpSpread, "BTCUSDT", []string{"binance", "okx"}, 25.0)
	assert.NotEqual(t, a, d, "different kind must change the ID")
}

func TestVenuesSortedUnique(t *testing.T) {
	o := Opportunity{Legs: []Leg{
		{Exchange: "okx"},
		{Exchange: "binance"},
		{Exchange: "okx"},
	}}
	assert.Equal(t, []string{"binance", "okx"}, o.Venues())
}

func TestFundingRateNormalization(t *testing.T) {
	hourly := FundingRate{RatePerInterval: 0.0001, IntervalHours: 1}
	assert.InDelta(t, 0.0008, hourly.Rate8h(), 1e-12)

	daily := FundingRate{RatePerInterval: 0.0003, IntervalHours: 24}
	assert.InDelta(t, 0.0001, daily.Rate8h(), 1e-12)

	standard := FundingRate{RatePerInterval: 0.0001, IntervalHours: 8}
	assert.InDelta(t, 0.0001, standard.Rate8h(), 1e-12)

	assert.Zero(t, FundingRate{RatePerInterval: 0.0001}.Rate8h())
}

func TestTickerPrices(t *testing.T) {
	full := Ticker{Last: 100, Bid: 99, Ask: 101}
	assert.Equal(t, 100.0, full.Mid())
	assert.Equal(t, 101.0, full.BuyPrice())
	assert.Equal(t, 99.0, full.SellPrice())

	lastOnly := Ticker{Last: 100}
	assert.Equal(t, 100.0, lastOnly.Mid())
	assert.Equal(t, 100.0, lastOnly.BuyPrice())
	assert.Equal(t, 100.0, lastOnly.SellPrice())
}

func TestFlagBool(t *testing.T) {
	assert.Nil(t, FlagUnknown.Bool())
	if v := FlagEnabled.Bool(); assert.NotNil(t, v) {
		assert.True(t, *v)
	}
	if v := FlagDisabled.Bool(); assert.NotNil(t, v) {
		assert.False(t, *v)
	}
}

func TestFxRateBand(t *testing.T) {
	assert.True(t, FxRate{KRWPerUSD: 1450}.InBand())
	assert.False(t, FxRate{KRWPerUSD: 900}.InBand())
	assert.False(t, FxRate{KRWPerUSD: 2100}.InBand())
	assert.InDelta(t, 1.0/1450, FxRate{KRWPerUSD: 1450}.USDPerKRW(), 1e-12)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "67000.12", FormatPrice(67000.123))
	assert.Equal(t, "1.5", FormatPrice(1.5))
	assert.Equal(t, "0.025", FormatPrice(0.025))
	assert.Equal(t, "0.00001234", FormatPrice(0.00001234))
}
