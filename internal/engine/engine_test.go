package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcommand/arbcommand/internal/alloc"
	"github.com/arbcommand/arbcommand/internal/config"
	"github.com/arbcommand/arbcommand/internal/market"
	"github.com/arbcommand/arbcommand/internal/model"
	"github.com/arbcommand/arbcommand/internal/wallet"
)

func testEngine(mutate func(*config.Config)) (*Engine, *wallet.Oracle) {
	cfg := config.Default()
	cfg.AllocationCurve = []config.CurvePoint{
		{PremiumPct: 0, AllocationPct: 0, Action: "flat"},
		{PremiumPct: 2, AllocationPct: 25, Action: "sell_krw"},
		{PremiumPct: 5, AllocationPct: 75, Action: "sell_krw"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	oracle := wallet.NewOracle()
	curve := alloc.NewCurve(cfg.AllocationCurve, cfg.TetherTotalEquityUSD)
	return New(cfg, curve, oracle), oracle
}

func spotTicker(venue, base string, last, bid, ask float64, at time.Time) model.Ticker {
	return model.Ticker{
		Venue:      venue,
		Instrument: model.Instrument{Base: base, Quote: "USDT", Kind: model.VenueSpot},
		Last:       last, Bid: bid, Ask: ask,
		Timestamp: at,
	}
}

func krwTicker(venue, base string, last float64, at time.Time) model.Ticker {
	return model.Ticker{
		Venue:      venue,
		Instrument: model.Instrument{Base: base, Quote: "KRW", Kind: model.VenueSpot},
		Last:       last,
		Timestamp:  at,
	}
}

func viewOf(now time.Time, tickers []model.Ticker, perps []model.PerpMarket) *market.View {
	return &market.View{Tickers: tickers, Perps: perps, TakenAt: now}
}

func usdFx() model.FxRate {
	return model.FxRate{KRWPerUSD: 1450, Source: "dunamu", Timestamp: time.Now().UTC()}
}

// signedNotionalUSD sums buy legs positive and sell legs negative, with
// KRW-quoted legs converted through the FX rate.
func signedNotionalUSD(o model.Opportunity, fx model.FxRate) float64 {
	var sum float64
	for _, leg := range o.Legs {
		notional := leg.Price * leg.Quantity
		if len(leg.Symbol) > 3 && leg.Symbol[len(leg.Symbol)-3:] == "KRW" {
			notional *= fx.USDPerKRW()
		}
		if leg.Side == model.SideBuy {
			sum += notional
		} else {
			sum -= notional
		}
	}
	return sum
}

func TestSpotCrossDetection(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	view := viewOf(now, []model.Ticker{
		spotTicker("binance", "BTC", 10000, 9999, 10000, now),
		spotTicker("okx", "BTC", 10025, 10025, 10026, now),
	}, nil)

	opps := e.Detect(view, usdFx(), now)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Equal(t, model.KindSpotCross, o.Type)
	assert.Equal(t, "BTCUSDT", o.Symbol)
	assert.InDelta(t, 25, o.SpreadBps, 1e-6)
	// 25 bps gross minus 10 bps taker on each side.
	assert.InDelta(t, 0.05, o.ExpectedPnlPct, 1e-6)

	require.Len(t, o.Legs, 2)
	assert.Equal(t, "binance", o.Legs[0].Exchange)
	assert.Equal(t, model.SideBuy, o.Legs[0].Side)
	assert.Equal(t, "okx", o.Legs[1].Exchange)
	assert.Equal(t, model.SideSell, o.Legs[1].Side)
	assert.InDelta(t, 0, signedNotionalUSD(o, usdFx()), 1e-6)
}

func TestSpotCrossBelowThresholdIgnored(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	view := viewOf(now, []model.Ticker{
		spotTicker("binance", "BTC", 10000, 9999, 10000, now),
		spotTicker("okx", "BTC", 10003, 10003, 10004, now),
	}, nil)

	opps := e.Detect(view, usdFx(), now)
	assert.Empty(t, opps, "3 bps is under the minimum spread")
}

func TestSpotCrossNegativeNetSuppressed(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	// 6 bps clears the minimum spread but not the 20 bps of round-trip
	// taker fees.
	view := viewOf(now, []model.Ticker{
		spotTicker("binance", "BTC", 10000, 9999, 10000, now),
		spotTicker("okx", "BTC", 10006, 10006, 10007, now),
	}, nil)

	opps := e.Detect(view, usdFx(), now)
	assert.Empty(t, opps)
}

func TestDetectIsDeterministic(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	view := viewOf(now, []model.Ticker{
		spotTicker("binance", "BTC", 10000, 9999, 10000, now),
		spotTicker("okx", "BTC", 10025, 10025, 10026, now),
		krwTicker("upbit", "BTC", 14_750_000, now),
	}, nil)

	first := e.Detect(view, usdFx(), now)
	second := e.Detect(view, usdFx(), now)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Type, second[i].Type)
	}
}

func TestKimchiPremiumDetection(t *testing.T) {
	e, oracle := testEngine(nil)
	oracle.Update([]model.WalletState{
		{Venue: "binance", Asset: "BTC", Deposit: model.FlagEnabled, Withdraw: model.FlagEnabled},
		{Venue: "upbit", Asset: "BTC", Deposit: model.FlagEnabled, Withdraw: model.FlagEnabled},
	})

	now := time.Now().UTC()
	fx := usdFx()
	// 100M KRW at 1450 is 68965.52 USD against 67800: a 1.719% premium.
	view := viewOf(now, []model.Ticker{
		krwTicker("upbit", "BTC", 100_000_000, now),
		spotTicker("binance", "BTC", 67_800, 0, 0, now),
	}, nil)

	opps := e.Detect(view, fx, now)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Equal(t, model.KindKimchiPremium, o.Type)
	assert.Equal(t, "BTC", o.Symbol)

	premium, ok := o.Metadata["premium_pct"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 1.7191, premium, 1e-3)

	// Curve: 0% at 0, 25% at 2, linear between. Equity 100k.
	allocPct, ok := o.Metadata["target_allocation_pct"].(float64)
	require.True(t, ok)
	assert.InDelta(t, premium/2*25, allocPct, 1e-2)
	assert.Equal(t, "sell_krw", o.Metadata["recommended_action"])
	assert.Equal(t, 1450.0, o.Metadata["fx_rate"])
	notional, ok := o.Metadata["recommended_notional"].(float64)
	require.True(t, ok)
	assert.InDelta(t, allocPct/100*100_000, notional, 20)

	// Positive premium: buy abroad, sell in Korea.
	require.Len(t, o.Legs, 2)
	assert.Equal(t, "binance", o.Legs[0].Exchange)
	assert.Equal(t, model.SideBuy, o.Legs[0].Side)
	assert.Equal(t, "upbit", o.Legs[1].Exchange)
	assert.Equal(t, "BTCKRW", o.Legs[1].Symbol)

	require.NotNil(t, o.Tradeable)
	assert.True(t, *o.Tradeable)
	assert.InDelta(t, 0, signedNotionalUSD(o, fx), 1e-6)
}

func TestKimchiDiscountReversesLegs(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	// 95M KRW at 1450 is 65517 USD against 67000: a -2.2% discount, but
	// the sell_krw curve allocates nothing below zero premium.
	view := viewOf(now, []model.Ticker{
		krwTicker("upbit", "BTC", 95_000_000, now),
		spotTicker("binance", "BTC", 67_000, 0, 0, now),
	}, nil)

	opps := e.Detect(view, usdFx(), now)
	assert.Empty(t, opps, "discount under a sell-only curve falls below the allocation floor")
}

func TestKimchiDiscountWithBuyCurve(t *testing.T) {
	e, _ := testEngine(func(cfg *config.Config) {
		cfg.AllocationCurve = []config.CurvePoint{
			{PremiumPct: -5, AllocationPct: 100, Action: "buy_krw"},
			{PremiumPct: 0, AllocationPct: 0, Action: "flat"},
		}
	})

	now := time.Now().UTC()
	view := viewOf(now, []model.Ticker{
		krwTicker("upbit", "BTC", 95_000_000, now),
		spotTicker("binance", "BTC", 67_000, 0, 0, now),
	}, nil)

	opps := e.Detect(view, usdFx(), now)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Negative(t, o.SpreadBps)
	assert.Equal(t, "upbit", o.Legs[0].Exchange, "discount buys in Korea")
	assert.Equal(t, model.SideBuy, o.Legs[0].Side)
	assert.Equal(t, "binance", o.Legs[1].Exchange)
	assert.Nil(t, o.Tradeable, "no wallet data means tradeability is unknown")
}

func TestKimchiUnknownWalletPropagates(t *testing.T) {
	e, oracle := testEngine(nil)
	oracle.Update([]model.WalletState{
		{Venue: "upbit", Asset: "BTC", Deposit: model.FlagDisabled, Withdraw: model.FlagEnabled},
	})

	now := time.Now().UTC()
	view := viewOf(now, []model.Ticker{
		krwTicker("upbit", "BTC", 100_000_000, now),
		spotTicker("binance", "BTC", 67_800, 0, 0, now),
	}, nil)

	opps := e.Detect(view, usdFx(), now)
	require.Len(t, opps, 1)
	o := opps[0]
	require.NotNil(t, o.Tradeable)
	assert.False(t, *o.Tradeable, "korean deposit disabled blocks the positive-premium flow")
	require.NotNil(t, o.DepositStatus)
	assert.Nil(t, o.DepositStatus.Buy, "foreign withdraw unknown")
	require.NotNil(t, o.DepositStatus.Sell)
	assert.False(t, *o.DepositStatus.Sell)
}

func TestKimchiAgainstPerpQuote(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	view := viewOf(now,
		[]model.Ticker{krwTicker("upbit", "BTC", 100_000_000, now)},
		[]model.PerpMarket{perpMarket("binance_futures", 67099, 67101, 67100, 0.0001, 5_000_000, now)},
	)

	opps := e.Detect(view, usdFx(), now)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Equal(t, model.KindKimchiPremium, o.Type)
	assert.Equal(t, model.VenuePerp, o.Legs[0].VenueType, "the USD side is the perp mid")
	funding, ok := o.Metadata["funding_rate_8h_pct"].(float64)
	require.True(t, ok, "perp-quoted pairs carry funding metadata")
	assert.InDelta(t, 0.01, funding, 1e-9)
	daily, ok := o.Metadata["funding_rate_24h_pct"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 0.03, daily, 1e-9)
}

func TestKimchiDeviationFilter(t *testing.T) {
	e, _ := testEngine(func(cfg *config.Config) {
		cfg.KimchiDeviationPct = 0.1
	})
	now := time.Now().UTC()
	// The two USD quotes disagree wildly, so each pair's premium sits
	// far from the cross-market average and both are rejected.
	view := viewOf(now, []model.Ticker{
		krwTicker("upbit", "BTC", 100_000_000, now),
		spotTicker("binance", "BTC", 67_800, 0, 0, now),
		spotTicker("okx", "BTC", 65_000, 0, 0, now),
	}, nil)

	for _, o := range e.Detect(view, usdFx(), now) {
		assert.NotEqual(t, model.KindKimchiPremium, o.Type)
	}
}

func perpMarket(venue string, bid, ask, mark, funding8h, oiUSD float64, at time.Time) model.PerpMarket {
	return model.PerpMarket{
		Venue: venue, Base: "BTC", Quote: "USDT",
		Bid: bid, Ask: ask, Mark: mark,
		Funding:         model.FundingRate{RatePerInterval: funding8h, IntervalHours: 8},
		OpenInterestUSD: oiUSD,
		Timestamp:       at,
	}
}

func TestFundingArbDetection(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	view := viewOf(now, nil, []model.PerpMarket{
		perpMarket("binance_futures", 66999, 67001, 67000, 0.0001, 5_000_000, now),
		perpMarket("bybit", 67099, 67101, 67100, 0.0003, 3_000_000, now),
	})

	opps := e.Detect(view, usdFx(), now)

	var funding *model.Opportunity
	for i := range opps {
		if opps[i].Type == model.KindFundingArb {
			funding = &opps[i]
		}
	}
	require.NotNil(t, funding, "expected a funding opportunity")

	assert.Equal(t, "binance_futures", funding.Metadata["long_exchange"], "long the cheap funding side")
	assert.Equal(t, "bybit", funding.Metadata["short_exchange"])
	diff, ok := funding.Metadata["funding_diff_8h_pct"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 0.02, diff, 1e-9)
	assert.Positive(t, funding.ExpectedPnlPct)
	assert.InDelta(t, 0, signedNotionalUSD(*funding, usdFx()), 1e-6)
}

func TestFundingArbGates(t *testing.T) {
	now := time.Now().UTC()

	t.Run("wide books", func(t *testing.T) {
		e, _ := testEngine(nil)
		view := viewOf(now, nil, []model.PerpMarket{
			perpMarket("binance_futures", 66900, 67100, 67000, 0.0001, 5_000_000, now),
			perpMarket("bybit", 67000, 67200, 67100, 0.0003, 3_000_000, now),
		})
		for _, o := range e.Detect(view, usdFx(), now) {
			assert.NotEqual(t, model.KindFundingArb, o.Type,
				"combined top-of-book spread above the cap must suppress funding arb")
		}
	})

	t.Run("thin open interest", func(t *testing.T) {
		e, _ := testEngine(nil)
		view := viewOf(now, nil, []model.PerpMarket{
			perpMarket("binance_futures", 66999, 67001, 67000, 0.0001, 50_000, now),
			perpMarket("bybit", 67099, 67101, 67100, 0.0003, 3_000_000, now),
		})
		for _, o := range e.Detect(view, usdFx(), now) {
			assert.NotEqual(t, model.KindFundingArb, o.Type)
		}
	})

	t.Run("tiny divergence", func(t *testing.T) {
		e, _ := testEngine(nil)
		view := viewOf(now, nil, []model.PerpMarket{
			perpMarket("binance_futures", 66999, 67001, 67000, 0.00010, 5_000_000, now),
			perpMarket("bybit", 67001, 67003, 67002, 0.00011, 3_000_000, now),
		})
		for _, o := range e.Detect(view, usdFx(), now) {
			assert.NotEqual(t, model.KindFundingArb, o.Type,
				"0.001%% difference is under the funding floor")
		}
	})
}

func TestBasisDetection(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	view := viewOf(now,
		[]model.Ticker{spotTicker("binance", "BTC", 67000, 66999, 67001, now)},
		[]model.PerpMarket{perpMarket("bybit", 67099, 67101, 67100, 0.0001, 5_000_000, now)},
	)

	opps := e.Detect(view, usdFx(), now)

	var basis *model.Opportunity
	for i := range opps {
		if opps[i].Type == model.KindSpotVsPerp {
			basis = &opps[i]
		}
	}
	require.NotNil(t, basis)

	assert.InDelta(t, 14.925, basis.SpreadBps, 1e-2)
	// Short perp leg collects the 0.01%/8h funding: a -1 bps cost.
	cost, ok := basis.Metadata["expected_funding_cost_bps"].(float64)
	require.True(t, ok)
	assert.InDelta(t, -1, cost, 1e-9)
	require.Len(t, basis.Legs, 2)
	assert.Equal(t, model.VenueSpot, basis.Legs[0].VenueType)
	assert.Equal(t, model.SideBuy, basis.Legs[0].Side)
	assert.Equal(t, model.VenuePerp, basis.Legs[1].VenueType)
	assert.Equal(t, model.SideSell, basis.Legs[1].Side)
	assert.InDelta(t, 0, signedNotionalUSD(*basis, usdFx()), 1e-6)
}

func TestPerpSpreadDetection(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	view := viewOf(now, nil, []model.PerpMarket{
		perpMarket("binance_futures", 66999, 67001, 67000, 0.0001, 5_000_000, now),
		perpMarket("gate", 67149, 67151, 67150, 0.0001, 3_000_000, now),
	})

	opps := e.Detect(view, usdFx(), now)

	var spread *model.Opportunity
	for i := range opps {
		if opps[i].Type == model.KindPerpPerpSpread {
			spread = &opps[i]
		}
	}
	require.NotNil(t, spread)
	assert.Equal(t, "binance_futures", spread.Legs[0].Exchange, "long the cheap venue")
	assert.Equal(t, "gate", spread.Legs[1].Exchange)
	assert.InDelta(t, 22.39, spread.SpreadBps, 1e-1)
}

func TestPerpSpreadNegativeNetSuppressed(t *testing.T) {
	e, _ := testEngine(nil)
	now := time.Now().UTC()
	// Mids 6 bps apart: above the minimum spread, under the fee load.
	view := viewOf(now, nil, []model.PerpMarket{
		perpMarket("binance_futures", 66999, 67001, 67000, 0.0001, 5_000_000, now),
		perpMarket("gate", 67039, 67041, 67040, 0.0001, 3_000_000, now),
	})

	for _, o := range e.Detect(view, usdFx(), now) {
		assert.NotEqual(t, model.KindPerpPerpSpread, o.Type)
	}
}

func TestRankDedupesAndTruncates(t *testing.T) {
	e, _ := testEngine(func(cfg *config.Config) {
		cfg.MaxOpportunities = 2
	})

	mk := func(kind model.Kind, symbol string, spread float64, venues ...string) model.Opportunity {
		legs := make([]model.Leg, len(venues))
		for i, v := range venues {
			legs[i] = model.Leg{Exchange: v}
		}
		return model.Opportunity{Type: kind, Symbol: symbol, SpreadBps: spread, Legs: legs}
	}

	ranked := e.rank([]model.Opportunity{
		mk(model.KindSpotCross, "BTCUSDT", 10, "binance", "okx"),
		mk(model.KindSpotCross, "BTCUSDT", 30, "okx", "binance"),
		mk(model.KindKimchiPremium, "BTC", -40, "upbit", "binance"),
		mk(model.KindSpotCross, "ETHUSDT", 20, "binance", "okx"),
	})

	require.Len(t, ranked, 2, "duplicate dropped, then truncated to the cap")
	assert.InDelta(t, 40, math.Abs(ranked[0].SpreadBps), 1e-9, "ranked by absolute spread")
	assert.InDelta(t, 30, ranked[1].SpreadBps, 1e-9, "widest duplicate survives")
}
