package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

// usdQuote is one global USD-side reference for the kimchi comparison:
// a USDT spot ticker or a perp mid.
type usdQuote struct {
	venue      string
	price      float64
	kind       model.VenueKind
	funding8h  float64
	hasFunding bool
}

type kimchiPair struct {
	krw        model.Ticker
	usd        usdQuote
	premiumPct float64
}

// detectKimchi compares every Korean KRW quote against every global
// quote for the same base asset: USDT spot prices and, where a perp
// venue lists the contract, the perp mid. The premium is the KRW price
// in USD terms over the global price.
func (e *Engine) detectKimchi(tickers []model.Ticker, perps []model.PerpMarket, fx model.FxRate, now time.Time) []model.Opportunity {
	if fx.KRWPerUSD <= 0 {
		return nil
	}

	krwByBase := make(map[string][]model.Ticker)
	usdByBase := make(map[string][]usdQuote)
	for _, t := range tickers {
		switch {
		case t.Instrument.Quote == "KRW" && krwVenues[t.Venue]:
			krwByBase[t.Instrument.Base] = append(krwByBase[t.Instrument.Base], t)
		case t.Instrument.Quote == "USDT" && !krwVenues[t.Venue]:
			usdByBase[t.Instrument.Base] = append(usdByBase[t.Instrument.Base], usdQuote{
				venue: t.Venue,
				price: t.Last,
				kind:  model.VenueSpot,
			})
		}
	}
	for _, p := range perps {
		if _, ok := krwByBase[p.Base]; !ok {
			continue
		}
		if mid := p.Mid(); mid > 0 {
			usdByBase[p.Base] = append(usdByBase[p.Base], usdQuote{
				venue:      p.Venue,
				price:      mid,
				kind:       model.VenuePerp,
				funding8h:  p.Funding.Rate8h(),
				hasFunding: p.Funding.IntervalHours > 0,
			})
		}
	}

	var pairs []kimchiPair
	var premiumSum float64
	for base, krws := range krwByBase {
		usds := usdByBase[base]
		for _, krw := range krws {
			for _, usd := range usds {
				krwInUSD := krw.Last * fx.USDPerKRW()
				if krwInUSD <= 0 || usd.price <= 0 {
					continue
				}
				premium := (krwInUSD/usd.price - 1) * 100
				pairs = append(pairs, kimchiPair{krw: krw, usd: usd, premiumPct: premium})
				premiumSum += premium
			}
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	avgPremium := premiumSum / float64(len(pairs))

	var out []model.Opportunity
	for _, p := range pairs {
		abs := math.Abs(p.premiumPct)
		if abs < e.cfg.MinKimchiPct || abs > e.cfg.MaxKimchiPct {
			continue
		}
		// Deviation filter: with many pairs, an outlier far from the
		// cross-market average is more likely bad data than edge.
		if e.cfg.KimchiDeviationPct > 0 && math.Abs(p.premiumPct-avgPremium) > e.cfg.KimchiDeviationPct {
			continue
		}

		advice := e.curve.Evaluate(p.premiumPct)
		if e.cfg.MinKimchiAllocationPct > 0 && advice.TargetAllocationPct < e.cfg.MinKimchiAllocationPct {
			continue
		}

		out = append(out, e.kimchiOpportunity(p, fx, avgPremium, advice.TargetAllocationPct, advice.RecommendedNotionalUSD, string(advice.Action), now))
	}
	return out
}

func (e *Engine) kimchiOpportunity(p kimchiPair, fx model.FxRate, avgPremium, allocPct, allocUSD float64, action string, now time.Time) model.Opportunity {
	base := p.krw.Instrument.Base
	notional := e.cfg.BaseNotionalUSD

	usdLeg := model.Leg{
		Exchange:  p.usd.venue,
		VenueType: p.usd.kind,
		Side:      model.SideBuy,
		Symbol:    base + "USDT",
		Price:     p.usd.price,
		Quantity:  notional / p.usd.price,
	}
	krwLeg := model.Leg{
		Exchange:  p.krw.Venue,
		VenueType: model.VenueSpot,
		Side:      model.SideSell,
		Symbol:    p.krw.Instrument.Symbol(),
		Price:     p.krw.Last,
		Quantity:  notional * fx.KRWPerUSD / p.krw.Last,
	}

	// Positive premium: Korea is expensive, so the flow is buy abroad,
	// transfer, sell in Korea. Negative premium reverses it.
	var legs []model.Leg
	var buyVenue, sellVenue string
	if p.premiumPct >= 0 {
		buyVenue, sellVenue = p.usd.venue, p.krw.Venue
		legs = []model.Leg{usdLeg, krwLeg}
	} else {
		buyVenue, sellVenue = p.krw.Venue, p.usd.venue
		krwLeg.Side = model.SideBuy
		usdLeg.Side = model.SideSell
		legs = []model.Leg{krwLeg, usdLeg}
	}

	tradeable, status := e.oracle.Transferability(buyVenue, sellVenue, base)

	metadata := map[string]any{
		"premium_pct":           model.RoundTo(p.premiumPct, 4),
		"avg_premium_pct":       model.RoundTo(avgPremium, 4),
		"deviation_from_avg":    model.RoundTo(p.premiumPct-avgPremium, 4),
		"fx_rate":               fx.KRWPerUSD,
		"fx_source":             fx.Source,
		"fx_stale":              fx.Stale,
		"target_allocation_pct": allocPct,
		"recommended_notional":  model.RoundTo(allocUSD, 2),
		"recommended_action":    action,
	}
	if p.usd.hasFunding {
		metadata["funding_rate_8h_pct"] = model.RoundTo(p.usd.funding8h*100, 6)
		metadata["funding_rate_24h_pct"] = model.RoundTo(p.usd.funding8h*3*100, 6)
	}

	direction := "premium"
	if p.premiumPct < 0 {
		direction = "discount"
	}
	o := model.Opportunity{
		Type:           model.KindKimchiPremium,
		Symbol:         base,
		SpreadBps:      model.RoundTo(p.premiumPct*100, 3),
		ExpectedPnlPct: model.RoundTo(math.Abs(p.premiumPct), 4),
		Notional:       notional,
		Timestamp:      now,
		Description: fmt.Sprintf("%s %.2f%% %s on %s vs %s (%s %s)",
			base, math.Abs(p.premiumPct), direction, p.krw.Venue, p.usd.venue, action, fx.Source),
		Legs:          legs,
		Tradeable:     tradeable,
		DepositStatus: &status,
		Metadata:      metadata,
	}
	o.ID = model.OpportunityID(o.Type, o.Symbol, o.Venues(), o.SpreadBps)
	return o
}
