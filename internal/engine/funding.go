package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

// detectFunding scans every pair of perp venues per base asset for a
// funding rate divergence. The position is delta-neutral: long the
// cheap-funding venue, short the expensive one, collect the difference
// every 8 hours.
func (e *Engine) detectFunding(perps []model.PerpMarket, now time.Time) []model.Opportunity {
	byBase := make(map[string][]model.PerpMarket)
	for _, p := range perps {
		if p.Funding.IntervalHours <= 0 {
			continue
		}
		byBase[p.Base] = append(byBase[p.Base], p)
	}

	var out []model.Opportunity
	for base, markets := range byBase {
		for i := 0; i < len(markets); i++ {
			for j := i + 1; j < len(markets); j++ {
				a, b := markets[i], markets[j]
				if a.OpenInterestUSD < e.cfg.MinOIUSD || b.OpenInterestUSD < e.cfg.MinOIUSD {
					continue
				}

				// Long where funding is lower, short where higher.
				long, short := a, b
				if a.Funding.Rate8h() > b.Funding.Rate8h() {
					long, short = b, a
				}
				diffPct := (short.Funding.Rate8h() - long.Funding.Rate8h()) * 100
				if diffPct < e.cfg.MinFunding8hPct {
					continue
				}

				// Wide books eat the funding edge on entry and exit.
				combinedSpread := a.SpreadBps() + b.SpreadBps()
				if combinedSpread > e.cfg.MaxCombinedSpreadBps {
					continue
				}

				longMid, shortMid := long.Mid(), short.Mid()
				if longMid <= 0 || shortMid <= 0 {
					continue
				}
				priceSpreadBps := (shortMid - longMid) / longMid * 10000

				notional := e.cfg.BaseNotionalUSD
				o := model.Opportunity{
					Type:           model.KindFundingArb,
					Symbol:         base,
					SpreadBps:      model.RoundTo(math.Abs(priceSpreadBps), 3),
					ExpectedPnlPct: model.RoundTo(diffPct-combinedSpread/100, 4),
					Notional:       notional,
					Timestamp:      now,
					Description: fmt.Sprintf("%s funding %.4f%%/8h apart: long %s (%.4f%%), short %s (%.4f%%)",
						base, diffPct,
						long.Venue, long.Funding.Rate8h()*100,
						short.Venue, short.Funding.Rate8h()*100),
					Legs: []model.Leg{
						{
							Exchange:  long.Venue,
							VenueType: model.VenuePerp,
							Side:      model.SideBuy,
							Symbol:    base + long.Quote,
							Price:     longMid,
							Quantity:  notional / longMid,
						},
						{
							Exchange:  short.Venue,
							VenueType: model.VenuePerp,
							Side:      model.SideSell,
							Symbol:    base + short.Quote,
							Price:     shortMid,
							Quantity:  notional / shortMid,
						},
					},
					Metadata: map[string]any{
						"funding_diff_8h_pct":  model.RoundTo(diffPct, 6),
						"long_exchange":        long.Venue,
						"short_exchange":       short.Venue,
						"long_funding_8h_pct":  model.RoundTo(long.Funding.Rate8h()*100, 6),
						"short_funding_8h_pct": model.RoundTo(short.Funding.Rate8h()*100, 6),
						"long_oi_usd":          model.RoundTo(long.OpenInterestUSD, 0),
						"short_oi_usd":         model.RoundTo(short.OpenInterestUSD, 0),
						"combined_spread_bps":  model.RoundTo(combinedSpread, 3),
					},
				}
				o.ID = model.OpportunityID(o.Type, o.Symbol, o.Venues(), o.SpreadBps)
				out = append(out, o)
			}
		}
	}
	return out
}
