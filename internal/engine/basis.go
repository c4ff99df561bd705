package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

// detectBasis scans spot quotes against perp marks for the same base.
// A perp trading rich to spot is captured by buying spot and shorting
// the perp; a perp trading cheap reverses the legs.
func (e *Engine) detectBasis(tickers []model.Ticker, perps []model.PerpMarket, now time.Time) []model.Opportunity {
	spotByBase := make(map[string][]model.Ticker)
	for _, t := range tickers {
		if t.Instrument.Quote != "USDT" {
			continue
		}
		spotByBase[t.Instrument.Base] = append(spotByBase[t.Instrument.Base], t)
	}

	var out []model.Opportunity
	for _, perp := range perps {
		if perp.OpenInterestUSD < e.cfg.MinOIUSD {
			continue
		}
		perpMid := perp.Mid()
		if perpMid <= 0 {
			continue
		}
		for _, spot := range spotByBase[perp.Base] {
			spotMid := spot.Mid()
			if spotMid <= 0 {
				continue
			}
			basisBps := (perpMid - spotMid) / spotMid * 10000
			if math.Abs(basisBps) < e.cfg.MinBasisBps {
				continue
			}

			// Holding the hedge pays or earns funding: a short perp leg
			// collects positive funding, a long one pays it.
			fundingCostBps := perp.Funding.Rate8h() * 10000
			if basisBps >= 0 {
				fundingCostBps = -fundingCostBps
			}

			notional := e.cfg.BaseNotionalUSD
			var legs []model.Leg
			var desc string
			if basisBps >= 0 {
				legs = []model.Leg{
					{
						Exchange:  spot.Venue,
						VenueType: model.VenueSpot,
						Side:      model.SideBuy,
						Symbol:    spot.Instrument.Symbol(),
						Price:     spotMid,
						Quantity:  notional / spotMid,
					},
					{
						Exchange:  perp.Venue,
						VenueType: model.VenuePerp,
						Side:      model.SideSell,
						Symbol:    perp.Base + perp.Quote,
						Price:     perpMid,
						Quantity:  notional / perpMid,
					},
				}
				desc = fmt.Sprintf("%s perp on %s %.1f bps over %s spot: buy spot, short perp",
					perp.Base, perp.Venue, basisBps, spot.Venue)
			} else {
				legs = []model.Leg{
					{
						Exchange:  perp.Venue,
						VenueType: model.VenuePerp,
						Side:      model.SideBuy,
						Symbol:    perp.Base + perp.Quote,
						Price:     perpMid,
						Quantity:  notional / perpMid,
					},
					{
						Exchange:  spot.Venue,
						VenueType: model.VenueSpot,
						Side:      model.SideSell,
						Symbol:    spot.Instrument.Symbol(),
						Price:     spotMid,
						Quantity:  notional / spotMid,
					},
				}
				desc = fmt.Sprintf("%s perp on %s %.1f bps under %s spot: long perp, sell spot",
					perp.Base, perp.Venue, -basisBps, spot.Venue)
			}

			o := model.Opportunity{
				Type:           model.KindSpotVsPerp,
				Symbol:         perp.Base,
				SpreadBps:      model.RoundTo(math.Abs(basisBps), 3),
				ExpectedPnlPct: model.RoundTo((math.Abs(basisBps)-fundingCostBps)/100, 4),
				Notional:       notional,
				Timestamp:      now,
				Description:    desc,
				Legs:           legs,
				Metadata: map[string]any{
					"basis_bps":                 model.RoundTo(basisBps, 3),
					"expected_funding_cost_bps": model.RoundTo(fundingCostBps, 3),
					"perp_funding_8h_pct":       model.RoundTo(perp.Funding.Rate8h()*100, 6),
					"perp_oi_usd":               model.RoundTo(perp.OpenInterestUSD, 0),
				},
			}
			o.ID = model.OpportunityID(o.Type, o.Symbol, o.Venues(), o.SpreadBps)
			out = append(out, o)
		}
	}
	return out
}
