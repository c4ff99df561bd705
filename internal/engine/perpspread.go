package engine

import (
	"fmt"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

// detectPerpSpread scans pairs of perp venues for a price divergence on
// the same contract: long the cheap venue, short the rich one.
func (e *Engine) detectPerpSpread(perps []model.PerpMarket, now time.Time) []model.Opportunity {
	byBase := make(map[string][]model.PerpMarket)
	for _, p := range perps {
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
				low, high := a, b
				if a.Mid() > b.Mid() {
					low, high = b, a
				}
				lowMid, highMid := low.Mid(), high.Mid()
				if lowMid <= 0 || highMid <= 0 {
					continue
				}
				spreadBps := (highMid - lowMid) / lowMid * 10000
				if spreadBps < e.cfg.MinSpreadBps {
					continue
				}
				netPct := e.grossToNetPct(spreadBps, low.Venue, high.Venue)
				if netPct <= 0 {
					continue
				}

				notional := e.cfg.BaseNotionalUSD
				o := model.Opportunity{
					Type:           model.KindPerpPerpSpread,
					Symbol:         base,
					SpreadBps:      model.RoundTo(spreadBps, 3),
					ExpectedPnlPct: model.RoundTo(netPct, 4),
					Notional:       notional,
					Timestamp:      now,
					Description: fmt.Sprintf("%s perp %.1f bps apart: long %s @ %s, short %s @ %s",
						base, spreadBps,
						low.Venue, model.FormatPrice(lowMid),
						high.Venue, model.FormatPrice(highMid)),
					Legs: []model.Leg{
						{
							Exchange:  low.Venue,
							VenueType: model.VenuePerp,
							Side:      model.SideBuy,
							Symbol:    base + low.Quote,
							Price:     lowMid,
							Quantity:  notional / lowMid,
						},
						{
							Exchange:  high.Venue,
							VenueType: model.VenuePerp,
							Side:      model.SideSell,
							Symbol:    base + high.Quote,
							Price:     highMid,
							Quantity:  notional / highMid,
						},
					},
				}
				o.ID = model.OpportunityID(o.Type, o.Symbol, o.Venues(), o.SpreadBps)
				out = append(out, o)
			}
		}
	}
	return out
}
