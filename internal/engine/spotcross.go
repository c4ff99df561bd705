package engine

import (
	"fmt"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

// detectSpotCross scans every pair of USDT spot quotes for the same
// symbol on different venues. The edge is buying at one venue's ask and
// selling at another's bid.
func (e *Engine) detectSpotCross(tickers []model.Ticker, now time.Time) []model.Opportunity {
	bySymbol := make(map[string][]model.Ticker)
	for _, t := range tickers {
		if t.Instrument.Quote != "USDT" {
			continue
		}
		sym := t.Instrument.Symbol()
		bySymbol[sym] = append(bySymbol[sym], t)
	}

	var out []model.Opportunity
	for sym, quotes := range bySymbol {
		for i := 0; i < len(quotes); i++ {
			for j := 0; j < len(quotes); j++ {
				if i == j {
					continue
				}
				buy, sell := quotes[i], quotes[j]
				buyPx, sellPx := buy.BuyPrice(), sell.SellPrice()
				if buyPx <= 0 || sellPx <= 0 {
					continue
				}
				spreadBps := (sellPx - buyPx) / buyPx * 10000
				if spreadBps < e.cfg.MinSpreadBps {
					continue
				}
				// Fees and slippage on both legs must leave something.
				netPct := e.grossToNetPct(spreadBps, buy.Venue, sell.Venue)
				if netPct <= 0 {
					continue
				}

				notional := e.cfg.BaseNotionalUSD
				o := model.Opportunity{
					Type:           model.KindSpotCross,
					Symbol:         sym,
					SpreadBps:      model.RoundTo(spreadBps, 3),
					ExpectedPnlPct: model.RoundTo(netPct, 4),
					Notional:       notional,
					Timestamp:      now,
					Description: fmt.Sprintf("Buy %s on %s @ %s, sell on %s @ %s (+%.1f bps)",
						buy.Instrument.Base, buy.Venue, model.FormatPrice(buyPx),
						sell.Venue, model.FormatPrice(sellPx), spreadBps),
					Legs: []model.Leg{
						{
							Exchange:  buy.Venue,
							VenueType: model.VenueSpot,
							Side:      model.SideBuy,
							Symbol:    sym,
							Price:     buyPx,
							Quantity:  notional / buyPx,
						},
						{
							Exchange:  sell.Venue,
							VenueType: model.VenueSpot,
							Side:      model.SideSell,
							Symbol:    sym,
							Price:     sellPx,
							Quantity:  notional / sellPx,
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
