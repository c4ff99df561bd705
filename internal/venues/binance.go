package venues

import (
	"context"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const binanceSpotBaseURL = "https://api.binance.com"

// Binance serves USDT spot top-of-book via the public bookTicker feed.
type Binance struct {
	client   *Client
	universe *Universe

	// BaseURL is overridable for tests.
	BaseURL string
}

// NewBinance returns a Binance spot connector.
func NewBinance(client *Client, universe *Universe) *Binance {
	return &Binance{client: client, universe: universe, BaseURL: binanceSpotBaseURL}
}

func (b *Binance) Name() string { return "binance" }

type binanceBookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

// FetchSpotTickers pulls the full bookTicker list and keeps universe
// symbols. Last is synthesized from the midpoint since the endpoint has
// no trade price.
func (b *Binance) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	var book []binanceBookTicker
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/api/v3/ticker/bookTicker", nil, &book); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Ticker, 0, 64)
	for _, t := range book {
		symbol := NormalizeSymbol(t.Symbol)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !b.universe.AllowsSymbol(symbol) {
			continue
		}
		bid, ask := parseFloat(t.BidPrice), parseFloat(t.AskPrice)
		if bid <= 0 || ask <= 0 {
			continue
		}
		out = append(out, model.Ticker{
			Venue:      b.Name(),
			Instrument: model.Instrument{Base: base, Quote: quote, Kind: model.VenueSpot},
			Last:       (bid + ask) / 2,
			Bid:        bid,
			Ask:        ask,
			Timestamp:  now,
		})
	}
	return out, nil
}
