package venues

import (
	"context"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const gateBaseURL = "https://api.gateio.ws"

// Gate serves spot tickers and USDT perpetual futures from the v4 API.
type Gate struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewGate returns a Gate connector.
func NewGate(client *Client, universe *Universe) *Gate {
	return &Gate{client: client, universe: universe, BaseURL: gateBaseURL}
}

func (g *Gate) Name() string { return "gate" }

type gateSpotTicker struct {
	CurrencyPair string `json:"currency_pair"`
	Last         string `json:"last"`
	HighestBid   string `json:"highest_bid"`
	LowestAsk    string `json:"lowest_ask"`
}

// FetchSpotTickers pulls all spot tickers and keeps USDT universe pairs.
func (g *Gate) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	var tickers []gateSpotTicker
	if err := g.client.GetJSON(ctx, g.Name(), g.BaseURL+"/api/v4/spot/tickers", nil, &tickers); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Ticker, 0, 64)
	for _, t := range tickers {
		symbol := NormalizeSymbol(t.CurrencyPair)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !g.universe.AllowsSymbol(symbol) {
			continue
		}
		last := parseFloat(t.Last)
		if last <= 0 {
			continue
		}
		out = append(out, model.Ticker{
			Venue:      g.Name(),
			Instrument: model.Instrument{Base: base, Quote: quote, Kind: model.VenueSpot},
			Last:       last,
			Bid:        parseFloat(t.HighestBid),
			Ask:        parseFloat(t.LowestAsk),
			Timestamp:  now,
		})
	}
	return out, nil
}

type gateFuturesTicker struct {
	Contract     string `json:"contract"`
	Last         string `json:"last"`
	MarkPrice    string `json:"mark_price"`
	FundingRate  string `json:"funding_rate"`
	TotalSizeRaw string `json:"total_size"`
	HighestBid   string `json:"highest_bid"`
	LowestAsk    string `json:"lowest_ask"`
	QuantoMult   string `json:"quanto_multiplier"`
}

// FetchPerpMarkets pulls USDT-settled futures tickers. Contract sizes
// are expressed in quanto multiples of the base asset; OI in USD is
// size * multiplier * mark.
func (g *Gate) FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error) {
	var tickers []gateFuturesTicker
	if err := g.client.GetJSON(ctx, g.Name(), g.BaseURL+"/api/v4/futures/usdt/tickers", nil, &tickers); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.PerpMarket, 0, 64)
	for _, t := range tickers {
		symbol := NormalizeSymbol(t.Contract)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !g.universe.AllowsBase(base) {
			continue
		}
		mark := parseFloat(t.MarkPrice)
		if mark <= 0 {
			mark = parseFloat(t.Last)
		}
		mult := parseFloat(t.QuantoMult)
		if mult <= 0 {
			mult = 1
		}
		size := parseFloat(t.TotalSizeRaw)
		out = append(out, model.PerpMarket{
			Venue: g.Name(),
			Base:  base,
			Quote: quote,
			Bid:   parseFloat(t.HighestBid),
			Ask:   parseFloat(t.LowestAsk),
			Mark:  mark,
			Funding: model.FundingRate{
				RatePerInterval: parseFloat(t.FundingRate),
				IntervalHours:   8,
			},
			OpenInterestUSD:       size * mult * mark,
			OpenInterestContracts: size,
			Timestamp:             now,
		})
	}
	return out, nil
}
