package venues

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const bybitBaseURL = "https://api.bybit.com"

// Bybit serves both spot and USDT-linear perp tickers from the unified
// v5 market endpoint.
type Bybit struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewBybit returns a Bybit connector.
func NewBybit(client *Client, universe *Universe) *Bybit {
	return &Bybit{client: client, universe: universe, BaseURL: bybitBaseURL}
}

func (b *Bybit) Name() string { return "bybit" }

type bybitTickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol          string `json:"symbol"`
			LastPrice       string `json:"lastPrice"`
			Bid1Price       string `json:"bid1Price"`
			Ask1Price       string `json:"ask1Price"`
			MarkPrice       string `json:"markPrice"`
			FundingRate     string `json:"fundingRate"`
			NextFundingTime string `json:"nextFundingTime"`
			OpenInterest    string `json:"openInterest"`
		} `json:"list"`
	} `json:"result"`
}

func (b *Bybit) tickers(ctx context.Context, category string) (*bybitTickersResponse, error) {
	params := url.Values{"category": {category}}
	var resp bybitTickersResponse
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/v5/market/tickers", params, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &VenueError{Venue: b.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("retCode %d: %s", resp.RetCode, resp.RetMsg)}
	}
	return &resp, nil
}

// FetchSpotTickers pulls all spot tickers and keeps USDT universe pairs.
func (b *Bybit) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	resp, err := b.tickers(ctx, "spot")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Ticker, 0, 64)
	for _, t := range resp.Result.List {
		symbol := NormalizeSymbol(t.Symbol)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !b.universe.AllowsSymbol(symbol) {
			continue
		}
		last := parseFloat(t.LastPrice)
		if last <= 0 {
			continue
		}
		out = append(out, model.Ticker{
			Venue:      b.Name(),
			Instrument: model.Instrument{Base: base, Quote: quote, Kind: model.VenueSpot},
			Last:       last,
			Bid:        parseFloat(t.Bid1Price),
			Ask:        parseFloat(t.Ask1Price),
			Timestamp:  now,
		})
	}
	return out, nil
}

// FetchPerpMarkets pulls USDT linear tickers; funding is the native
// 8-hour rate and open interest is contracts, converted to USD at mark.
func (b *Bybit) FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error) {
	resp, err := b.tickers(ctx, "linear")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.PerpMarket, 0, 64)
	for _, t := range resp.Result.List {
		symbol := NormalizeSymbol(t.Symbol)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !b.universe.AllowsBase(base) {
			continue
		}
		mark := parseFloat(t.MarkPrice)
		oiContracts := parseFloat(t.OpenInterest)
		var nextFunding time.Time
		if ms := parseFloat(t.NextFundingTime); ms > 0 {
			nextFunding = parseMillis(int64(ms))
		}
		out = append(out, model.PerpMarket{
			Venue: b.Name(),
			Base:  base,
			Quote: quote,
			Bid:   parseFloat(t.Bid1Price),
			Ask:   parseFloat(t.Ask1Price),
			Mark:  mark,
			Funding: model.FundingRate{
				RatePerInterval: parseFloat(t.FundingRate),
				IntervalHours:   8,
				NextFundingTime: nextFunding,
			},
			OpenInterestUSD:       oiContracts * mark,
			OpenInterestContracts: oiContracts,
			Timestamp:             now,
		})
	}
	return out, nil
}
