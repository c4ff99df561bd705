package venues

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const bingxBaseURL = "https://open-api.bingx.com"

// BingX serves spot tickers and USDT swaps. Swap funding and open
// interest are per-symbol endpoints, so the perp fetch iterates the
// universe bases.
type BingX struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewBingX returns a BingX connector.
func NewBingX(client *Client, universe *Universe) *BingX {
	return &BingX{client: client, universe: universe, BaseURL: bingxBaseURL}
}

func (b *BingX) Name() string { return "bingx" }

type bingxSpotResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Symbol    string  `json:"symbol"`
		LastPrice float64 `json:"lastPrice"`
	} `json:"data"`
}

// FetchSpotTickers pulls the 24hr ticker list and keeps USDT universe
// pairs. The endpoint has no book, so Last stands alone.
func (b *BingX) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	var resp bingxSpotResponse
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/openApi/spot/v1/ticker/24hr", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, &VenueError{Venue: b.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("code %d: %s", resp.Code, resp.Msg)}
	}

	now := time.Now().UTC()
	out := make([]model.Ticker, 0, 32)
	for _, t := range resp.Data {
		symbol := NormalizeSymbol(t.Symbol)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !b.universe.AllowsSymbol(symbol) {
			continue
		}
		if t.LastPrice <= 0 {
			continue
		}
		out = append(out, model.Ticker{
			Venue:      b.Name(),
			Instrument: model.Instrument{Base: base, Quote: quote, Kind: model.VenueSpot},
			Last:       t.LastPrice,
			Timestamp:  now,
		})
	}
	return out, nil
}

type bingxPremiumResponse struct {
	Code int `json:"code"`
	Data struct {
		MarkPrice       string `json:"markPrice"`
		LastFundingRate string `json:"lastFundingRate"`
		NextFundingTime int64  `json:"nextFundingTime"`
	} `json:"data"`
}

type bingxOIResponse struct {
	Code int `json:"code"`
	Data struct {
		OpenInterest string `json:"openInterest"`
	} `json:"data"`
}

// FetchPerpMarkets iterates the universe bases, fetching premium index
// and open interest per swap contract. Symbols the venue does not list
// are skipped silently.
func (b *BingX) FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error) {
	now := time.Now().UTC()
	out := make([]model.PerpMarket, 0, 16)
	for _, base := range b.universe.Bases() {
		contract := base + "-USDT"
		params := url.Values{"symbol": {contract}}

		var prem bingxPremiumResponse
		if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/openApi/swap/v2/quote/premiumIndex", params, &prem); err != nil {
			if Classify(err) == ErrRateLimited {
				return out, err
			}
			continue
		}
		if prem.Code != 0 {
			continue
		}
		mark := parseFloat(prem.Data.MarkPrice)
		if mark <= 0 {
			continue
		}

		m := model.PerpMarket{
			Venue: b.Name(),
			Base:  base,
			Quote: "USDT",
			Mark:  mark,
			Funding: model.FundingRate{
				RatePerInterval: parseFloat(prem.Data.LastFundingRate),
				IntervalHours:   8,
				NextFundingTime: parseMillis(prem.Data.NextFundingTime),
			},
			Timestamp: now,
		}

		var oi bingxOIResponse
		if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/openApi/swap/v2/quote/openInterest", params, &oi); err == nil && oi.Code == 0 {
			contracts := parseFloat(oi.Data.OpenInterest)
			m.OpenInterestContracts = contracts
			m.OpenInterestUSD = contracts * mark
		}
		out = append(out, m)
	}
	return out, nil
}
