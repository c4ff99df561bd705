package venues

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const bitgetBaseURL = "https://api.bitget.com"

// Bitget serves spot and USDT-futures tickers from the v2 market API.
type Bitget struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewBitget returns a Bitget connector.
func NewBitget(client *Client, universe *Universe) *Bitget {
	return &Bitget{client: client, universe: universe, BaseURL: bitgetBaseURL}
}

func (b *Bitget) Name() string { return "bitget" }

type bitgetSpotResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Symbol string `json:"symbol"`
		LastPr string `json:"lastPr"`
		BidPr  string `json:"bidPr"`
		AskPr  string `json:"askPr"`
		Ts     string `json:"ts"`
	} `json:"data"`
}

// FetchSpotTickers pulls all spot tickers and keeps USDT universe pairs.
func (b *Bitget) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	var resp bitgetSpotResponse
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/api/v2/spot/market/tickers", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "00000" {
		return nil, &VenueError{Venue: b.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("code %s: %s", resp.Code, resp.Msg)}
	}

	now := time.Now().UTC()
	out := make([]model.Ticker, 0, 64)
	for _, t := range resp.Data {
		symbol := NormalizeSymbol(t.Symbol)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !b.universe.AllowsSymbol(symbol) {
			continue
		}
		last := parseFloat(t.LastPr)
		if last <= 0 {
			continue
		}
		ts := now
		if ms, err := strconv.ParseInt(t.Ts, 10, 64); err == nil && ms > 0 {
			ts = parseMillis(ms)
		}
		out = append(out, model.Ticker{
			Venue:      b.Name(),
			Instrument: model.Instrument{Base: base, Quote: quote, Kind: model.VenueSpot},
			Last:       last,
			Bid:        parseFloat(t.BidPr),
			Ask:        parseFloat(t.AskPr),
			Timestamp:  ts,
		})
	}
	return out, nil
}

type bitgetMixResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Symbol      string `json:"symbol"`
		LastPr      string `json:"lastPr"`
		BidPr       string `json:"bidPr"`
		AskPr       string `json:"askPr"`
		MarkPrice   string `json:"markPrice"`
		FundingRate string `json:"fundingRate"`
		HoldingAmt  string `json:"holdingAmount"`
	} `json:"data"`
}

// FetchPerpMarkets pulls USDT-FUTURES tickers; holdingAmount is base-
// denominated open interest.
func (b *Bitget) FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error) {
	params := url.Values{"productType": {"USDT-FUTURES"}}
	var resp bitgetMixResponse
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/api/v2/mix/market/tickers", params, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "00000" {
		return nil, &VenueError{Venue: b.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("code %s: %s", resp.Code, resp.Msg)}
	}

	now := time.Now().UTC()
	out := make([]model.PerpMarket, 0, 64)
	for _, t := range resp.Data {
		symbol := NormalizeSymbol(t.Symbol)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !b.universe.AllowsBase(base) {
			continue
		}
		mark := parseFloat(t.MarkPrice)
		if mark <= 0 {
			mark = parseFloat(t.LastPr)
		}
		holding := parseFloat(t.HoldingAmt)
		out = append(out, model.PerpMarket{
			Venue: b.Name(),
			Base:  base,
			Quote: quote,
			Bid:   parseFloat(t.BidPr),
			Ask:   parseFloat(t.AskPr),
			Mark:  mark,
			Funding: model.FundingRate{
				RatePerInterval: parseFloat(t.FundingRate),
				IntervalHours:   8,
			},
			OpenInterestUSD:       holding * mark,
			OpenInterestContracts: holding,
			Timestamp:             now,
		})
	}
	return out, nil
}
