package venues

import (
	"context"
	"net/url"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const binanceFuturesBaseURL = "https://fapi.binance.com"

// BinanceFutures serves USDT-margined perpetuals. Building a complete
// PerpMarket takes three feeds: premiumIndex for mark and funding,
// bookTicker for the top of book, and per-symbol openInterest calls for
// OI. OI calls are limited to the universe to stay within weight limits.
type BinanceFutures struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewBinanceFutures returns a Binance USDT-futures connector.
func NewBinanceFutures(client *Client, universe *Universe) *BinanceFutures {
	return &BinanceFutures{client: client, universe: universe, BaseURL: binanceFuturesBaseURL}
}

func (b *BinanceFutures) Name() string { return "binance_futures" }

type binancePremiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

type binanceFutBookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

type binanceOpenInterest struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
}

// FetchPerpMarkets assembles perp entries from the three public feeds.
// A failed per-symbol OI call leaves that entry's OI at zero instead of
// failing the whole refresh.
func (b *BinanceFutures) FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error) {
	var premiums []binancePremiumIndex
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/fapi/v1/premiumIndex", nil, &premiums); err != nil {
		return nil, err
	}
	var books []binanceFutBookTicker
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/fapi/v1/ticker/bookTicker", nil, &books); err != nil {
		return nil, err
	}

	bookBySymbol := make(map[string]binanceFutBookTicker, len(books))
	for _, bt := range books {
		bookBySymbol[NormalizeSymbol(bt.Symbol)] = bt
	}

	now := time.Now().UTC()
	out := make([]model.PerpMarket, 0, 64)
	for _, p := range premiums {
		symbol := NormalizeSymbol(p.Symbol)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !b.universe.AllowsBase(base) {
			continue
		}
		mark := parseFloat(p.MarkPrice)
		if mark <= 0 {
			continue
		}

		m := model.PerpMarket{
			Venue: b.Name(),
			Base:  base,
			Quote: quote,
			Mark:  mark,
			Funding: model.FundingRate{
				RatePerInterval: parseFloat(p.LastFundingRate),
				IntervalHours:   8,
				NextFundingTime: parseMillis(p.NextFundingTime),
			},
			Timestamp: now,
		}
		if bt, ok := bookBySymbol[symbol]; ok {
			m.Bid = parseFloat(bt.BidPrice)
			m.Ask = parseFloat(bt.AskPrice)
		}

		var oi binanceOpenInterest
		params := url.Values{"symbol": {p.Symbol}}
		if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/fapi/v1/openInterest", params, &oi); err == nil {
			contracts := parseFloat(oi.OpenInterest)
			m.OpenInterestContracts = contracts
			m.OpenInterestUSD = contracts * mark
		}
		out = append(out, m)
	}
	return out, nil
}
