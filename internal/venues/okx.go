package venues

import (
	"context"
	"net/url"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const okxBaseURL = "https://www.okx.com"

// OKX serves USDT spot tickers from the bulk tickers endpoint.
type OKX struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewOKX returns an OKX spot connector.
func NewOKX(client *Client, universe *Universe) *OKX {
	return &OKX{client: client, universe: universe, BaseURL: okxBaseURL}
}

func (o *OKX) Name() string { return "okx" }

type okxTickersResponse struct {
	Code string `json:"code"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
		BidPx  string `json:"bidPx"`
		AskPx  string `json:"askPx"`
		Ts     string `json:"ts"`
	} `json:"data"`
}

// FetchSpotTickers pulls all SPOT tickers and keeps USDT universe pairs.
func (o *OKX) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	params := url.Values{"instType": {"SPOT"}}
	var resp okxTickersResponse
	if err := o.client.GetJSON(ctx, o.Name(), o.BaseURL+"/api/v5/market/tickers", params, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.Ticker, 0, 64)
	for _, t := range resp.Data {
		symbol := NormalizeSymbol(t.InstID)
		base, quote, ok := SplitSymbol(symbol)
		if !ok || quote != "USDT" || !o.universe.AllowsSymbol(symbol) {
			continue
		}
		last := parseFloat(t.Last)
		if last <= 0 {
			continue
		}
		out = append(out, model.Ticker{
			Venue:      o.Name(),
			Instrument: model.Instrument{Base: base, Quote: quote, Kind: model.VenueSpot},
			Last:       last,
			Bid:        parseFloat(t.BidPx),
			Ask:        parseFloat(t.AskPx),
			Timestamp:  now,
		})
	}
	return out, nil
}
