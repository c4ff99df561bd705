package venues

import (
	"context"
	"strings"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const synthetixBaseURL = "https://perps-api-mainnet.synthetix.io"

// Synthetix serves v3 perp markets on Base via the hosted perps API.
// Funding accrues continuously and is quoted as a daily rate, so
// IntervalHours is 24.
type Synthetix struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewSynthetix returns a Synthetix v3 perp connector.
func NewSynthetix(client *Client, universe *Universe) *Synthetix {
	return &Synthetix{client: client, universe: universe, BaseURL: synthetixBaseURL}
}

func (s *Synthetix) Name() string { return "synthetix" }

type synthetixMarket struct {
	Symbol           string  `json:"symbol"`
	MarketName       string  `json:"marketName"`
	IndexPrice       float64 `json:"indexPrice"`
	CurrentFunding   float64 `json:"currentFundingRate"`
	OpenInterestUSD  float64 `json:"openInterestUsd"`
	OpenInterestSize float64 `json:"size"`
}

// FetchPerpMarkets lists the v3 markets. There is no order book; the
// index price fills the mark and the book sides stay empty.
func (s *Synthetix) FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error) {
	var markets []synthetixMarket
	if err := s.client.GetJSON(ctx, s.Name(), s.BaseURL+"/markets", nil, &markets); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.PerpMarket, 0, len(markets))
	for _, m := range markets {
		base := strings.ToUpper(m.Symbol)
		if base == "" {
			base = strings.ToUpper(strings.TrimSuffix(m.MarketName, "-PERP"))
		}
		if !s.universe.AllowsBase(base) || m.IndexPrice <= 0 {
			continue
		}
		out = append(out, model.PerpMarket{
			Venue: s.Name(),
			Base:  base,
			Quote: "USDT",
			Mark:  m.IndexPrice,
			Funding: model.FundingRate{
				RatePerInterval: m.CurrentFunding,
				IntervalHours:   24,
			},
			OpenInterestUSD:       m.OpenInterestUSD,
			OpenInterestContracts: m.OpenInterestSize,
			Timestamp:             now,
		})
	}
	return out, nil
}
