package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const hyperliquidBaseURL = "https://api.hyperliquid.xyz"

// Hyperliquid serves perp markets from the info endpoint. Its funding
// rate accrues hourly, so IntervalHours is 1 and normalization to 8h
// happens downstream.
type Hyperliquid struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewHyperliquid returns a Hyperliquid perp connector.
func NewHyperliquid(client *Client, universe *Universe) *Hyperliquid {
	return &Hyperliquid{client: client, universe: universe, BaseURL: hyperliquidBaseURL}
}

func (h *Hyperliquid) Name() string { return "hyperliquid" }

type hyperliquidMeta struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

type hyperliquidAssetCtx struct {
	Funding      string   `json:"funding"`
	MarkPx       string   `json:"markPx"`
	OpenInterest string   `json:"openInterest"`
	ImpactPxs    []string `json:"impactPxs"`
}

// FetchPerpMarkets posts metaAndAssetCtxs, which returns a two-element
// array: the asset metadata then the per-asset contexts, index-aligned.
func (h *Hyperliquid) FetchPerpMarkets(ctx context.Context) ([]model.PerpMarket, error) {
	var raw []json.RawMessage
	body := map[string]string{"type": "metaAndAssetCtxs"}
	if err := h.client.PostJSON(ctx, h.Name(), h.BaseURL+"/info", body, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, &VenueError{Venue: h.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("expected 2 elements, got %d", len(raw))}
	}

	var meta hyperliquidMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, &VenueError{Venue: h.Name(), Kind: ErrDecode, Err: err}
	}
	var ctxs []hyperliquidAssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, &VenueError{Venue: h.Name(), Kind: ErrDecode, Err: err}
	}
	if len(ctxs) < len(meta.Universe) {
		return nil, &VenueError{Venue: h.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("ctxs %d shorter than universe %d", len(ctxs), len(meta.Universe))}
	}

	now := time.Now().UTC()
	out := make([]model.PerpMarket, 0, len(meta.Universe))
	for i, asset := range meta.Universe {
		base := strings.ToUpper(asset.Name)
		if !h.universe.AllowsBase(base) {
			continue
		}
		c := ctxs[i]
		mark := parseFloat(c.MarkPx)
		if mark <= 0 {
			continue
		}
		var bid, ask float64
		if len(c.ImpactPxs) == 2 {
			bid, ask = parseFloat(c.ImpactPxs[0]), parseFloat(c.ImpactPxs[1])
		}
		oiContracts := parseFloat(c.OpenInterest)
		out = append(out, model.PerpMarket{
			Venue: h.Name(),
			Base:  base,
			Quote: "USDT",
			Bid:   bid,
			Ask:   ask,
			Mark:  mark,
			Funding: model.FundingRate{
				RatePerInterval: parseFloat(c.Funding),
				IntervalHours:   1,
			},
			OpenInterestUSD:       oiContracts * mark,
			OpenInterestContracts: oiContracts,
			Timestamp:             now,
		})
	}
	return out, nil
}
