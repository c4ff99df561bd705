package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const bithumbBaseURL = "https://api.bithumb.com"

// Bithumb serves KRW spot tickers and per-asset wallet status. Both
// endpoints return the whole market in one call.
type Bithumb struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewBithumb returns a Bithumb connector.
func NewBithumb(client *Client, universe *Universe) *Bithumb {
	return &Bithumb{client: client, universe: universe, BaseURL: bithumbBaseURL}
}

func (b *Bithumb) Name() string { return "bithumb" }

type bithumbTickerAll struct {
	Status string                     `json:"status"`
	Data   map[string]json.RawMessage `json:"data"`
}

type bithumbTicker struct {
	ClosingPrice string `json:"closing_price"`
}

// FetchSpotTickers pulls the ALL_KRW ticker map. The payload mixes
// per-coin objects with a scalar "date" entry, so per-coin decoding is
// deferred and decode failures on individual entries are skipped.
func (b *Bithumb) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	var resp bithumbTickerAll
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/public/ticker/ALL_KRW", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "0000" {
		return nil, &VenueError{Venue: b.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("status %s", resp.Status)}
	}

	now := time.Now().UTC()
	out := make([]model.Ticker, 0, 32)
	for coin, raw := range resp.Data {
		if coin == "date" {
			continue
		}
		base := strings.ToUpper(coin)
		if !b.universe.AllowsBase(base) && base != "USDT" {
			continue
		}
		var t bithumbTicker
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		last := parseFloat(t.ClosingPrice)
		if last <= 0 {
			continue
		}
		out = append(out, model.Ticker{
			Venue:      b.Name(),
			Instrument: model.Instrument{Base: base, Quote: "KRW", Kind: model.VenueSpot},
			Last:       last,
			Timestamp:  now,
		})
	}
	return out, nil
}

type bithumbAssetsStatus struct {
	Status string `json:"status"`
	Data   map[string]struct {
		DepositStatus  int `json:"deposit_status"`
		WithdrawStatus int `json:"withdrawal_status"`
	} `json:"data"`
}

// FetchWalletStates pulls the ALL asset status map; 1 means enabled.
func (b *Bithumb) FetchWalletStates(ctx context.Context) ([]model.WalletState, error) {
	var resp bithumbAssetsStatus
	if err := b.client.GetJSON(ctx, b.Name(), b.BaseURL+"/public/assetsstatus/ALL", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "0000" {
		return nil, &VenueError{Venue: b.Name(), Kind: ErrDecode,
			Err: fmt.Errorf("status %s", resp.Status)}
	}

	flag := func(v int) model.Flag {
		if v == 1 {
			return model.FlagEnabled
		}
		return model.FlagDisabled
	}
	now := time.Now().UTC()
	out := make([]model.WalletState, 0, len(resp.Data))
	for coin, s := range resp.Data {
		asset := strings.ToUpper(coin)
		if !b.universe.AllowsBase(asset) && asset != "USDT" {
			continue
		}
		out = append(out, model.WalletState{
			Venue:     b.Name(),
			Asset:     asset,
			Deposit:   flag(s.DepositStatus),
			Withdraw:  flag(s.WithdrawStatus),
			Timestamp: now,
		})
	}
	return out, nil
}
