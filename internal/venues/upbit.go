package venues

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

const upbitBaseURL = "https://api.upbit.com"

// Upbit serves KRW spot books and per-asset wallet status. The orderbook
// endpoint returns top-of-book only when a single depth unit is
// requested, which is all the detectors need.
type Upbit struct {
	client   *Client
	universe *Universe

	BaseURL string
}

// NewUpbit returns an Upbit connector.
func NewUpbit(client *Client, universe *Universe) *Upbit {
	return &Upbit{client: client, universe: universe, BaseURL: upbitBaseURL}
}

func (u *Upbit) Name() string { return "upbit" }

type upbitOrderbook struct {
	Market    string  `json:"market"`
	Timestamp int64   `json:"timestamp"`
	Units     []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
	} `json:"orderbook_units"`
}

// FetchSpotTickers fetches the KRW orderbooks for the universe bases in
// one batched call. Last is synthesized from the midpoint.
func (u *Upbit) FetchSpotTickers(ctx context.Context) ([]model.Ticker, error) {
	bases := u.universe.Bases()
	if len(bases) == 0 {
		return nil, nil
	}
	markets := make([]string, 0, len(bases))
	for _, b := range bases {
		markets = append(markets, "KRW-"+b)
	}

	params := url.Values{"markets": {strings.Join(markets, ",")}}
	var books []upbitOrderbook
	if err := u.client.GetJSON(ctx, u.Name(), u.BaseURL+"/v1/orderbook", params, &books); err != nil {
		return nil, err
	}

	out := make([]model.Ticker, 0, len(books))
	for _, b := range books {
		if len(b.Units) == 0 {
			continue
		}
		base, ok := strings.CutPrefix(strings.ToUpper(b.Market), "KRW-")
		if !ok {
			continue
		}
		bid, ask := b.Units[0].BidPrice, b.Units[0].AskPrice
		if bid <= 0 || ask <= 0 {
			continue
		}
		out = append(out, model.Ticker{
			Venue:      u.Name(),
			Instrument: model.Instrument{Base: base, Quote: "KRW", Kind: model.VenueSpot},
			Last:       (bid + ask) / 2,
			Bid:        bid,
			Ask:        ask,
			Timestamp:  parseMillis(b.Timestamp),
		})
	}
	return out, nil
}

type upbitWalletStatus struct {
	Currency    string `json:"currency"`
	WalletState string `json:"wallet_state"`
}

// FetchWalletStates maps Upbit's wallet_state enum onto the deposit and
// withdraw flags. States not in the table stay unknown.
func (u *Upbit) FetchWalletStates(ctx context.Context) ([]model.WalletState, error) {
	var statuses []upbitWalletStatus
	if err := u.client.GetJSON(ctx, u.Name(), u.BaseURL+"/v1/status/wallet", nil, &statuses); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]model.WalletState, 0, len(statuses))
	for _, s := range statuses {
		asset := strings.ToUpper(s.Currency)
		if !u.universe.AllowsBase(asset) && asset != "USDT" {
			continue
		}
		ws := model.WalletState{Venue: u.Name(), Asset: asset, Timestamp: now}
		switch s.WalletState {
		case "working":
			ws.Deposit, ws.Withdraw = model.FlagEnabled, model.FlagEnabled
		case "withdraw_only":
			ws.Deposit, ws.Withdraw = model.FlagDisabled, model.FlagEnabled
		case "deposit_only":
			ws.Deposit, ws.Withdraw = model.FlagEnabled, model.FlagDisabled
		case "paused", "unsupported":
			ws.Deposit, ws.Withdraw = model.FlagDisabled, model.FlagDisabled
		}
		out = append(out, ws)
	}
	return out, nil
}
