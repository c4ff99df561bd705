// Package fx resolves the KRW/USD exchange rate through a chain of
// sources: Dunamu, exchangerate-api, a rate implied by the BTC price on
// Upbit vs Binance, the last good value, and finally a configured
// fallback. The kimchi detector consumes whatever rate the chain
// produced, stale or not; staleness is carried on the rate itself.
package fx

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arbcommand/arbcommand/internal/market"
	"github.com/arbcommand/arbcommand/internal/model"
	"github.com/arbcommand/arbcommand/internal/venues"
)

const (
	dunamuURL       = "https://quotation-api-cdn.dunamu.com/v1/forex/recent"
	exchangeRateURL = "https://open.er-api.com/v6/latest/USD"
)

// Resolver maintains the current FX rate and refreshes it on a timer.
type Resolver struct {
	client   *venues.Client
	snapshot *market.Snapshot
	fallback float64
	staleTTL time.Duration

	// Endpoint overrides for tests.
	DunamuURL       string
	ExchangeRateURL string

	mu      sync.RWMutex
	current model.FxRate
	lastOK  model.FxRate
}

// NewResolver builds a resolver seeded with the configured fallback so
// Current never returns a zero rate.
func NewResolver(client *venues.Client, snapshot *market.Snapshot, fallbackKRWPerUSD float64, staleTTL time.Duration) *Resolver {
	seed := model.FxRate{
		KRWPerUSD: fallbackKRWPerUSD,
		Source:    "fallback",
		Stale:     true,
		Timestamp: time.Now().UTC(),
	}
	return &Resolver{
		client:          client,
		snapshot:        snapshot,
		fallback:        fallbackKRWPerUSD,
		staleTTL:        staleTTL,
		DunamuURL:       dunamuURL,
		ExchangeRateURL: exchangeRateURL,
		current:         seed,
		lastOK:          model.FxRate{},
	}
}

// Current returns the rate the detectors should use right now.
func (r *Resolver) Current() model.FxRate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Run refreshes on the given cadence until the context is canceled. One
// refresh runs immediately on startup.
func (r *Resolver) Run(ctx context.Context, interval time.Duration) {
	r.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh walks the source chain and installs the first in-band rate.
// When every live source fails, the last good rate is reused within its
// TTL, then the configured fallback takes over with Stale set.
func (r *Resolver) Refresh(ctx context.Context) {
	now := time.Now().UTC()

	type source struct {
		name  string
		fetch func(context.Context) (float64, error)
	}
	sources := []source{
		{"dunamu", r.fetchDunamu},
		{"exchangerate-api", r.fetchExchangeRateAPI},
		{"implied-btc", r.impliedFromBTC},
	}

	for _, s := range sources {
		rate, err := s.fetch(ctx)
		if err != nil {
			log.Debug().Err(err).Str("source", s.name).Msg("fx source failed")
			continue
		}
		fx := model.FxRate{KRWPerUSD: rate, Source: s.name, Timestamp: now}
		if !fx.InBand() {
			log.Warn().Float64("krw_per_usd", rate).Str("source", s.name).
				Msg("fx rate outside sanity band, rejected")
			continue
		}
		r.mu.Lock()
		r.current = fx
		r.lastOK = fx
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastOK.KRWPerUSD > 0 && now.Sub(r.lastOK.Timestamp) <= r.staleTTL {
		stale := r.lastOK
		stale.Stale = true
		r.current = stale
		log.Warn().Str("source", stale.Source).Time("as_of", stale.Timestamp).
			Msg("all fx sources failed, reusing last good rate")
		return
	}
	r.current = model.FxRate{
		KRWPerUSD: r.fallback,
		Source:    "fallback",
		Stale:     true,
		Timestamp: now,
	}
	log.Error().Float64("krw_per_usd", r.fallback).
		Msg("all fx sources failed, using configured fallback")
}

type dunamuQuote struct {
	Code      string  `json:"code"`
	BasePrice float64 `json:"basePrice"`
}

func (r *Resolver) fetchDunamu(ctx context.Context) (float64, error) {
	params := url.Values{"codes": {"FRX.KRWUSD"}}
	var quotes []dunamuQuote
	if err := r.client.GetJSON(ctx, "fx", r.DunamuURL, params, &quotes); err != nil {
		return 0, err
	}
	for _, q := range quotes {
		if q.Code == "FRX.KRWUSD" && q.BasePrice > 0 {
			return q.BasePrice, nil
		}
	}
	return 0, fmt.Errorf("no FRX.KRWUSD quote in response")
}

type exchangeRateResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (r *Resolver) fetchExchangeRateAPI(ctx context.Context) (float64, error) {
	var resp exchangeRateResponse
	if err := r.client.GetJSON(ctx, "fx", r.ExchangeRateURL, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Result != "success" {
		return 0, fmt.Errorf("result %q", resp.Result)
	}
	krw, ok := resp.Rates["KRW"]
	if !ok || krw <= 0 {
		return 0, fmt.Errorf("no KRW rate in response")
	}
	return krw, nil
}

// impliedFromBTC derives KRW/USD from the BTC price on Upbit against
// Binance. Both quotes must be live in the snapshot.
func (r *Resolver) impliedFromBTC(context.Context) (float64, error) {
	krw, ok := r.snapshot.Ticker("upbit", "BTCKRW")
	if !ok || krw.Last <= 0 {
		return 0, fmt.Errorf("no upbit BTC/KRW ticker")
	}
	usd, ok := r.snapshot.Ticker("binance", "BTCUSDT")
	if !ok || usd.Last <= 0 {
		return 0, fmt.Errorf("no binance BTC/USDT ticker")
	}
	return krw.Last / usd.Last, nil
}
