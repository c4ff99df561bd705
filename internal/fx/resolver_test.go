package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcommand/arbcommand/internal/market"
	"github.com/arbcommand/arbcommand/internal/model"
	"github.com/arbcommand/arbcommand/internal/venues"
)

func newTestResolver(t *testing.T, dunamu, erAPI http.HandlerFunc) (*Resolver, *market.Snapshot) {
	t.Helper()
	snapshot := market.NewSnapshot()
	r := NewResolver(venues.NewClient(time.Second), snapshot, 1450, 30*time.Second)

	if dunamu != nil {
		srv := httptest.NewServer(dunamu)
		t.Cleanup(srv.Close)
		r.DunamuURL = srv.URL
	} else {
		r.DunamuURL = "http://127.0.0.1:1/unreachable"
	}
	if erAPI != nil {
		srv := httptest.NewServer(erAPI)
		t.Cleanup(srv.Close)
		r.ExchangeRateURL = srv.URL
	} else {
		r.ExchangeRateURL = "http://127.0.0.1:1/unreachable"
	}
	return r, snapshot
}

func TestRefreshUsesDunamuFirst(t *testing.T) {
	r, _ := newTestResolver(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`[{"code":"FRX.KRWUSD","basePrice":1389.5}]`))
		},
		func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"result":"success","rates":{"KRW":1400}}`))
		},
	)

	r.Refresh(context.Background())
	got := r.Current()
	assert.Equal(t, 1389.5, got.KRWPerUSD)
	assert.Equal(t, "dunamu", got.Source)
	assert.False(t, got.Stale)
}

func TestRefreshFallsThroughToSecondSource(t *testing.T) {
	r, _ := newTestResolver(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"result":"success","rates":{"KRW":1402.3}}`))
		},
	)

	r.Refresh(context.Background())
	got := r.Current()
	assert.Equal(t, 1402.3, got.KRWPerUSD)
	assert.Equal(t, "exchangerate-api", got.Source)
}

func TestRefreshRejectsOutOfBandRate(t *testing.T) {
	r, _ := newTestResolver(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`[{"code":"FRX.KRWUSD","basePrice":5000}]`))
		},
		nil,
	)

	r.Refresh(context.Background())
	got := r.Current()
	assert.Equal(t, "fallback", got.Source, "out-of-band rate must not be installed")
	assert.Equal(t, 1450.0, got.KRWPerUSD)
	assert.True(t, got.Stale)
}

func TestRefreshUsesImpliedBTCRate(t *testing.T) {
	r, snapshot := newTestResolver(t, nil, nil)
	now := time.Now().UTC()
	snapshot.PublishTickers("upbit", []model.Ticker{{
		Venue:      "upbit",
		Instrument: model.Instrument{Base: "BTC", Quote: "KRW", Kind: model.VenueSpot},
		Last:       97_150_000,
		Timestamp:  now,
	}})
	snapshot.PublishTickers("binance", []model.Ticker{{
		Venue:      "binance",
		Instrument: model.Instrument{Base: "BTC", Quote: "USDT", Kind: model.VenueSpot},
		Last:       67_000,
		Timestamp:  now,
	}})

	r.Refresh(context.Background())
	got := r.Current()
	assert.Equal(t, "implied-btc", got.Source)
	assert.InDelta(t, 97_150_000.0/67_000, got.KRWPerUSD, 1e-9)
}

func TestRefreshReusesLastGoodThenFallback(t *testing.T) {
	calls := 0
	r, _ := newTestResolver(t,
		func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls == 1 {
				w.Write([]byte(`[{"code":"FRX.KRWUSD","basePrice":1390}]`))
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		},
		nil,
	)

	r.Refresh(context.Background())
	require.Equal(t, 1390.0, r.Current().KRWPerUSD)

	// Every source now failing: last good is reused but flagged stale.
	r.Refresh(context.Background())
	got := r.Current()
	assert.Equal(t, 1390.0, got.KRWPerUSD)
	assert.Equal(t, "dunamu", got.Source)
	assert.True(t, got.Stale)
}

func TestCurrentNeverZero(t *testing.T) {
	r, _ := newTestResolver(t, nil, nil)
	got := r.Current()
	assert.Equal(t, 1450.0, got.KRWPerUSD)
	assert.True(t, got.Stale)
}
