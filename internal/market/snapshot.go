// Package market holds the fused in-memory view of all venue feeds.
// Connectors publish by per-key replacement; detectors read through a
// copied, consistent view so one tick sees one coherent snapshot.
package market

import (
	"sync"
	"time"

	"github.com/arbcommand/arbcommand/internal/model"
)

// TickerKey identifies one ticker slot: venue plus canonical symbol.
type TickerKey struct {
	Venue  string
	Symbol string
}

// PerpKey identifies one perp slot.
type PerpKey struct {
	Venue string
	Base  string
	Quote string
}

// Snapshot is the only shared mutable state in the process. Writers hold
// exclusive access for the duration of a publish; readers copy.
type Snapshot struct {
	mu      sync.RWMutex
	tickers map[TickerKey]model.Ticker
	perps   map[PerpKey]model.PerpMarket
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		tickers: make(map[TickerKey]model.Ticker),
		perps:   make(map[PerpKey]model.PerpMarket),
	}
}

// PublishTickers replaces the given venue's ticker entries key by key.
// Symbols the venue stopped returning are left in place and age out via
// the freshness gate.
func (s *Snapshot) PublishTickers(venue string, tickers []model.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickers {
		if !t.Valid() {
			continue
		}
		s.tickers[TickerKey{Venue: venue, Symbol: t.Instrument.Symbol()}] = t
	}
}

// PublishPerps replaces the given venue's perp entries key by key.
func (s *Snapshot) PublishPerps(venue string, perps []model.PerpMarket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perps {
		if p.Price() <= 0 {
			continue
		}
		s.perps[PerpKey{Venue: venue, Base: p.Base, Quote: p.Quote}] = p
	}
}

// Ticker returns one entry by venue and canonical symbol.
func (s *Snapshot) Ticker(venue, symbol string) (model.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickers[TickerKey{Venue: venue, Symbol: symbol}]
	return t, ok
}

// View copies the snapshot into an immutable read model for one
// detection tick.
func (s *Snapshot) View() *View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := &View{
		Tickers: make([]model.Ticker, 0, len(s.tickers)),
		Perps:   make([]model.PerpMarket, 0, len(s.perps)),
		TakenAt: time.Now().UTC(),
	}
	for _, t := range s.tickers {
		v.Tickers = append(v.Tickers, t)
	}
	for _, p := range s.perps {
		v.Perps = append(v.Perps, p)
	}
	return v
}

// View is a point-in-time copy of the snapshot. It is never mutated
// after construction, so detectors may read it from multiple goroutines.
type View struct {
	Tickers []model.Ticker
	Perps   []model.PerpMarket
	TakenAt time.Time
}

// FreshTickers returns the tickers usable for detection at now.
func (v *View) FreshTickers(now time.Time, maxAge time.Duration) []model.Ticker {
	out := make([]model.Ticker, 0, len(v.Tickers))
	for _, t := range v.Tickers {
		if t.Valid() && t.Fresh(now, maxAge) {
			out = append(out, t)
		}
	}
	return out
}

// FreshPerps returns the perp entries usable for detection at now.
func (v *View) FreshPerps(now time.Time, maxAge time.Duration) []model.PerpMarket {
	out := make([]model.PerpMarket, 0, len(v.Perps))
	for _, p := range v.Perps {
		if p.Price() > 0 && p.Fresh(now, maxAge) {
			out = append(out, p)
		}
	}
	return out
}

// Last returns the last price of (venue, symbol) if present and fresh.
func (v *View) Last(venue, symbol string, now time.Time, maxAge time.Duration) (float64, bool) {
	for _, t := range v.Tickers {
		if t.Venue == venue && t.Instrument.Symbol() == symbol {
			if t.Valid() && t.Fresh(now, maxAge) {
				return t.Last, true
			}
			return 0, false
		}
	}
	return 0, false
}
