// Package engine turns a market view into a ranked list of arbitrage
// opportunities. Each detector scans one strategy family; the engine
// fans the view out, then merges, dedupes and ranks the results.
package engine

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arbcommand/arbcommand/internal/alloc"
	"github.com/arbcommand/arbcommand/internal/config"
	"github.com/arbcommand/arbcommand/internal/market"
	"github.com/arbcommand/arbcommand/internal/model"
	"github.com/arbcommand/arbcommand/internal/wallet"
)

// krwVenues are the venues quoting in KRW. The kimchi detector pairs
// these against every USDT venue.
var krwVenues = map[string]bool{
	"upbit":   true,
	"bithumb": true,
}

// Engine holds the detector configuration and shared collaborators.
type Engine struct {
	cfg    config.Config
	curve  *alloc.Curve
	oracle *wallet.Oracle
}

// New builds an engine.
func New(cfg config.Config, curve *alloc.Curve, oracle *wallet.Oracle) *Engine {
	return &Engine{cfg: cfg, curve: curve, oracle: oracle}
}

// Detect runs every detector against the view and returns the deduped,
// ranked opportunity list, largest absolute spread first.
func (e *Engine) Detect(view *market.View, fx model.FxRate, now time.Time) []model.Opportunity {
	maxAge := e.cfg.MaxTickerAge()
	tickers := view.FreshTickers(now, maxAge)
	perps := view.FreshPerps(now, maxAge)

	detectors := []func() []model.Opportunity{
		func() []model.Opportunity { return e.detectSpotCross(tickers, now) },
		func() []model.Opportunity { return e.detectKimchi(tickers, perps, fx, now) },
		func() []model.Opportunity { return e.detectFunding(perps, now) },
		func() []model.Opportunity { return e.detectBasis(tickers, perps, now) },
		func() []model.Opportunity { return e.detectPerpSpread(perps, now) },
	}

	results := make([][]model.Opportunity, len(detectors))
	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d func() []model.Opportunity) {
			defer wg.Done()
			results[i] = d()
		}(i, d)
	}
	wg.Wait()

	var all []model.Opportunity
	for _, r := range results {
		all = append(all, r...)
	}
	return e.rank(all)
}

// rank sorts by absolute spread descending, drops duplicates of the
// same (kind, symbol, venue set) keeping the widest, and truncates to
// the configured maximum.
func (e *Engine) rank(opps []model.Opportunity) []model.Opportunity {
	sort.SliceStable(opps, func(i, j int) bool {
		return math.Abs(opps[i].SpreadBps) > math.Abs(opps[j].SpreadBps)
	})

	seen := make(map[string]bool, len(opps))
	out := make([]model.Opportunity, 0, len(opps))
	for _, o := range opps {
		k := dedupeKey(o)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}

	if len(out) > e.cfg.MaxOpportunities {
		out = out[:e.cfg.MaxOpportunities]
	}
	return out
}

func dedupeKey(o model.Opportunity) string {
	return string(o.Type) + "|" + o.Symbol + "|" + strings.Join(o.Venues(), ",")
}

// grossToNetPct converts a gross edge in bps to a net percentage after
// taker fees on both legs plus slippage.
func (e *Engine) grossToNetPct(spreadBps float64, buyVenue, sellVenue string) float64 {
	fees := e.cfg.VenueFee(buyVenue) + e.cfg.VenueFee(sellVenue)
	return (spreadBps - fees - 2*e.cfg.SlippageBps) / 100
}
