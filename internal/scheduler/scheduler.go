// Package scheduler drives the refresh-and-detect cycle: fan out to
// every connector with a per-call timeout, fuse the results into the
// snapshot, run detection and publish the tick.
package scheduler

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arbcommand/arbcommand/internal/alerts"
	"github.com/arbcommand/arbcommand/internal/engine"
	"github.com/arbcommand/arbcommand/internal/fx"
	"github.com/arbcommand/arbcommand/internal/hub"
	"github.com/arbcommand/arbcommand/internal/market"
	"github.com/arbcommand/arbcommand/internal/metrics"
	"github.com/arbcommand/arbcommand/internal/model"
	"github.com/arbcommand/arbcommand/internal/venues"
)

// backoffCap bounds the rate-limit backoff as a multiple of the detect
// interval.
const backoffCap = 5

// Scheduler owns the periodic loops.
type Scheduler struct {
	interval       time.Duration
	connectTimeout time.Duration
	walletInterval time.Duration

	connectors []venues.Connector
	snapshot   *market.Snapshot
	engine     *engine.Engine
	tracker    *alerts.Tracker
	hub        *hub.Hub
	fx         *fx.Resolver
	oracle     walletSink

	mu      sync.Mutex
	backoff map[string]int
	skipTil map[string]time.Time
}

// walletSink is the oracle's write side.
type walletSink interface {
	Update([]model.WalletState)
}

// New builds a scheduler over the given connectors.
func New(
	interval, connectTimeout, walletInterval time.Duration,
	connectors []venues.Connector,
	snapshot *market.Snapshot,
	eng *engine.Engine,
	tracker *alerts.Tracker,
	h *hub.Hub,
	resolver *fx.Resolver,
	oracle walletSink,
) *Scheduler {
	return &Scheduler{
		interval:       interval,
		connectTimeout: connectTimeout,
		walletInterval: walletInterval,
		connectors:     connectors,
		snapshot:       snapshot,
		engine:         eng,
		tracker:        tracker,
		hub:            h,
		fx:             resolver,
		oracle:         oracle,
		backoff:        make(map[string]int),
		skipTil:        make(map[string]time.Time),
	}
}

// Run blocks until the context is canceled. The first tick fires
// immediately so startup does not wait a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	go s.walletLoop(ctx)

	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick refreshes every eligible connector in parallel, waits at most
// one interval, then detects and publishes. Stragglers are canceled
// rather than delaying the tick.
func (s *Scheduler) tick(ctx context.Context) {
	refreshCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range s.connectors {
		if s.skipped(c.Name()) {
			continue
		}
		wg.Add(1)
		go func(c venues.Connector) {
			defer wg.Done()
			s.refresh(refreshCtx, c)
		}(c)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.interval):
		cancel()
		<-done
	case <-ctx.Done():
		cancel()
		<-done
		return
	}

	now := time.Now().UTC()
	view := s.snapshot.View()
	opps := s.engine.Detect(view, s.fx.Current(), now)
	events := s.tracker.Observe(opps, now)

	perKind := make(map[model.Kind]int)
	for _, o := range opps {
		perKind[o.Type]++
	}
	for _, k := range []model.Kind{
		model.KindSpotCross, model.KindKimchiPremium, model.KindFundingArb,
		model.KindSpotVsPerp, model.KindPerpPerpSpread,
	} {
		metrics.Opportunities.WithLabelValues(string(k)).Set(float64(perKind[k]))
	}
	metrics.DetectTicks.Inc()
	metrics.AlertsOpen.Set(float64(s.tracker.OpenCount()))
	cur := s.fx.Current()
	metrics.FxRate.WithLabelValues(cur.Source).Set(cur.KRWPerUSD)

	log.Debug().
		Int("opportunities", len(opps)).
		Int("alert_events", len(events)).
		Int("tickers", len(view.Tickers)).
		Int("perps", len(view.Perps)).
		Msg("detection tick")

	s.hub.Publish(ctx, opps)
}

// refresh fetches one connector's feeds under a timeout, staggered by a
// jitter spanning a tenth of the interval either side of the nominal
// start so venues are not hit in lockstep.
func (s *Scheduler) refresh(ctx context.Context, c venues.Connector) {
	jitter := time.Duration(rand.Int63n(int64(s.interval) / 5))
	select {
	case <-ctx.Done():
		return
	case <-time.After(jitter):
	}

	callCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	start := time.Now()
	var failed bool

	if feed, ok := c.(venues.SpotFeed); ok {
		tickers, err := feed.FetchSpotTickers(callCtx)
		if err != nil {
			failed = true
			s.handleError(c.Name(), err)
		} else {
			s.snapshot.PublishTickers(c.Name(), tickers)
		}
	}
	if feed, ok := c.(venues.PerpFeed); ok {
		perps, err := feed.FetchPerpMarkets(callCtx)
		if err != nil {
			failed = true
			s.handleError(c.Name(), err)
		} else {
			s.snapshot.PublishPerps(c.Name(), perps)
		}
	}

	result := "ok"
	if failed {
		result = "error"
	} else {
		s.clearBackoff(c.Name())
	}
	metrics.RefreshTotal.WithLabelValues(c.Name(), result).Inc()
	metrics.RefreshDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
}

// handleError applies the retry policy per error class: network and
// decode failures just leave the slice stale until the next tick, rate
// limits back the venue off exponentially.
func (s *Scheduler) handleError(venue string, err error) {
	kind := venues.Classify(err)
	log.Warn().Err(err).Str("venue", venue).Str("kind", kind.String()).
		Msg("connector refresh failed")
	if kind != venues.ErrRateLimited {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.backoff[venue] + 1
	s.backoff[venue] = n
	delay := time.Duration(math.Pow(2, float64(n))) * s.interval
	if limit := backoffCap * s.interval; delay > limit {
		delay = limit
	}
	s.skipTil[venue] = time.Now().Add(delay)
	log.Warn().Str("venue", venue).Dur("backoff", delay).Msg("rate limited, backing off")
}

func (s *Scheduler) clearBackoff(venue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backoff, venue)
	delete(s.skipTil, venue)
}

func (s *Scheduler) skipped(venue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.skipTil[venue]
	return ok && time.Now().Before(until)
}

// walletLoop refreshes deposit/withdraw capability on its own, slower
// cadence. One refresh runs immediately on startup.
func (s *Scheduler) walletLoop(ctx context.Context) {
	s.refreshWallets(ctx)
	ticker := time.NewTicker(s.walletInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshWallets(ctx)
		}
	}
}

func (s *Scheduler) refreshWallets(ctx context.Context) {
	for _, c := range s.connectors {
		feed, ok := c.(venues.WalletFeed)
		if !ok {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
		states, err := feed.FetchWalletStates(callCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("venue", c.Name()).Msg("wallet refresh failed")
			continue
		}
		s.oracle.Update(states)
	}
}
