// Package alerts tracks opportunity lifecycle transitions. An alert
// opens when an opportunity key first appears and closes when it
// disappears or its TTL lapses; repeats of the same key stay silent.
package alerts

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arbcommand/arbcommand/internal/model"
)

// EventType is the lifecycle transition an alert describes.
type EventType string

const (
	EventOpened EventType = "opened"
	EventClosed EventType = "closed"
)

// Event is one emitted transition.
type Event struct {
	Type      EventType
	Key       string
	Kind      model.Kind
	Symbol    string
	SpreadBps float64
	At        time.Time
}

type openAlert struct {
	kind      model.Kind
	symbol    string
	spreadBps float64
	lastSeen  time.Time
}

// Tracker keeps the open-alert table. Keys include the spread sign so a
// premium flipping to a discount closes the old alert and opens a new
// one.
type Tracker struct {
	ttl time.Duration

	mu   sync.Mutex
	open map[string]openAlert
}

// NewTracker builds a tracker with the given open-alert TTL.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{ttl: ttl, open: make(map[string]openAlert)}
}

// alertKey identifies an alert: kind, symbol, venue set and spread sign.
func alertKey(o model.Opportunity) string {
	sign := "+"
	if o.SpreadBps < 0 {
		sign = "-"
	}
	return string(o.Type) + "|" + o.Symbol + "|" + strings.Join(o.Venues(), ",") + "|" + sign
}

// Observe reconciles the tracker against one tick's opportunity list
// and returns the transitions. TTL-expired alerts are evicted without a
// close event: expiry means the detector stopped speaking, not that the
// edge closed.
func (t *Tracker) Observe(opps []model.Opportunity, now time.Time) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []Event
	present := make(map[string]bool, len(opps))
	for _, o := range opps {
		k := alertKey(o)
		present[k] = true
		if cur, ok := t.open[k]; ok {
			cur.lastSeen = now
			cur.spreadBps = o.SpreadBps
			t.open[k] = cur
			continue
		}
		t.open[k] = openAlert{kind: o.Type, symbol: o.Symbol, spreadBps: o.SpreadBps, lastSeen: now}
		events = append(events, Event{
			Type: EventOpened, Key: k, Kind: o.Type, Symbol: o.Symbol,
			SpreadBps: o.SpreadBps, At: now,
		})
		log.Info().Str("kind", string(o.Type)).Str("symbol", o.Symbol).
			Float64("spread_bps", math.Abs(o.SpreadBps)).Msg("opportunity opened")
	}

	for k, a := range t.open {
		if present[k] {
			continue
		}
		delete(t.open, k)
		if now.Sub(a.lastSeen) > t.ttl {
			continue
		}
		events = append(events, Event{
			Type: EventClosed, Key: k, Kind: a.kind, Symbol: a.symbol,
			SpreadBps: a.spreadBps, At: now,
		})
		log.Info().Str("kind", string(a.kind)).Str("symbol", a.symbol).
			Msg("opportunity closed")
	}
	return events
}

// OpenCount returns the number of currently open alerts.
func (t *Tracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
