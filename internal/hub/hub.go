// Package hub fans the per-tick opportunity list out to WebSocket
// subscribers and retains the last good list for HTTP reads. Slow
// subscribers are disconnected rather than allowed to stall a tick.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arbcommand/arbcommand/internal/metrics"
	"github.com/arbcommand/arbcommand/internal/model"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// falls this far behind is dropped.
const subscriberBuffer = 16

// Subscriber receives published ticks on C until Close.
type Subscriber struct {
	C  chan []model.Opportunity
	id uint64
}

// Hub is the publish side of the opportunity stream.
type Hub struct {
	lastGoodTTL time.Duration
	store       *Store

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscriber

	lastGood   []model.Opportunity
	lastGoodAt time.Time
	lastTickAt time.Time
}

// New builds a hub. store may be nil when Redis mirroring is disabled.
func New(lastGoodTTL time.Duration, store *Store) *Hub {
	return &Hub{
		lastGoodTTL: lastGoodTTL,
		store:       store,
		subs:        make(map[uint64]*Subscriber),
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &Subscriber{C: make(chan []model.Opportunity, subscriberBuffer), id: h.nextID}
	h.subs[s.id] = s
	metrics.Subscribers.Set(float64(len(h.subs)))
	return s
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.C)
	metrics.Subscribers.Set(float64(len(h.subs)))
}

// Publish fans one tick's list out. A full subscriber queue means the
// peer stopped reading; it is closed instead of blocking the tick.
func (h *Hub) Publish(ctx context.Context, opps []model.Opportunity) {
	h.mu.Lock()
	now := time.Now().UTC()
	h.lastTickAt = now
	if len(opps) > 0 {
		h.lastGood = opps
		h.lastGoodAt = now
	}
	var dropped []*Subscriber
	for _, s := range h.subs {
		select {
		case s.C <- opps:
		default:
			dropped = append(dropped, s)
		}
	}
	for _, s := range dropped {
		delete(h.subs, s.id)
		close(s.C)
	}
	metrics.Subscribers.Set(float64(len(h.subs)))
	h.mu.Unlock()

	if len(dropped) > 0 {
		log.Warn().Int("count", len(dropped)).Msg("dropped slow subscribers")
	}
	if h.store != nil && len(opps) > 0 {
		if err := h.store.SaveLastGood(ctx, opps, h.lastGoodTTL); err != nil {
			log.Debug().Err(err).Msg("failed to mirror last good list to redis")
		}
	}
}

// Latest returns the list HTTP readers should see plus a staleness
// flag: the last good list within its TTL, stale when the newest tick
// produced nothing. Past the TTL the list is empty but still flagged
// stale, so readers can tell expiry from a quiet start.
func (h *Hub) Latest() (opps []model.Opportunity, stale bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastGood == nil {
		return nil, false
	}
	if time.Since(h.lastGoodAt) > h.lastGoodTTL {
		return nil, true
	}
	stale = h.lastTickAt.After(h.lastGoodAt)
	return h.lastGood, stale
}
