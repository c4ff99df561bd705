package httpapi

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/arbcommand/arbcommand/internal/model"
)

// heartbeatInterval is the WebSocket ping cadence; peers that miss two
// heartbeats get read-timeout out.
const heartbeatInterval = 25 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime_s":  int(time.Since(s.startGMT).Seconds()),
		"usd_krw":   s.fx.Current().KRWPerUSD,
		"fx_source": s.fx.Current().Source,
	})
}

// latest returns the servable list and sets X-Data-Stale when it is the
// retained last good list rather than the newest tick's output.
func (s *Server) latest(w http.ResponseWriter) []model.Opportunity {
	opps, stale := s.hub.Latest()
	if stale {
		w.Header().Set("X-Data-Stale", "true")
	}
	if opps == nil {
		return []model.Opportunity{}
	}
	return opps
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	opps := s.latest(w)
	limit := limitParam(r, s.cfg.MaxOpportunities)
	if len(opps) > limit {
		opps = opps[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
		"timestamp":     time.Now().UTC(),
	})
}

// handleTetherSignal serves the kimchi subset with allocation advice,
// the input the KRW rebalancing bot consumes.
func (s *Server) handleTetherSignal(w http.ResponseWriter, r *http.Request) {
	opps := s.latest(w)
	limit := limitParam(r, 20)

	signals := make([]model.Opportunity, 0, limit)
	for _, o := range opps {
		if o.Type != model.KindKimchiPremium {
			continue
		}
		signals = append(signals, o)
		if len(signals) == limit {
			break
		}
	}

	cur := s.fx.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"signals":   signals,
		"count":     len(signals),
		"usd_krw":   cur.KRWPerUSD,
		"fx_source": cur.Source,
		"fx_stale":  cur.Stale,
		"timestamp": time.Now().UTC(),
	})
}

type spreadSummary struct {
	Count int     `json:"count"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// handleMonitorSpreads serves a filtered dashboard view with per-kind
// aggregates.
func (s *Server) handleMonitorSpreads(w http.ResponseWriter, r *http.Request) {
	opps := s.latest(w)
	q := r.URL.Query()

	minGap := queryFloat(q, "minGap", "min_gap_bps")
	minKimchi := queryFloat(q, "minKimchi", "min_kimchi_pct")
	minFunding := queryFloat(q, "minFunding", "min_funding_pct")
	minCex := queryFloat(q, "minCex", "min_cex_bps")

	var kinds map[model.Kind]bool
	if raw := q.Get("types"); raw != "" {
		kinds = make(map[model.Kind]bool)
		for _, t := range strings.Split(raw, ",") {
			kinds[model.Kind(strings.TrimSpace(t))] = true
		}
	}

	filtered := make([]model.Opportunity, 0, len(opps))
	for _, o := range opps {
		if kinds != nil && !kinds[o.Type] {
			continue
		}
		abs := math.Abs(o.SpreadBps)
		switch o.Type {
		case model.KindKimchiPremium:
			if abs/100 < minKimchi {
				continue
			}
		case model.KindFundingArb:
			if diff, ok := o.Metadata["funding_diff_8h_pct"].(float64); ok && diff < minFunding {
				continue
			}
		case model.KindSpotCross, model.KindPerpPerpSpread:
			if abs < minCex {
				continue
			}
		}
		if abs < minGap {
			continue
		}
		filtered = append(filtered, o)
	}

	byKind := make(map[model.Kind]*spreadSummary)
	exchangeCounts := make(map[string]int)
	for _, o := range filtered {
		sum, ok := byKind[o.Type]
		if !ok {
			sum = &spreadSummary{}
			byKind[o.Type] = sum
		}
		abs := math.Abs(o.SpreadBps)
		sum.Count++
		sum.Avg += abs
		if abs > sum.Max {
			sum.Max = abs
		}
		for _, v := range o.Venues() {
			exchangeCounts[v]++
		}
	}
	for _, sum := range byKind {
		if sum.Count > 0 {
			sum.Avg = model.RoundTo(sum.Avg/float64(sum.Count), 3)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"spreads": filtered,
		"summary": map[string]any{
			"total":           len(filtered),
			"by_kind":         byKind,
			"usd_krw":         s.fx.Current().KRWPerUSD,
			"exchange_counts": exchangeCounts,
		},
		"timestamp": time.Now().UTC(),
	})
}

func floatParam(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// queryFloat reads a float query parameter by its documented camelCase
// name, falling back to the snake_case alias.
func queryFloat(q url.Values, name, alias string) float64 {
	if raw := q.Get(name); raw != "" {
		return floatParam(raw, 0)
	}
	return floatParam(q.Get(alias), 0)
}

// handleWebSocket streams each tick's opportunity list as one JSON
// message. The current list is sent immediately on connect.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	// Reader goroutine: drain client frames and surface disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeTimeout := s.cfg.SubscriberWriteTimeout()
	write := func(opps []model.Opportunity) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(map[string]any{
			"opportunities": opps,
			"count":         len(opps),
			"timestamp":     time.Now().UTC(),
		})
	}

	if opps, _ := s.hub.Latest(); opps != nil {
		if err := write(opps); err != nil {
			return
		}
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-done:
			return
		case opps, ok := <-sub.C:
			if !ok {
				return
			}
			if err := write(opps); err != nil {
				return
			}
		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
