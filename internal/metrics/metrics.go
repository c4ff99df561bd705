// Package metrics exposes the Prometheus instrumentation shared across
// the process. Collectors are registered once at init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal counts connector refresh attempts by venue and result.
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_connector_refresh_total",
		Help: "Connector refresh attempts by venue and result.",
	}, []string{"venue", "result"})

	// RefreshDuration observes connector refresh latency by venue.
	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arb_connector_refresh_duration_seconds",
		Help:    "Connector refresh latency by venue.",
		Buckets: prometheus.DefBuckets,
	}, []string{"venue"})

	// Opportunities gauges the opportunity count per kind on the latest
	// tick.
	Opportunities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_opportunities",
		Help: "Opportunities detected on the latest tick by kind.",
	}, []string{"kind"})

	// DetectTicks counts completed detection cycles.
	DetectTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_detect_ticks_total",
		Help: "Completed detection cycles.",
	})

	// Subscribers gauges the connected WebSocket subscriber count.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_ws_subscribers",
		Help: "Connected WebSocket subscribers.",
	})

	// FxRate gauges the current KRW per USD rate.
	FxRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_fx_krw_per_usd",
		Help: "Current KRW per USD rate by source.",
	}, []string{"source"})

	// AlertsOpen gauges the number of open alerts.
	AlertsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_alerts_open",
		Help: "Currently open opportunity alerts.",
	})
)
