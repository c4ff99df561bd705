package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshCounters(t *testing.T) {
	before := counterValue(t, "binance", "ok")
	RefreshTotal.WithLabelValues("binance", "ok").Inc()
	assert.Equal(t, before+1, counterValue(t, "binance", "ok"))

	RefreshDuration.WithLabelValues("binance").Observe(0.25)
}

func counterValue(t *testing.T, venue, result string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, RefreshTotal.WithLabelValues(venue, result).Write(&m))
	return m.GetCounter().GetValue()
}

func TestGauges(t *testing.T) {
	Opportunities.WithLabelValues("spot_cross").Set(4)
	var m dto.Metric
	require.NoError(t, Opportunities.WithLabelValues("spot_cross").Write(&m))
	assert.Equal(t, 4.0, m.GetGauge().GetValue())

	FxRate.WithLabelValues("dunamu").Set(1390.5)
	var fx dto.Metric
	require.NoError(t, FxRate.WithLabelValues("dunamu").Write(&fx))
	assert.Equal(t, 1390.5, fx.GetGauge().GetValue())

	Subscribers.Set(2)
	AlertsOpen.Set(1)
	DetectTicks.Inc()
}
