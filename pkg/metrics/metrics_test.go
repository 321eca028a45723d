package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, vec.With(labels).Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordProbeIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordProbe("disk.usage", "success", 50*time.Millisecond)
	m.RecordProbe("disk.usage", "error", 10*time.Millisecond)

	assertCounter := func(status string, want float64) {
		got := counterValue(t, m.ProbesTotal, prometheus.Labels{"probe": "disk.usage", "status": status})
		require.Equal(t, want, got)
	}
	assertCounter("success", 1)
	assertCounter("error", 1)
}

func TestSetAgentCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetAgentCounts(3, 1)

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawOnline, sawDegraded bool
	for _, f := range families {
		switch f.GetName() {
		case "sonde_hub_agents_online":
			sawOnline = true
			require.Equal(t, float64(3), f.GetMetric()[0].GetGauge().GetValue())
		case "sonde_hub_agents_degraded":
			sawDegraded = true
			require.Equal(t, float64(1), f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	require.True(t, sawOnline)
	require.True(t, sawDegraded)
}
