package pool

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCollectorReportsPoolStats(t *testing.T) {
	p, _ := newTestPool(t, core.PoolConfig{Min: 2, Max: 3})
	require.NoError(t, p.Warm(context.Background()))

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(h)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(p)))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 8)

	values := make(map[string]float64)
	for _, mf := range families {
		require.Len(t, mf.Metric, 1)
		requirePoolLabel(t, mf.Metric[0], "test")
		values[mf.GetName()] = metricValue(mf.Metric[0])
	}

	require.Equal(t, 3.0, values["leaporm_pool_max_connections"])
	require.Equal(t, 2.0, values["leaporm_pool_open_connections"])
	require.Equal(t, 1.0, values["leaporm_pool_idle_connections"])
	require.Equal(t, 1.0, values["leaporm_pool_leased_connections"])
	require.Equal(t, 0.0, values["leaporm_pool_dialing_connections"])
	require.Equal(t, 0.0, values["leaporm_pool_exhausted_total"])
}

func requirePoolLabel(t *testing.T, m *dto.Metric, pool string) {
	t.Helper()
	require.Len(t, m.Label, 1)
	require.Equal(t, "pool", m.Label[0].GetName())
	require.Equal(t, pool, m.Label[0].GetValue())
}

func metricValue(m *dto.Metric) float64 {
	if m.Gauge != nil {
		return m.Gauge.GetValue()
	}
	return m.Counter.GetValue()
}
