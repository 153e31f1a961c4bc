package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	m.Intents.WithLabelValues("add_subscription").Inc()
	m.Intents.WithLabelValues("add_subscription").Inc()
	m.ObserveError("snapshot")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Intents.WithLabelValues("add_subscription")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("snapshot")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveError("x") })
}
