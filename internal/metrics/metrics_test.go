package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.GatewayRequest("translate")
	m.GatewayRequest("translate")
	m.GatewayFallback("translate")
	m.MessageAppended("self")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gatewayRequests.WithLabelValues("translate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayFallbacks.WithLabelValues("translate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesAppended.WithLabelValues("self")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.GatewayRequest("caption")
		m.GatewayFallback("caption")
		m.MessageAppended("participant")
	})
}
