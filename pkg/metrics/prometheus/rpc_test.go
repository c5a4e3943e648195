package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittorpc/pkg/metrics"
)

func TestRPCMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newRPCMetrics(reg)

	m.RecordConnectionAccepted()
	m.RecordConnectionAccepted()
	m.RecordConnectionClosed(metrics.OutcomeCompleted)
	m.RecordConnectionClosed(metrics.OutcomePanicked)
	m.RecordPanic(true)
	m.RecordRequest("submission", 200, 3*time.Millisecond)
	m.RecordRequest("rejected", 405, time.Millisecond)
	m.RecordDispatch(time.Millisecond, true)
	m.RecordBytesTransferred(metrics.DirectionIn, 46)
	m.RecordBytesTransferred(metrics.DirectionOut, 0)
	m.SetActiveConnections(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed.WithLabelValues(metrics.OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed.WithLabelValues(metrics.OutcomePanicked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panicsTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("submission", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("rejected", "405")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("true")))
	assert.Equal(t, 46.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues(metrics.DirectionIn)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeConnections))

	// Zero-byte transfers do not create a series.
	count, err := testutil.GatherAndCount(reg, "dittorpc_body_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRPCMetricsWithoutRegistryIsNoop(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("global registry already initialized")
	}

	m := NewRPCMetrics()
	assert.NotPanics(t, func() {
		m.RecordConnectionAccepted()
		m.RecordPanic(false)
	})
	_, ok := m.(*rpcMetrics)
	assert.False(t, ok)
}

func TestNewRPCMetricsIsRegisteredOnce(t *testing.T) {
	metrics.InitRegistry()

	var first, second metrics.RPCMetrics
	require.NotPanics(t, func() {
		first = NewRPCMetrics()
		second = NewRPCMetrics()
	})
	assert.Same(t, first.(*rpcMetrics), second.(*rpcMetrics))

	second.RecordConnectionAccepted()
	count, err := testutil.GatherAndCount(metrics.GetRegistry(), "dittorpc_connections_accepted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
