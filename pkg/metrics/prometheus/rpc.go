package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/dittorpc/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// rpcMetrics is the Prometheus implementation of metrics.RPCMetrics.
type rpcMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	dispatchTotal          *prometheus.CounterVec
	dispatchDuration       prometheus.Histogram
	bytesTransferred       *prometheus.CounterVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      *prometheus.CounterVec
	connectionsForceClosed prometheus.Counter
	throttled              prometheus.Counter
	panicsTotal            *prometheus.CounterVec
}

var (
	globalRPCMetrics     *rpcMetrics
	globalRPCMetricsOnce sync.Once
)

// NewRPCMetrics returns the Prometheus-backed RPCMetrics registered on the
// global registry. The collectors are registered on the first call; later
// calls return the same instance, since the registry rejects duplicate
// metric names.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewRPCMetrics() metrics.RPCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopRPCMetrics()
	}
	globalRPCMetricsOnce.Do(func() {
		globalRPCMetrics = newRPCMetrics(metrics.GetRegistry())
	})
	return globalRPCMetrics
}

func newRPCMetrics(reg prometheus.Registerer) *rpcMetrics {
	return &rpcMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittorpc_http_requests_total",
				Help: "Total number of HTTP exchanges by request kind and status code",
			},
			[]string{"kind", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittorpc_http_request_duration_milliseconds",
				Help: "Duration of HTTP exchanges in milliseconds, accept to release",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"kind"},
		),
		dispatchTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittorpc_dispatch_total",
				Help: "Total number of dispatcher invocations by whether a response was produced",
			},
			[]string{"answered"},
		),
		dispatchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittorpc_dispatch_duration_milliseconds",
				Help:    "Duration of dispatcher invocations in milliseconds",
				Buckets: []float64{0.1, 1, 10, 100, 1000},
			},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittorpc_body_bytes_total",
				Help: "Total request and response body bytes",
			},
			[]string{"direction"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittorpc_active_connections",
				Help: "Current number of active connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittorpc_connections_accepted_total",
				Help: "Total number of connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittorpc_connections_closed_total",
				Help: "Total number of connections closed by outcome",
			},
			[]string{"outcome"},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittorpc_connections_force_closed_total",
				Help: "Total number of connections force-closed during shutdown timeout",
			},
		),
		throttled: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittorpc_accept_throttled_total",
				Help: "Total number of accepts delayed by the connection rate limiter",
			},
		),
		panicsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittorpc_panics_total",
				Help: "Total number of connection crashes by whether a panic handler ran",
			},
			[]string{"handled"},
		),
	}
}

func (m *rpcMetrics) RecordRequest(kind string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *rpcMetrics) RecordDispatch(duration time.Duration, answered bool) {
	m.dispatchTotal.WithLabelValues(strconv.FormatBool(answered)).Inc()
	m.dispatchDuration.Observe(duration.Seconds() * 1000)
}

func (m *rpcMetrics) RecordBytesTransferred(direction string, bytes int64) {
	if bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *rpcMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *rpcMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *rpcMetrics) RecordConnectionClosed(outcome string) {
	m.connectionsClosed.WithLabelValues(outcome).Inc()
}

func (m *rpcMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *rpcMetrics) RecordThrottled() {
	m.throttled.Inc()
}

func (m *rpcMetrics) RecordPanic(handled bool) {
	m.panicsTotal.WithLabelValues(strconv.FormatBool(handled)).Inc()
}
