package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for vaspd.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	commandsTotal    *prometheus.CounterVec
	retransmitsTotal prometheus.Counter
	protocolErrors   *prometheus.CounterVec
	channelsOpened   prometheus.Counter

	commitLatency *prometheus.HistogramVec
	uptime        prometheus.GaugeFunc
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total commands sequenced, by terminal outcome",
			},
			[]string{"outcome"}, // committed, failed
		),

		retransmitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retransmits_total",
				Help:      "Total requests resent by the retransmit loop",
			},
		),

		protocolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_errors_total",
				Help:      "Non-terminal protocol-error replies, by code",
			},
			[]string{"code"}, // wait, missing, conflict, malformed, parsing
		),

		channelsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channels_opened_total",
				Help:      "Total pair channels opened since startup",
			},
		),

		commitLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_latency_milliseconds",
				Help:      "Time from request submission to terminal commit outcome",
				Buckets:   buckets,
			},
			[]string{"role"}, // client, server
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the vaspd process started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.commandsTotal,
		pm.retransmitsTotal,
		pm.protocolErrors,
		pm.channelsOpened,
		pm.commitLatency,
		pm.uptime,
	)

	promMetrics = pm
}

// RecordPrometheusCommit records a command's terminal commit outcome.
func RecordPrometheusCommit(success bool) {
	if promMetrics == nil {
		return
	}
	outcome := "committed"
	if !success {
		outcome = "failed"
	}
	promMetrics.commandsTotal.WithLabelValues(outcome).Inc()
}

// RecordPrometheusRetransmit records one resent request.
func RecordPrometheusRetransmit() {
	if promMetrics == nil {
		return
	}
	promMetrics.retransmitsTotal.Inc()
}

// RecordPrometheusProtocolError records a protocol-error reply by code.
func RecordPrometheusProtocolError(code string) {
	if promMetrics == nil {
		return
	}
	promMetrics.protocolErrors.WithLabelValues(code).Inc()
}

// RecordPrometheusChannelOpened records a newly created pair channel.
func RecordPrometheusChannelOpened() {
	if promMetrics == nil {
		return
	}
	promMetrics.channelsOpened.Inc()
}

// RecordCommitLatency records the time from submission to terminal outcome.
func RecordCommitLatency(role string, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.commitLatency.WithLabelValues(role).Observe(durationMs)
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
