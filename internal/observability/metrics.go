package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	httpErrorsTotal          *prometheus.CounterVec
	overrideTransitionsTotal *prometheus.CounterVec
	channelClientsActive     prometheus.Gauge
	channelBroadcastsTotal   prometheus.Counter
	sliderSubmissionsTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the coordination
// server.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maquette_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maquette_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maquette_http_errors_total",
			Help: "Total number of error responses returned.",
		}, []string{"method", "route", "status"})

		overrideTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maquette_override_transitions_total",
			Help: "Accepted override state transitions by action.",
		}, []string{"action"})

		channelClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maquette_channel_clients_active",
			Help: "Display channel connections currently registered.",
		})

		channelBroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maquette_channel_broadcasts_total",
			Help: "Override updates fanned out to the display channel.",
		})

		sliderSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maquette_slider_submissions_total",
			Help: "Slider submissions by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			overrideTransitionsTotal,
			channelClientsActive,
			channelBroadcastsTotal,
			sliderSubmissionsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// OverrideTransitions exposes the state transition counter. Actions are
// "update" and "clear".
func OverrideTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return overrideTransitionsTotal
}

// ChannelClients exposes the active connection gauge.
func ChannelClients() prometheus.Gauge {
	RegisterMetrics()
	return channelClientsActive
}

// ChannelBroadcasts exposes the fan-out counter.
func ChannelBroadcasts() prometheus.Counter {
	RegisterMetrics()
	return channelBroadcastsTotal
}

// SliderSubmissions exposes the submission outcome counter. Outcomes are
// "accepted", "rejected", "duplicate" and "failed".
func SliderSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return sliderSubmissionsTotal
}
