// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Event channel metrics
	EventsRouted      *prometheus.CounterVec
	UnknownEvents     prometheus.Counter
	MalformedFrames   prometheus.Counter
	Reconnects        prometheus.Counter
	ConnectionStatus  *prometheus.GaugeVec
	EventHandleTiming *prometheus.HistogramVec

	// Orchestration metrics
	NotificationsPushed *prometheus.CounterVec
	PopupTransitions    *prometheus.CounterVec
	AutoOpenOutcomes    *prometheus.CounterVec
	DedupRejected       prometheus.Counter
	TokensDetected      *prometheus.CounterVec

	// Backend API metrics
	APICallLatency *prometheus.HistogramVec
	APICallErrors  *prometheus.CounterVec

	// Settings metrics
	SettingsSaves *prometheus.CounterVec
	CacheErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "snipe_console"
	}

	return &Metrics{
		EventsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "events_routed_total",
			Help:      "Total number of events dispatched by kind",
		}, []string{"kind"}),
		UnknownEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "unknown_events_total",
			Help:      "Total number of events with an unrecognized kind",
		}),
		MalformedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "malformed_frames_total",
			Help:      "Total number of frames that were not valid JSON events",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		}),
		ConnectionStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_status",
			Help:      "1 for the current connection status, 0 otherwise",
		}, []string{"status"}),
		EventHandleTiming: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "event_handle_seconds",
			Help:      "Synchronous handler duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"kind"}),

		NotificationsPushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of notifications pushed by type",
		}, []string{"type"}),
		PopupTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "popup",
			Name:      "transitions_total",
			Help:      "Total number of popup state transitions by target state",
		}, []string{"state"}),
		AutoOpenOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "popup",
			Name:      "auto_open_total",
			Help:      "Total number of open sequences by path and outcome",
		}, []string{"path", "outcome"}),
		DedupRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "popup",
			Name:      "dedup_rejected_total",
			Help:      "Total number of primary detections dropped by the dedup guard",
		}),
		TokensDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "tokens_detected_total",
			Help:      "Total number of detected tokens by match type",
		}, []string{"match_type"}),

		APICallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "call_latency_seconds",
			Help:      "Backend API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		APICallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "call_errors_total",
			Help:      "Total number of failed backend API calls",
		}, []string{"op"}),

		SettingsSaves: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "saves_total",
			Help:      "Total number of settings saves by domain and status",
		}, []string{"domain", "status"}),
		CacheErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "cache_errors_total",
			Help:      "Total number of durable cache failures by operation",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventRouted increments the routed events counter.
func RecordEventRouted(kind string, seconds float64) {
	DefaultMetrics.EventsRouted.WithLabelValues(kind).Inc()
	DefaultMetrics.EventHandleTiming.WithLabelValues(kind).Observe(seconds)
}

// RecordUnknownEvent increments the unknown events counter.
func RecordUnknownEvent() {
	DefaultMetrics.UnknownEvents.Inc()
}

// RecordMalformedFrame increments the malformed frames counter.
func RecordMalformedFrame() {
	DefaultMetrics.MalformedFrames.Inc()
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// SetConnectionStatus flips the status gauge to the given value.
func SetConnectionStatus(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		DefaultMetrics.ConnectionStatus.WithLabelValues(s).Set(v)
	}
}

// RecordNotification increments the notifications counter.
func RecordNotification(notificationType string) {
	DefaultMetrics.NotificationsPushed.WithLabelValues(notificationType).Inc()
}

// RecordPopupTransition increments the popup transitions counter.
func RecordPopupTransition(state string) {
	DefaultMetrics.PopupTransitions.WithLabelValues(state).Inc()
}

// RecordAutoOpen records the outcome of an open sequence.
func RecordAutoOpen(path, outcome string) {
	DefaultMetrics.AutoOpenOutcomes.WithLabelValues(path, outcome).Inc()
}

// RecordDedupRejected increments the dedup rejection counter.
func RecordDedupRejected() {
	DefaultMetrics.DedupRejected.Inc()
}

// RecordTokenDetected increments the detected tokens counter.
func RecordTokenDetected(matchType string) {
	DefaultMetrics.TokensDetected.WithLabelValues(matchType).Inc()
}

// RecordAPICall records backend API call metrics.
func RecordAPICall(op string, seconds float64, err error) {
	DefaultMetrics.APICallLatency.WithLabelValues(op).Observe(seconds)
	if err != nil {
		DefaultMetrics.APICallErrors.WithLabelValues(op).Inc()
	}
}

// RecordSettingsSave records a settings save attempt.
func RecordSettingsSave(domain, status string) {
	DefaultMetrics.SettingsSaves.WithLabelValues(domain, status).Inc()
}

// RecordCacheError records a durable cache failure.
func RecordCacheError(operation string) {
	DefaultMetrics.CacheErrors.WithLabelValues(operation).Inc()
}
