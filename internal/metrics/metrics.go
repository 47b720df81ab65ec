package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Evaluation metrics
	SnapshotsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_snapshots_evaluated_total",
			Help: "Total number of snapshots evaluated",
		},
		[]string{"kind"}, // node, vm, container
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_events_total",
			Help: "Total number of threshold crossings",
		},
		[]string{"resource", "severity"},
	)

	// Dispatch metrics
	NotificationsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_notifications_shown_total",
			Help: "Total number of notifications delivered to a container",
		},
		[]string{"container", "severity"},
	)

	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_notifications_dropped_total",
			Help: "Total number of events dropped at dispatch",
		},
		[]string{"reason"}, // disabled, no_container, sink_error
	)

	ActiveNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hyperwatch_active_notifications",
			Help: "Notifications shown and not yet dismissed",
		},
	)

	SoundAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_sound_attempts_total",
			Help: "Total number of audio cue attempts",
		},
		[]string{"status"}, // success, failed
	)

	NotifierSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_notifier_send_total",
			Help: "Total number of notifier deliveries",
		},
		[]string{"notifier", "status"},
	)

	// Collector metrics
	CollectorPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperwatch_collector_polls_total",
			Help: "Total number of telemetry polls",
		},
		[]string{"source", "status"},
	)

	CollectorPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperwatch_collector_poll_duration_seconds",
			Help:    "Time taken to collect one telemetry batch",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hyperwatch_websocket_clients",
			Help: "Connected notification stream clients",
		},
	)
)
