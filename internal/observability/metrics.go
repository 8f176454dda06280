package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	eventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlprobe",
			Subsystem: "wayland",
			Name:      "events_total",
			Help:      "Events dispatched to object handlers.",
		},
		[]string{"event"},
	)
	consistencyViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlprobe",
			Subsystem: "wayland",
			Name:      "consistency_violations_total",
			Help:      "Server events that contradicted the tracked registry state.",
		},
		[]string{"kind"},
	)
	roundtripDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wlprobe",
			Subsystem: "wayland",
			Name:      "roundtrip_duration_seconds",
			Help:      "Roundtrip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"success"},
	)
	globalsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wlprobe",
			Subsystem: "wayland",
			Name:      "globals",
			Help:      "Globals currently advertised by the compositor.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlprobe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wlprobe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			eventsDispatched,
			consistencyViolations,
			roundtripDuration,
			globalsLive,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordEvent(event string) {
	RegisterMetrics()
	eventsDispatched.WithLabelValues(event).Inc()
}

func RecordConsistencyViolation(kind string) {
	RegisterMetrics()
	consistencyViolations.WithLabelValues(kind).Inc()
}

func RecordRoundtrip(duration time.Duration, success bool) {
	RegisterMetrics()
	roundtripDuration.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

func SetGlobals(n int) {
	RegisterMetrics()
	globalsLive.Set(float64(n))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordHTTPSession counts a long-lived request without observing latency.
func RecordHTTPSession(method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
