package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	routedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skelstream",
			Subsystem: "router",
			Name:      "messages_total",
			Help:      "Inbound messages by transport kind and routed action.",
		},
		[]string{"kind", "action"},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skelstream",
			Subsystem: "handshake",
			Name:      "total",
			Help:      "Handshakes by result (ok or error kind).",
		},
		[]string{"result"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skelstream",
			Subsystem: "frame",
			Name:      "total",
			Help:      "Pose frames by result (ok or error kind).",
		},
		[]string{"result"},
	)
	framePolicy = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skelstream",
			Subsystem: "frame",
			Name:      "count_mismatch_total",
			Help:      "Per-skeleton frame applications whose matrix count differed from the bone count.",
		},
		[]string{"policy"},
	)
	applyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "skelstream",
			Subsystem: "frame",
			Name:      "apply_duration_seconds",
			Help:      "Time to decode and apply one frame to all skeletons.",
			Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3},
		},
	)
	skeletons = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "skelstream",
			Subsystem: "router",
			Name:      "skeletons",
			Help:      "Skeleton instances currently registered.",
		},
	)
	sessionConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skelstream",
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Transport connect attempts by success.",
		},
		[]string{"success"},
	)
	simFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "skelstream",
			Subsystem: "sim",
			Name:      "frames_sent_total",
			Help:      "Pose frames written by the simulator.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skelstream",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skelstream",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			routedMessages,
			handshakes,
			frames,
			framePolicy,
			applyDuration,
			skeletons,
			sessionConnects,
			simFrames,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordMessage(kind, action string) {
	RegisterMetrics()
	routedMessages.WithLabelValues(kind, action).Inc()
}

func RecordHandshake(result string) {
	RegisterMetrics()
	handshakes.WithLabelValues(result).Inc()
}

func RecordFrame(result string, duration time.Duration) {
	RegisterMetrics()
	frames.WithLabelValues(result).Inc()
	if result == "ok" {
		applyDuration.Observe(duration.Seconds())
	}
}

func RecordCountMismatch(policy string) {
	RegisterMetrics()
	framePolicy.WithLabelValues(policy).Inc()
}

func SetSkeletons(n int) {
	RegisterMetrics()
	skeletons.Set(float64(n))
}

func RecordConnect(success bool) {
	RegisterMetrics()
	sessionConnects.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordSimFrame() {
	RegisterMetrics()
	simFrames.Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
