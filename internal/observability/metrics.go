package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores the Prometheus collectors for the hub's HTTP surface,
// dispatch path, and scheduler cycles.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	deliveredTotal      *prometheus.CounterVec
	deliveryFailedTotal *prometheus.CounterVec
	dispatchDuration    *prometheus.HistogramVec
	queuedTotal         prometheus.Counter
	queueDroppedTotal   *prometheus.CounterVec

	liveConnections  prometheus.Gauge
	connectedUsers   prometheus.Gauge
	queueDepth       prometheus.Gauge
	scheduledEntries prometheus.Gauge

	cycleFailuresTotal  *prometheus.CounterVec
	outboundSentTotal   *prometheus.CounterVec
	outboundFailedTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notifyhub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "notifications_delivered_total",
				Help:      "Total number of notifications delivered per channel.",
			},
			[]string{"channel"},
		),
		deliveryFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "notifications_failed_total",
				Help:      "Total number of channel delivery failures by channel and reason.",
			},
			[]string{"channel", "reason"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notifyhub",
				Name:      "dispatch_duration_seconds",
				Help:      "Per-channel dispatch duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"channel"},
		),
		queuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "delivery_queue_enqueued_total",
				Help:      "Total number of messages parked in the delivery queue.",
			},
		),
		queueDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "delivery_queue_dropped_total",
				Help:      "Total number of queued messages dropped by reason (cap, age).",
			},
			[]string{"reason"},
		),
		liveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notifyhub",
				Name:      "live_connections",
				Help:      "Current number of registered live connections.",
			},
		),
		connectedUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notifyhub",
				Name:      "connected_users",
				Help:      "Current number of distinct users with at least one connection.",
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notifyhub",
				Name:      "delivery_queue_depth",
				Help:      "Current number of messages waiting in the delivery queue.",
			},
		),
		scheduledEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notifyhub",
				Name:      "scheduled_entries",
				Help:      "Current number of scheduled notification entries.",
			},
		),
		cycleFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "cycle_failures_total",
				Help:      "Total number of scheduler cycle failures by cycle name.",
			},
			[]string{"cycle"},
		),
		outboundSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "outbound_sent_total",
				Help:      "Total number of outbound adapter sends by kind (email, sms).",
			},
			[]string{"kind"},
		),
		outboundFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notifyhub",
				Name:      "outbound_failed_total",
				Help:      "Total number of outbound adapter failures by kind and reason.",
			},
			[]string{"kind", "reason"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveredTotal,
		m.deliveryFailedTotal,
		m.dispatchDuration,
		m.queuedTotal,
		m.queueDroppedTotal,
		m.liveConnections,
		m.connectedUsers,
		m.queueDepth,
		m.scheduledEntries,
		m.cycleFailuresTotal,
		m.outboundSentTotal,
		m.outboundFailedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDelivered(channel string) {
	if m == nil {
		return
	}
	m.deliveredTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncDeliveryFailed(channel, reason string) {
	if m == nil {
		return
	}
	m.deliveryFailedTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveDispatchDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(channel)).Observe(seconds)
}

func (m *Metrics) IncQueued() {
	if m == nil {
		return
	}
	m.queuedTotal.Inc()
}

func (m *Metrics) AddQueueDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.queueDroppedTotal.WithLabelValues(normalizeLabel(reason)).Add(float64(n))
}

func (m *Metrics) SetActorGauges(connections, users, queueDepth, scheduled int) {
	if m == nil {
		return
	}
	m.liveConnections.Set(float64(connections))
	m.connectedUsers.Set(float64(users))
	m.queueDepth.Set(float64(queueDepth))
	m.scheduledEntries.Set(float64(scheduled))
}

func (m *Metrics) IncCycleFailure(cycle string) {
	if m == nil {
		return
	}
	m.cycleFailuresTotal.WithLabelValues(normalizeLabel(cycle)).Inc()
}

func (m *Metrics) IncOutboundSent(kind string) {
	if m == nil {
		return
	}
	m.outboundSentTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) IncOutboundFailed(kind, reason string) {
	if m == nil {
		return
	}
	m.outboundFailedTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}
	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}
	if c == nil {
		return fiber.StatusOK
	}
	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(v string) string {
	normalized := strings.ToLower(strings.TrimSpace(v))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
