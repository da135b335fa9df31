package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncDelivered("LIVE")
	metrics.IncDeliveryFailed("live", "transport_closed")
	metrics.ObserveDispatchDuration("live", 3*time.Millisecond)
	metrics.IncQueued()
	metrics.AddQueueDropped("cap", 2)
	metrics.SetActorGauges(4, 3, 7, 2)
	metrics.IncCycleFailure("checkpoint")
	metrics.IncOutboundSent("email")
	metrics.IncOutboundFailed("sms", "permanent_error")

	if got := testutil.ToFloat64(metrics.deliveredTotal.WithLabelValues("live")); got != 1 {
		t.Fatalf("notifications_delivered_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveryFailedTotal.WithLabelValues("live", "transport_closed")); got != 1 {
		t.Fatalf("notifications_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.queueDroppedTotal.WithLabelValues("cap")); got != 2 {
		t.Fatalf("delivery_queue_dropped_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.liveConnections); got != 4 {
		t.Fatalf("live_connections = %v, want 4", got)
	}
	if got := testutil.ToFloat64(metrics.connectedUsers); got != 3 {
		t.Fatalf("connected_users = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.queueDepth); got != 7 {
		t.Fatalf("delivery_queue_depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(metrics.cycleFailuresTotal.WithLabelValues("checkpoint")); got != 1 {
		t.Fatalf("cycle_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.outboundSentTotal.WithLabelValues("email")); got != 1 {
		t.Fatalf("outbound_sent_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.IncDelivered("live")
	m.IncQueued()
	m.SetActorGauges(1, 1, 1, 1)
	if m.Handler() == nil {
		t.Fatal("Handler() should fall back to the default promhttp handler")
	}
}
