package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campushub/notifyhub/internal/actor"
	"github.com/campushub/notifyhub/internal/domain"
	"github.com/campushub/notifyhub/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type stubActor struct {
	sendFn     func(ctx context.Context, msg *domain.Message) (string, error)
	scheduleFn func(ctx context.Context, s *domain.Schedule) (string, error)
	deadlineFn func(ctx context.Context, d *actor.Deadline) ([]string, error)
	status     actor.Status
	evicted    int
}

func (s *stubActor) Send(ctx context.Context, msg *domain.Message) (string, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, msg)
	}
	return "msg-1", nil
}

func (s *stubActor) BulkSend(ctx context.Context, userIDs []string, template domain.Message) []actor.BulkResult {
	results := make([]actor.BulkResult, 0, len(userIDs))
	for _, userID := range userIDs {
		msg := template
		msg.UserID = userID
		id, err := s.Send(ctx, &msg)
		results = append(results, actor.BulkResult{UserID: userID, MessageID: id, Err: err})
	}
	return results
}

func (s *stubActor) Schedule(ctx context.Context, sched *domain.Schedule) (string, error) {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, sched)
	}
	return "sched-1", nil
}

func (s *stubActor) RecordDeadline(ctx context.Context, d *actor.Deadline) ([]string, error) {
	if s.deadlineFn != nil {
		return s.deadlineFn(ctx, d)
	}
	return []string{"sched-1"}, nil
}

func (s *stubActor) Status() actor.Status { return s.status }
func (s *stubActor) Cleanup() int         { return s.evicted }

type stubNotificationStore struct {
	listFn     func(ctx context.Context, userID string, limit, offset int) ([]domain.Message, int64, error)
	markReadFn func(ctx context.Context, id, userID string, at time.Time) error
}

func (s *stubNotificationStore) Save(context.Context, *domain.Message) error { return nil }

func (s *stubNotificationStore) GetByID(context.Context, string) (*domain.Message, error) {
	return nil, domain.ErrNotFound
}

func (s *stubNotificationStore) MarkDelivered(context.Context, string, time.Time) error { return nil }

func (s *stubNotificationStore) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, id, userID, at)
	}
	return nil
}

func (s *stubNotificationStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Message, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, limit, offset)
	}
	return nil, 0, nil
}

type allowAllLimiter struct{ denied bool }

func (l *allowAllLimiter) Allow(context.Context, string) (bool, error) { return !l.denied, nil }
func (l *allowAllLimiter) Wait(context.Context, string) error          { return nil }

func newTestApp(t *testing.T, a NotificationActor, notifications *stubNotificationStore, limiter *allowAllLimiter) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	if err := RegisterNotificationRoutes(app, a, notifications, limiter, zap.NewNop()); err != nil {
		t.Fatalf("RegisterNotificationRoutes returned error: %v", err)
	}
	return app
}

func performRequest(t *testing.T, app *fiber.App, method, target, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()
	return resp, payload
}

func staffHeaders() map[string]string {
	return map[string]string{HeaderAuthUser: "staff-1", HeaderAuthRole: actor.RoleStaff}
}

func studentHeaders(userID string) map[string]string {
	return map[string]string{HeaderAuthUser: userID, HeaderAuthRole: actor.RoleStudent}
}

func TestSendNotificationAccepted(t *testing.T) {
	t.Parallel()

	var captured *domain.Message
	a := &stubActor{sendFn: func(_ context.Context, msg *domain.Message) (string, error) {
		captured = msg
		msg.CreatedAt = time.Now()
		return "msg-42", nil
	}}
	app := newTestApp(t, a, &stubNotificationStore{}, &allowAllLimiter{})

	body := `{"userId":"user-1","type":"announcement","title":"Hello","body":"hi","channels":["live","store"]}`
	resp, payload := performRequest(t, app, http.MethodPost, "/v1/notifications", body, staffHeaders())
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", resp.StatusCode, payload)
	}

	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}
	if out["id"] != "msg-42" {
		t.Errorf("id = %v, want msg-42", out["id"])
	}
	if captured == nil || captured.Type != domain.TypeAnnouncement || captured.Priority != domain.PriorityNormal {
		t.Errorf("unexpected parsed message: %+v", captured)
	}
	if len(captured.Channels) != 2 {
		t.Errorf("channels = %v", captured.Channels)
	}
}

func TestSendNotificationRequiresAuth(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &stubActor{}, &stubNotificationStore{}, &allowAllLimiter{})
	body := `{"userId":"user-1","type":"announcement","title":"x","channels":["live"]}`

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/notifications", body, nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without principal", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/notifications", body, studentHeaders("user-9"))
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403 for student role", resp.StatusCode)
	}
}

func TestSendNotificationValidation(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &stubActor{}, &stubNotificationStore{}, &allowAllLimiter{})

	cases := []struct {
		name string
		body string
	}{
		{"unknown type", `{"userId":"u","type":"carrier-pigeon","title":"x","channels":["live"]}`},
		{"unknown channel", `{"userId":"u","type":"announcement","title":"x","channels":["smoke-signal"]}`},
		{"no channels", `{"userId":"u","type":"announcement","title":"x","channels":[]}`},
		{"bad priority", `{"userId":"u","type":"announcement","title":"x","priority":"asap","channels":["live"]}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp, _ := performRequest(t, app, http.MethodPost, "/v1/notifications", tc.body, staffHeaders())
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSendNotificationStoreFailureMapsTo503(t *testing.T) {
	t.Parallel()

	a := &stubActor{sendFn: func(context.Context, *domain.Message) (string, error) {
		return "msg-1", domain.ErrStoreUnavailable
	}}
	app := newTestApp(t, a, &stubNotificationStore{}, &allowAllLimiter{})

	body := `{"userId":"u","type":"announcement","title":"x","channels":["store"]}`
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/notifications", body, staffHeaders())
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestBulkSendReturnsPerUserResults(t *testing.T) {
	t.Parallel()

	a := &stubActor{sendFn: func(_ context.Context, msg *domain.Message) (string, error) {
		if msg.UserID == "user-b" {
			return "", domain.ErrStoreUnavailable
		}
		return "msg-" + msg.UserID, nil
	}}
	app := newTestApp(t, a, &stubNotificationStore{}, &allowAllLimiter{})

	body := `{"userIds":["user-a","user-b","user-c"],"template":{"type":"bulk_message","title":"Closure","body":"Closed.","channels":["live"]}}`
	resp, payload := performRequest(t, app, http.MethodPost, "/v1/notifications/bulk", body, staffHeaders())
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", resp.StatusCode, payload)
	}

	var out struct {
		Results []bulkResultResponse `json:"results"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	if out.Results[0].UserID != "user-a" || out.Results[1].UserID != "user-b" || out.Results[2].UserID != "user-c" {
		t.Errorf("results out of input order: %+v", out.Results)
	}
	if out.Results[1].Error == "" {
		t.Error("expected error recorded for user-b")
	}
	if out.Results[2].MessageID == "" {
		t.Error("failure for one user must not abort the rest")
	}
}

func TestBulkSendRequiresRecipients(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &stubActor{}, &stubNotificationStore{}, &allowAllLimiter{})
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/notifications/bulk",
		`{"userIds":[],"template":{"type":"bulk_message","title":"x","channels":["live"]}}`, staffHeaders())
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListNotificationsScopedToCaller(t *testing.T) {
	t.Parallel()

	st := &stubNotificationStore{listFn: func(_ context.Context, userID string, limit, offset int) ([]domain.Message, int64, error) {
		if userID != "user-1" {
			return nil, 0, errors.New("wrong user scoping")
		}
		return []domain.Message{{ID: "msg-1", UserID: userID, Type: domain.TypeApproval, Title: "Approved"}}, 1, nil
	}}
	app := newTestApp(t, &stubActor{}, st, &allowAllLimiter{})

	resp, payload := performRequest(t, app, http.MethodGet, "/v1/notifications?limit=10", "", studentHeaders("user-1"))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, payload)
	}

	var out listResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}
	if len(out.Data) != 1 || out.Meta.Total != 1 {
		t.Errorf("unexpected page: %+v", out)
	}
}

func TestMarkReadOwnershipMapping(t *testing.T) {
	t.Parallel()

	st := &stubNotificationStore{markReadFn: func(_ context.Context, id, userID string, _ time.Time) error {
		if id == "foreign" {
			return domain.ErrUnauthorized
		}
		if id == "missing" {
			return domain.ErrNotFound
		}
		return nil
	}}
	app := newTestApp(t, &stubActor{}, st, &allowAllLimiter{})

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/notifications/msg-1/read", "", studentHeaders("user-1"))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/notifications/foreign/read", "", studentHeaders("user-1"))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for foreign message", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/notifications/missing/read", "", studentHeaders("user-1"))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateScheduleWithRecurrence(t *testing.T) {
	t.Parallel()

	var captured *domain.Schedule
	a := &stubActor{scheduleFn: func(_ context.Context, s *domain.Schedule) (string, error) {
		captured = s
		return "sched-9", nil
	}}
	app := newTestApp(t, a, &stubNotificationStore{}, &allowAllLimiter{})

	body := `{"userId":"user-1","type":"deadline_reminder","title":"Essay","dueAt":"2027-01-31T09:00:00Z","channels":["live","store"],"recurrence":{"interval":"monthly","anchorDay":31}}`
	resp, payload := performRequest(t, app, http.MethodPost, "/v1/schedules", body, staffHeaders())
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, payload)
	}
	if captured == nil || captured.Recurrence == nil {
		t.Fatal("recurrence not parsed")
	}
	if captured.Recurrence.Interval != domain.IntervalMonthly || captured.Recurrence.AnchorDay != 31 {
		t.Errorf("unexpected recurrence: %+v", captured.Recurrence)
	}
}

func TestCreateSchedulePastDueRejected(t *testing.T) {
	t.Parallel()

	a := &stubActor{scheduleFn: func(context.Context, *domain.Schedule) (string, error) {
		return "", domain.ErrValidation
	}}
	app := newTestApp(t, a, &stubNotificationStore{}, &allowAllLimiter{})

	body := `{"userId":"user-1","type":"deadline_reminder","title":"Essay","dueAt":"2020-01-01T09:00:00Z","channels":["live"]}`
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/schedules", body, staffHeaders())
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecordDeadlineEndpoint(t *testing.T) {
	t.Parallel()

	a := &stubActor{deadlineFn: func(_ context.Context, d *actor.Deadline) ([]string, error) {
		if d.UserID != "user-1" {
			return nil, domain.ErrValidation
		}
		return []string{"s-1", "s-2"}, nil
	}}
	app := newTestApp(t, a, &stubNotificationStore{}, &allowAllLimiter{})

	body := `{"userId":"user-1","title":"Capstone","at":"2027-05-01T00:00:00Z"}`
	resp, payload := performRequest(t, app, http.MethodPost, "/v1/deadlines", body, staffHeaders())
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, payload)
	}

	var out struct {
		ScheduleIDs []string `json:"scheduleIds"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}
	if len(out.ScheduleIDs) != 2 {
		t.Errorf("expected 2 schedule ids, got %v", out.ScheduleIDs)
	}
}

func TestStatusAndCleanupEndpoints(t *testing.T) {
	t.Parallel()

	a := &stubActor{
		status:  actor.Status{Connections: 3, ConnectedUsers: 2, Scheduled: 5, QueueDepth: 7},
		evicted: 2,
	}
	app := newTestApp(t, a, &stubNotificationStore{}, &allowAllLimiter{})

	resp, payload := performRequest(t, app, http.MethodGet, "/v1/status", "", staffHeaders())
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var status actor.Status
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}
	if status != a.status {
		t.Errorf("status = %+v, want %+v", status, a.status)
	}

	resp, payload = performRequest(t, app, http.MethodPost, "/v1/cleanup", "", staffHeaders())
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("cleanup status = %d, want 200", resp.StatusCode)
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("json unmarshal error: %v", err)
	}
	if out["evicted"] != float64(2) {
		t.Errorf("evicted = %v, want 2", out["evicted"])
	}
}

func TestRateLimitedRequestRejected(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &stubActor{}, &stubNotificationStore{}, &allowAllLimiter{denied: true})
	resp, _ := performRequest(t, app, http.MethodGet, "/v1/notifications", "", studentHeaders("user-1"))
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}
