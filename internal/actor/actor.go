// Package actor is the orchestrator owning all live notification state:
// the connection registry, the offline delivery queue, and the scheduled
// entry map. Inbound requests, socket messages, and the periodic cycles
// all go through one Actor instance; mutations to the schedule map are
// serialized by its mutex, and the registry and queue carry their own.
package actor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/campushub/notifyhub/internal/domain"
	"github.com/campushub/notifyhub/internal/observability"
	"github.com/campushub/notifyhub/internal/outbound"
	"github.com/campushub/notifyhub/internal/provider"
	"github.com/campushub/notifyhub/internal/queue"
	"github.com/campushub/notifyhub/internal/registry"
	"github.com/campushub/notifyhub/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RoleStudent = "student"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"

	defaultIdleThreshold  = 5 * time.Minute
	externalPublishWindow = 10 * time.Second
)

// Principal is the authenticated caller, produced by the routing/auth
// layer upstream of the actor.
type Principal struct {
	UserID string
	Role   string
}

// CanActFor reports whether the principal may act on behalf of userID.
func (p Principal) CanActFor(userID string) bool {
	if p.UserID != "" && p.UserID == userID {
		return true
	}
	return p.Role == RoleAdmin || p.Role == RoleStaff
}

// Snapshotter checkpoints and reloads the actor's recoverable state.
type Snapshotter interface {
	Snapshot(ctx context.Context, scheduled []*domain.Schedule, queued []*domain.Message) error
	Load(ctx context.Context) ([]*domain.Schedule, []*domain.Message, error)
}

// Status is the read-only view returned by the status endpoint.
type Status struct {
	Connections    int `json:"connections"`
	ConnectedUsers int `json:"connectedUsers"`
	Scheduled      int `json:"scheduled"`
	QueueDepth     int `json:"queueDepth"`
}

// BulkResult is the per-recipient outcome of a bulk send.
type BulkResult struct {
	UserID    string
	MessageID string
	Err       error
}

type Actor struct {
	registry      *registry.Registry
	queue         *queue.DeliveryQueue
	notifications store.NotificationStore
	preferences   store.PreferenceStore
	publisher     outbound.Publisher
	snapshots     Snapshotter
	logger        *zap.Logger
	metrics       *observability.Metrics
	idleThreshold time.Duration
	now           func() time.Time

	mu        sync.Mutex
	schedules map[string]*domain.Schedule
}

func New(
	reg *registry.Registry,
	dq *queue.DeliveryQueue,
	notifications store.NotificationStore,
	preferences store.PreferenceStore,
	publisher outbound.Publisher,
	snapshots Snapshotter,
	idleThreshold time.Duration,
	logger *zap.Logger,
) (*Actor, error) {
	if reg == nil {
		return nil, fmt.Errorf("connection registry is required")
	}
	if dq == nil {
		return nil, fmt.Errorf("delivery queue is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	if idleThreshold <= 0 {
		idleThreshold = defaultIdleThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Actor{
		registry:      reg,
		queue:         dq,
		notifications: notifications,
		preferences:   preferences,
		publisher:     publisher,
		snapshots:     snapshots,
		logger:        logger,
		idleThreshold: idleThreshold,
		now:           time.Now,
		schedules:     make(map[string]*domain.Schedule),
	}, nil
}

func (a *Actor) SetMetrics(metrics *observability.Metrics) {
	if a == nil {
		return
	}
	a.metrics = metrics
}

// Connect registers a live connection for userID and immediately flushes
// any queued messages addressed to them.
func (a *Actor) Connect(ctx context.Context, userID string, principal Principal, transport registry.Transport, agent, origin string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if principal.UserID != userID {
		return "", fmt.Errorf("%w: principal %q cannot connect as %q", domain.ErrUnauthorized, principal.UserID, userID)
	}
	if transport == nil {
		return "", fmt.Errorf("%w: transport is required", domain.ErrValidation)
	}

	connID := a.registry.Register(userID, transport, agent, origin, a.now())
	a.logger.Info("connection registered",
		zap.String("connectionId", connID),
		zap.String("userId", userID),
	)

	a.flushUser(ctx, userID)
	a.refreshGauges()
	return connID, nil
}

// Disconnect removes a connection. Safe to call twice.
func (a *Actor) Disconnect(connID string) {
	a.registry.Unregister(connID)
	a.refreshGauges()
}

// Send dispatches a message over its requested channels. The durable-store
// write is synchronous and its failure is returned to the caller; live
// delivery falls back to the queue when the recipient is offline; the
// external handoff is fire-and-forget.
func (a *Actor) Send(ctx context.Context, msg *domain.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	msg.ID = newID()
	msg.CreatedAt = a.now().UTC()

	var storeErr error
	if msg.HasChannel(domain.ChannelStore) {
		// Without a live channel the durable write is the delivery, so
		// the row carries the stamp from the start.
		if !msg.HasChannel(domain.ChannelLive) {
			msg.MarkDelivered(msg.CreatedAt)
		}
		if err := a.notifications.Save(ctx, msg); err != nil {
			storeErr = err
			a.logger.Error("durable store write failed",
				zap.String("messageId", msg.ID),
				zap.Error(err),
			)
			if a.metrics != nil {
				a.metrics.IncDeliveryFailed("store", "write_failed")
			}
		} else if a.metrics != nil {
			a.metrics.IncDelivered("store")
		}
	}

	if msg.HasChannel(domain.ChannelLive) {
		a.dispatchLive(ctx, msg)
	}

	if msg.HasChannel(domain.ChannelExternal) {
		a.handoffExternal(*msg)
	}

	a.refreshGauges()
	return msg.ID, storeErr
}

// BulkSend fans the template out as one independent send per recipient.
// Results come back in input order; one failure never aborts the batch.
func (a *Actor) BulkSend(ctx context.Context, userIDs []string, template domain.Message) []BulkResult {
	results := make([]BulkResult, 0, len(userIDs))
	for _, userID := range userIDs {
		msg := template
		msg.UserID = userID
		msg.Payload = clonePayload(template.Payload)
		msg.Channels = append([]domain.Channel(nil), template.Channels...)

		id, err := a.Send(ctx, &msg)
		results = append(results, BulkResult{UserID: userID, MessageID: id, Err: err})
	}
	return results
}

// Schedule validates and stores an entry for a future scheduler cycle to
// promote. Nothing is dispatched now.
func (a *Actor) Schedule(_ context.Context, s *domain.Schedule) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	now := a.now()
	if !s.DueAt.After(now) {
		return "", fmt.Errorf("%w: due instant %s is not in the future", domain.ErrValidation, s.DueAt.Format(time.RFC3339))
	}

	s.ID = newID()
	s.CreatedAt = now.UTC()

	// A monthly policy without an explicit anchor pins to the original
	// day-of-month, so a clamped hop can restore it later.
	if s.Recurrence != nil && s.Recurrence.Interval == domain.IntervalMonthly && s.Recurrence.AnchorDay == 0 {
		s.Recurrence.AnchorDay = s.DueAt.Day()
	}

	a.mu.Lock()
	a.schedules[s.ID] = s
	a.mu.Unlock()

	a.logger.Info("schedule recorded",
		zap.String("scheduleId", s.ID),
		zap.String("userId", s.UserID),
		zap.Time("dueAt", s.DueAt),
	)

	a.refreshGauges()
	return s.ID, nil
}

// Status reports current counts. Read-only.
func (a *Actor) Status() Status {
	conns, users := a.registry.Counts()

	a.mu.Lock()
	scheduled := len(a.schedules)
	a.mu.Unlock()

	return Status{
		Connections:    conns,
		ConnectedUsers: users,
		Scheduled:      scheduled,
		QueueDepth:     a.queue.Depth(),
	}
}

// Cleanup forces an out-of-cycle idle-connection eviction and returns how
// many connections went.
func (a *Actor) Cleanup() int {
	evicted := a.registry.EvictIdle(a.now(), a.idleThreshold)
	for _, conn := range evicted {
		if conn.Transport != nil {
			_ = conn.Transport.Close()
		}
		a.logger.Info("connection evicted",
			zap.String("connectionId", conn.ID),
			zap.String("userId", conn.UserID),
		)
	}
	a.refreshGauges()
	return len(evicted)
}

// dispatchLive attempts immediate delivery and queues on miss.
func (a *Actor) dispatchLive(ctx context.Context, msg *domain.Message) {
	start := a.now()
	delivered := a.deliverLive(msg)
	if a.metrics != nil {
		a.metrics.ObserveDispatchDuration("live", a.now().Sub(start))
	}

	if delivered {
		a.markDelivered(ctx, msg)
		return
	}

	dropped := a.queue.Enqueue(msg, a.now())
	if a.metrics != nil {
		a.metrics.IncQueued()
		if dropped > 0 {
			a.metrics.AddQueueDropped("capacity", dropped)
		}
	}
}

// deliverLive writes the message to every live connection of its recipient
// that wants the type. Broken transports are removed on the spot. Returns
// true when at least one connection accepted the write.
func (a *Actor) deliverLive(msg *domain.Message) bool {
	conns := a.registry.ConnectionsFor(msg.UserID)
	if len(conns) == 0 {
		return false
	}

	event := socketEvent{Type: eventNotification, Data: msg}
	delivered := false
	for _, conn := range conns {
		if !conn.WantsType(msg.Type.String()) {
			continue
		}
		if err := conn.Transport.WriteJSON(event); err != nil {
			a.logger.Warn("live delivery failed, removing connection",
				zap.String("connectionId", conn.ID),
				zap.String("userId", conn.UserID),
				zap.Error(err),
			)
			a.registry.Unregister(conn.ID)
			_ = conn.Transport.Close()
			if a.metrics != nil {
				a.metrics.IncDeliveryFailed("live", "write_failed")
			}
			continue
		}
		delivered = true
	}

	if delivered && a.metrics != nil {
		a.metrics.IncDelivered("live")
	}
	return delivered
}

// markDelivered stamps the in-memory message and mirrors the stamp to the
// durable store when the message was written there. Store mirroring is
// best-effort.
func (a *Actor) markDelivered(ctx context.Context, msg *domain.Message) {
	at := a.now()
	msg.MarkDelivered(at)

	if !msg.HasChannel(domain.ChannelStore) {
		return
	}
	if err := a.notifications.MarkDelivered(ctx, msg.ID, at); err != nil {
		a.logger.Warn("failed to record delivered timestamp",
			zap.String("messageId", msg.ID),
			zap.Error(err),
		)
	}
}

// handoffExternal publishes email/SMS deliveries to the outbound broker.
// Contact details ride in the message payload; a kind with no contact on
// file is skipped. Runs detached so a slow broker never blocks the caller.
func (a *Actor) handoffExternal(msg domain.Message) {
	if a.publisher == nil {
		a.logger.Warn("external channel requested but no publisher configured",
			zap.String("messageId", msg.ID),
		)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), externalPublishWindow)
		defer cancel()

		published := 0
		for kind, to := range externalContacts(msg.Payload) {
			d := outbound.Delivery{
				MessageID: msg.ID,
				UserID:    msg.UserID,
				Kind:      kind,
				To:        to,
				Subject:   msg.Title,
				Content:   msg.Body,
				Priority:  msg.Priority,
			}
			if err := a.publisher.Publish(ctx, outbound.QueueName(kind), d); err != nil {
				a.logger.Warn("external handoff failed",
					zap.String("messageId", msg.ID),
					zap.String("kind", kind.String()),
					zap.Error(err),
				)
				if a.metrics != nil {
					a.metrics.IncDeliveryFailed("external", "publish_failed")
				}
				continue
			}
			published++
		}

		if published == 0 {
			a.logger.Debug("external channel requested but no contact in payload",
				zap.String("messageId", msg.ID),
			)
			return
		}
		if a.metrics != nil {
			a.metrics.IncDelivered("external")
		}
	}()
}

// flushUser drains the recipient's queued messages into their fresh
// connection. Store stamps happen after the queue lock is released.
func (a *Actor) flushUser(ctx context.Context, userID string) {
	var flushed []*domain.Message
	a.queue.DrainUser(userID, func(msg *domain.Message) bool {
		if !a.deliverLive(msg) {
			return false
		}
		flushed = append(flushed, msg)
		return true
	})

	for _, msg := range flushed {
		a.markDelivered(ctx, msg)
	}
}

func (a *Actor) refreshGauges() {
	if a.metrics == nil {
		return
	}
	conns, users := a.registry.Counts()
	a.mu.Lock()
	scheduled := len(a.schedules)
	a.mu.Unlock()
	a.metrics.SetActorGauges(conns, users, a.queue.Depth(), scheduled)
}

// externalContacts pulls email/phone contact info out of the free-form
// payload, keyed the way the upstream records service writes it.
func externalContacts(payload map[string]any) map[provider.Kind]string {
	out := make(map[provider.Kind]string, 2)
	if email, ok := payload["email"].(string); ok && strings.TrimSpace(email) != "" {
		out[provider.KindEmail] = email
	}
	if phone, ok := payload["phone"].(string); ok && strings.TrimSpace(phone) != "" {
		out[provider.KindSMS] = phone
	}
	return out
}

func clonePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

// newID returns a time-ordered collision-resistant id. Falls back to a
// random v4 when the v7 source fails.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
