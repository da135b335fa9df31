package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/notifyhub/internal/actor"
	"github.com/campushub/notifyhub/internal/domain"
	"github.com/campushub/notifyhub/internal/ratelimit"
	"github.com/campushub/notifyhub/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationActor is the orchestrator surface the HTTP layer drives.
type NotificationActor interface {
	Send(ctx context.Context, msg *domain.Message) (string, error)
	BulkSend(ctx context.Context, userIDs []string, template domain.Message) []actor.BulkResult
	Schedule(ctx context.Context, s *domain.Schedule) (string, error)
	RecordDeadline(ctx context.Context, d *actor.Deadline) ([]string, error)
	Status() actor.Status
	Cleanup() int
}

type NotificationHandler struct {
	actor         NotificationActor
	notifications store.NotificationStore
}

func NewNotificationHandler(a NotificationActor, notifications store.NotificationStore) (*NotificationHandler, error) {
	if a == nil {
		return nil, fmt.Errorf("notification actor is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	return &NotificationHandler{actor: a, notifications: notifications}, nil
}

// RegisterNotificationRoutes wires the actor's HTTP entry points. Every
// route sits behind the auth and rate-limit middleware; dispatch and
// operational endpoints additionally require a staff or admin principal.
func RegisterNotificationRoutes(
	router fiber.Router,
	a NotificationActor,
	notifications store.NotificationStore,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
) error {
	h, err := NewNotificationHandler(a, notifications)
	if err != nil {
		return err
	}

	staff := RequireRole(actor.RoleStaff, actor.RoleAdmin)

	v1 := router.Group("/v1", AuthMiddleware(), RateLimitMiddleware(limiter, logger))
	v1.Post("/notifications", staff, h.SendNotification)
	v1.Post("/notifications/bulk", staff, h.BulkSend)
	v1.Get("/notifications", h.ListNotifications)
	v1.Post("/notifications/:id/read", h.MarkRead)
	v1.Post("/schedules", staff, h.CreateSchedule)
	v1.Post("/deadlines", staff, h.RecordDeadline)
	v1.Get("/status", staff, h.Status)
	v1.Post("/cleanup", staff, h.Cleanup)

	return nil
}

type sendRequest struct {
	UserID   string         `json:"userId"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Payload  map[string]any `json:"payload,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Channels []string       `json:"channels"`
}

type scheduleRequest struct {
	UserID     string         `json:"userId"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Payload    map[string]any `json:"payload,omitempty"`
	DueAt      time.Time      `json:"dueAt"`
	Channels   []string       `json:"channels"`
	Recurrence *struct {
		Interval  string     `json:"interval"`
		Until     *time.Time `json:"until,omitempty"`
		AnchorDay int        `json:"anchorDay,omitempty"`
	} `json:"recurrence,omitempty"`
}

type deadlineRequest struct {
	UserID  string         `json:"userId"`
	Title   string         `json:"title"`
	Body    string         `json:"body,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

type messageResponse struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Payload     map[string]any `json:"payload,omitempty"`
	Priority    string         `json:"priority"`
	CreatedAt   time.Time      `json:"createdAt"`
	DeliveredAt *time.Time     `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time     `json:"readAt,omitempty"`
}

type bulkResultResponse struct {
	UserID    string `json:"userId"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type listResponse struct {
	Data []messageResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

func (h *NotificationHandler) SendNotification(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	msg, err := requestToMessage(req)
	if err != nil {
		return toHTTPError(err)
	}

	id, err := h.actor.Send(c.Context(), msg)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":        id,
		"createdAt": msg.CreatedAt,
	})
}

func (h *NotificationHandler) BulkSend(c *fiber.Ctx) error {
	var req struct {
		UserIDs  []string    `json:"userIds"`
		Template sendRequest `json:"template"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.UserIDs) == 0 {
		return toHTTPError(fmt.Errorf("%w: userIds is required", domain.ErrValidation))
	}

	template, err := requestToMessage(req.Template)
	if err != nil {
		return toHTTPError(err)
	}

	results := h.actor.BulkSend(c.Context(), req.UserIDs, *template)
	payload := make([]bulkResultResponse, 0, len(results))
	for _, r := range results {
		item := bulkResultResponse{UserID: r.UserID, MessageID: r.MessageID}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		payload = append(payload, item)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"results": payload})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > maxPageSize {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxPageSize))
	}
	if offset < 0 {
		return toHTTPError(fmt.Errorf("%w: offset must be >= 0", domain.ErrValidation))
	}

	p := principalFrom(c)
	messages, total, err := h.notifications.ListForUser(c.Context(), p.UserID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]messageResponse, 0, len(messages))
	for i := range messages {
		data = append(data, toMessageResponse(&messages[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listResponse{
		Data: data,
		Meta: listMeta{Limit: limit, Offset: offset, Total: total},
	})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(fmt.Errorf("%w: message id is required", domain.ErrValidation))
	}

	p := principalFrom(c)
	if err := h.notifications.MarkRead(c.Context(), id, p.UserID, time.Now()); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"messageId": id, "read": true})
}

func (h *NotificationHandler) CreateSchedule(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	s, err := requestToSchedule(req)
	if err != nil {
		return toHTTPError(err)
	}

	id, err := h.actor.Schedule(c.Context(), s)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    id,
		"dueAt": s.DueAt,
	})
}

func (h *NotificationHandler) RecordDeadline(c *fiber.Ctx) error {
	var req deadlineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ids, err := h.actor.RecordDeadline(c.Context(), &actor.Deadline{
		UserID:  strings.TrimSpace(req.UserID),
		Title:   strings.TrimSpace(req.Title),
		Body:    req.Body,
		Payload: req.Payload,
		At:      req.At,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"scheduleIds": ids})
}

func (h *NotificationHandler) Status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.actor.Status())
}

func (h *NotificationHandler) Cleanup(c *fiber.Ctx) error {
	evicted := h.actor.Cleanup()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"evicted": evicted})
}

func requestToMessage(req sendRequest) (*domain.Message, error) {
	notificationType, err := domain.ParseTypeFromString(req.Type)
	if err != nil {
		return nil, err
	}

	priority := domain.PriorityNormal
	if strings.TrimSpace(req.Priority) != "" {
		priority, err = domain.ParsePriorityFromString(req.Priority)
		if err != nil {
			return nil, err
		}
	}

	channels, err := parseChannels(req.Channels)
	if err != nil {
		return nil, err
	}

	return &domain.Message{
		UserID:   strings.TrimSpace(req.UserID),
		Type:     notificationType,
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		Payload:  req.Payload,
		Priority: priority,
		Channels: channels,
	}, nil
}

func requestToSchedule(req scheduleRequest) (*domain.Schedule, error) {
	notificationType, err := domain.ParseTypeFromString(req.Type)
	if err != nil {
		return nil, err
	}

	channels, err := parseChannels(req.Channels)
	if err != nil {
		return nil, err
	}

	s := &domain.Schedule{
		UserID:   strings.TrimSpace(req.UserID),
		Type:     notificationType,
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		Payload:  req.Payload,
		DueAt:    req.DueAt,
		Channels: channels,
	}

	if req.Recurrence != nil {
		interval, err := domain.ParseIntervalFromString(req.Recurrence.Interval)
		if err != nil {
			return nil, err
		}
		s.Recurrence = &domain.Recurrence{
			Interval:  interval,
			Until:     req.Recurrence.Until,
			AnchorDay: req.Recurrence.AnchorDay,
		}
	}

	return s, nil
}

func parseChannels(raw []string) ([]domain.Channel, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: channels is required", domain.ErrValidation)
	}

	channels := make([]domain.Channel, 0, len(raw))
	for _, item := range raw {
		channel, err := domain.ParseChannelFromString(item)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

func toMessageResponse(m *domain.Message) messageResponse {
	if m == nil {
		return messageResponse{}
	}
	return messageResponse{
		ID:          m.ID,
		UserID:      m.UserID,
		Type:        m.Type.String(),
		Title:       m.Title,
		Body:        m.Body,
		Payload:     m.Payload,
		Priority:    m.Priority.String(),
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
