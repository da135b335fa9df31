package actor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/campushub/notifyhub/internal/domain"
	"go.uber.org/zap"
)

// Client-to-actor socket message types.
const (
	msgPing             = "ping"
	msgMarkRead         = "mark-read"
	msgGetNotifications = "get-notifications"
	msgSubscribe        = "subscribe"
)

// Actor-to-client event types.
const (
	eventPong          = "pong"
	eventNotification  = "notification"
	eventNotifications = "notifications"
	eventMarkedRead    = "marked-read"
	eventSubscribed    = "subscribed"
	eventError         = "error"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// socketEvent is the actor-to-client envelope.
type socketEvent struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type socketRequest struct {
	Type      string   `json:"type"`
	MessageID string   `json:"messageId,omitempty"`
	Types     []string `json:"types,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

type historyPage struct {
	Items []domain.Message `json:"items"`
	Total int64            `json:"total"`
}

// HandleSocketMessage processes one inbound client frame for connID and
// returns the reply to write, or nil when no reply is due. Unrecognized
// frame types are logged and ignored per the protocol contract.
func (a *Actor) HandleSocketMessage(ctx context.Context, connID string, raw []byte) any {
	conn := a.registry.Get(connID)
	if conn == nil {
		return nil
	}
	a.registry.Touch(connID, a.now())

	var req socketRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		a.logger.Debug("ignoring malformed socket frame",
			zap.String("connectionId", connID),
			zap.Error(err),
		)
		return nil
	}

	switch req.Type {
	case msgPing:
		return socketEvent{Type: eventPong}

	case msgMarkRead:
		return a.handleMarkRead(ctx, conn.UserID, req.MessageID)

	case msgGetNotifications:
		return a.handleHistory(ctx, conn.UserID, req.Limit)

	case msgSubscribe:
		a.registry.Subscribe(connID, req.Types)
		return socketEvent{Type: eventSubscribed}

	default:
		a.logger.Debug("ignoring unrecognized socket frame",
			zap.String("connectionId", connID),
			zap.String("frameType", req.Type),
		)
		return nil
	}
}

func (a *Actor) handleMarkRead(ctx context.Context, userID, messageID string) socketEvent {
	if messageID == "" {
		return socketEvent{Type: eventError, Error: "messageId is required"}
	}

	err := a.notifications.MarkRead(ctx, messageID, userID, a.now())
	switch {
	case err == nil:
		return socketEvent{Type: eventMarkedRead, Data: map[string]string{"messageId": messageID}}
	case errors.Is(err, domain.ErrUnauthorized):
		return socketEvent{Type: eventError, Error: "message does not belong to caller"}
	case errors.Is(err, domain.ErrNotFound):
		return socketEvent{Type: eventError, Error: "message not found"}
	default:
		a.logger.Error("mark-read failed",
			zap.String("messageId", messageID),
			zap.String("userId", userID),
			zap.Error(err),
		)
		return socketEvent{Type: eventError, Error: "store unavailable"}
	}
}

func (a *Actor) handleHistory(ctx context.Context, userID string, limit int) socketEvent {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	items, total, err := a.notifications.ListForUser(ctx, userID, limit, 0)
	if err != nil {
		a.logger.Error("history lookup failed",
			zap.String("userId", userID),
			zap.Error(err),
		)
		return socketEvent{Type: eventError, Error: "store unavailable"}
	}

	return socketEvent{Type: eventNotifications, Data: historyPage{Items: items, Total: total}}
}
