package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/campushub/notifyhub/internal/actor"
	"github.com/campushub/notifyhub/internal/registry"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SocketActor is the orchestrator surface the websocket endpoint drives.
type SocketActor interface {
	Connect(ctx context.Context, userID string, principal actor.Principal, transport registry.Transport, agent, origin string) (string, error)
	Disconnect(connID string)
	HandleSocketMessage(ctx context.Context, connID string, raw []byte) any
}

const (
	localUserID = "ws_user_id"
	localAgent  = "ws_agent"
	localOrigin = "ws_origin"
)

// RegisterSocketRoutes wires the live-socket upgrade endpoint. The auth
// middleware runs before the upgrade, so the handler inside the socket
// already has a verified principal.
func RegisterSocketRoutes(router fiber.Router, a SocketActor, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ws := router.Group("/v1/ws", AuthMiddleware())
	ws.Use(func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		userID := strings.TrimSpace(c.Query("userId"))
		p := principalFrom(c)
		if userID == "" {
			userID = p.UserID
		}

		c.Locals(localUserID, userID)
		c.Locals(localAgent, c.Get(fiber.HeaderUserAgent))
		c.Locals(localOrigin, c.IP())
		return c.Next()
	})

	ws.Get("/", websocket.New(func(conn *websocket.Conn) {
		serveSocket(conn, a, logger)
	}))
}

func serveSocket(conn *websocket.Conn, a SocketActor, logger *zap.Logger) {
	userID, _ := conn.Locals(localUserID).(string)
	principal, _ := conn.Locals(principalLocal).(actor.Principal)
	agent, _ := conn.Locals(localAgent).(string)
	origin, _ := conn.Locals(localOrigin).(string)

	transport := newWSTransport(conn)
	connID, err := a.Connect(context.Background(), userID, principal, transport, agent, origin)
	if err != nil {
		logger.Warn("socket connect rejected",
			zap.String("userId", userID),
			zap.String("principal", principal.UserID),
			zap.Error(err),
		)
		_ = transport.WriteJSON(fiber.Map{"type": "error", "error": err.Error()})
		_ = transport.Close()
		return
	}

	defer func() {
		a.Disconnect(connID)
		_ = transport.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		reply := a.HandleSocketMessage(context.Background(), connID, raw)
		if reply == nil {
			continue
		}
		if err := transport.WriteJSON(reply); err != nil {
			logger.Warn("socket reply write failed",
				zap.String("connectionId", connID),
				zap.Error(err),
			)
			return
		}
	}
}

var errClosedTransport = errors.New("transport closed")

// socketWriteWait bounds how long one write may sit on a stalled peer. A
// send hitting the deadline fails the write and the connection is removed
// rather than wedging its caller.
const socketWriteWait = 10 * time.Second

// wsTransport adapts a websocket connection to the registry's transport
// port. The gorilla-style connection underneath allows one concurrent
// writer, so writes serialize through the mutex.
type wsTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errClosedTransport
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

func (t *wsTransport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}
