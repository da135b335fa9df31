package handler

import (
	"strings"

	"github.com/campushub/notifyhub/internal/actor"
	"github.com/gofiber/fiber/v2"
)

// The routing/auth collaborator in front of this service verifies the
// caller's credential and injects the principal as headers.
const (
	HeaderAuthUser = "X-Auth-User"
	HeaderAuthRole = "X-Auth-Role"

	principalLocal = "principal"
)

// AuthMiddleware extracts the authenticated principal from the injected
// headers and rejects requests that carry none.
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(HeaderAuthUser))
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authenticated principal")
		}

		role := strings.TrimSpace(c.Get(HeaderAuthRole))
		if role == "" {
			role = actor.RoleStudent
		}

		c.Locals(principalLocal, actor.Principal{UserID: userID, Role: role})
		return c.Next()
	}
}

// RequireRole gates an endpoint to the given roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *fiber.Ctx) error {
		p := principalFrom(c)
		if !allowed[p.Role] {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

func principalFrom(c *fiber.Ctx) actor.Principal {
	if p, ok := c.Locals(principalLocal).(actor.Principal); ok {
		return p
	}
	return actor.Principal{}
}
