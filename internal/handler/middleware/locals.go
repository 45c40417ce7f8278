package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
)

const (
	localsContext = "tenancy_context"
	localsClaims  = "claims"
	localsUser    = "user"
	localsToken   = "token"
)

// Context returns the resolved context stored by TenantResolver
func Context(c *fiber.Ctx) tenancy.ResolvedContext {
	if rc, ok := c.Locals(localsContext).(tenancy.ResolvedContext); ok {
		return rc
	}
	return tenancy.Invalid(tenancy.ErrInvalidHost)
}

// Claims returns the validated access token claims, or nil before Auth ran
func Claims(c *fiber.Ctx) *domain.Claims {
	claims, _ := c.Locals(localsClaims).(*domain.Claims)
	return claims
}

// User returns the principal loaded by Access
func User(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals(localsUser).(*domain.User)
	return u
}

// Actor is the principal together with the host it is acting on
func Actor(c *fiber.Ctx) service.Actor {
	return service.Actor{User: User(c), Context: Context(c)}
}

func abort(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
