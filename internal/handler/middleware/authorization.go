package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
)

// RequirePermission checks the central policy table for the actor's role
func RequirePermission(guard *service.Guard, action policy.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := Actor(c)
		if actor.User == nil {
			return abort(c, fiber.StatusUnauthorized, "unauthorized")
		}

		if !guard.Can(actor, action) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":           true,
				"message":         service.ErrForbidden.Error(),
				"required_action": action,
			})
		}

		return c.Next()
	}
}
