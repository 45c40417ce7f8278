package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
)

// TenantResolver resolves the request host once and passes the result down
// both as a fiber local and on the request's user context. Hosts that do not
// resolve are answered with 404 before any handler runs. An unknown tenant and
// a malformed host get the same answer.
func TenantResolver(resolver *tenancy.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := resolver.Resolve(c.UserContext(), c.Hostname())
		if rc.IsInvalid() {
			return abort(c, fiber.StatusNotFound, "not found")
		}

		c.Locals(localsContext, rc)
		c.SetUserContext(tenancy.WithContext(c.UserContext(), rc))
		return c.Next()
	}
}

// RequirePortal hides a route group from hosts of other portals
func RequirePortal(portals ...tenancy.Portal) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := Context(c)
		for _, p := range portals {
			if rc.Portal == p {
				return c.Next()
			}
		}
		return abort(c, fiber.StatusNotFound, "route is not available on this host")
	}
}
