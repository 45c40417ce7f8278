package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows the listed origins with credentials. An empty list allows any
// origin without credentials.
func CORS(allowOrigins string) fiber.Handler {
	cfg := cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization",
		ExposeHeaders: "X-RateLimit-Limit,X-RateLimit-Remaining",

		AllowCredentials: true,
	}
	if allowOrigins == "" || allowOrigins == "*" {
		cfg.AllowOrigins = "*"
		cfg.AllowCredentials = false
	}
	return cors.New(cfg)
}
