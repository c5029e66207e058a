package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS headers advertised on every response. Display clients and the
// questionnaire overlay are served from arbitrary origins (file://, a dev
// server, the installation kiosk), so the contract is fully permissive.
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET,POST,DELETE,OPTIONS"
	corsAllowHeaders = "Content-Type"
)

// CORS applies the cross-origin contract: the same three headers on every
// response, success or error, and a 204 short-circuit for preflight.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, corsAllowOrigin)
		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
