package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// BearerSecret requires "Authorization: Bearer <secret>" when enforce is set.
// An empty secret rejects every request.
func BearerSecret(secret string, enforce bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enforce {
			return c.Next()
		}
		if !secretMatches(secret, bearerToken(c)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

// HeaderSecret requires the named header to carry secret. An empty secret
// rejects every request.
func HeaderSecret(header, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !secretMatches(secret, c.Get(header)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

func secretMatches(secret, given string) bool {
	if secret == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(given)) == 1
}
