package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader carries the shared secret guarding the upload endpoints.
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose X-API-Key header does not match secret.
// An empty secret disables the guard, which keeps local development working
// without credentials.
func APIKey(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		got := c.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid api key")
		}

		return c.Next()
	}
}
