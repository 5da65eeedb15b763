package handler

import (
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"docrelay/internal/http/middleware"
	"docrelay/internal/notify"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "MISSING_FIELD", "NO_FILES", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses. Unhandled internal errors additionally page support by email,
// carrying the submitter's address when the failing request had one.
func ErrorHandler(logger *slog.Logger, notifier notify.Notifier) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "invalid or missing api key")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			logger.Error("unhandled error", "path", c.Path(), "error", err)
			if status == fiber.StatusInternalServerError && notifier != nil {
				// c is recycled once the handler returns; capture what the
				// notification needs before leaving the request goroutine.
				email := c.FormValue("email")
				stack := string(debug.Stack())
				go notifier.NotifySystemError(email, err, stack)
			}
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
