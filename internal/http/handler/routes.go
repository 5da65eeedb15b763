package handler

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"docrelay/internal/http/middleware"
	"docrelay/internal/relay"
	"docrelay/internal/staging"
)

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// HealthCheck reports readiness: the service is healthy when the staging
// root exists (or can be created) and is writable.
func HealthCheck(stager *staging.Stager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := os.MkdirAll(stager.Root(), 0o755); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "staging directory unavailable")
		}
		probe, err := os.CreateTemp(stager.Root(), ".healthz-*")
		if err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "staging directory not writable")
		}
		probe.Close()
		os.Remove(probe.Name())
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. The upload
// and recovery endpoints sit behind the shared API key guard; probes stay
// open for orchestration.
func RegisterRoutes(app *fiber.App, apiKey string, stager *staging.Stager, runner relay.Runner, sweeper Sweeper) {
	app.Get("/healthz", LivenessProbe())
	app.Get("/health", HealthCheck(stager))

	guarded := app.Group("/", middleware.APIKey(apiKey))
	guarded.Post("/uploadfiles", UploadFiles(stager, runner))
	guarded.Post("/retry-failed-uploads", RetryFailedUploads(sweeper))
}
