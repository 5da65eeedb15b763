package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"docrelay/internal/model"
)

// Sweeper rescans the staging root and reschedules orphaned directories.
type Sweeper interface {
	RetryFailedUploads() (*model.SweepReport, error)
}

// RetryFailedUploads triggers a recovery sweep over the staging root and
// reports what was rescheduled. Scheduling is asynchronous; a scheduled entry
// does not mean the re-run already succeeded.
func RetryFailedUploads(sweeper Sweeper) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := sweeper.RetryFailedUploads()
		if err != nil {
			return fmt.Errorf("recovery sweep: %w", err)
		}

		if len(report.Entries) == 0 {
			return c.JSON(fiber.Map{"message": "no orphaned directories found"})
		}
		return c.JSON(report)
	}
}
