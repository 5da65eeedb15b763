package relay

import (
	"log/slog"
	"os"
	"path/filepath"

	"docrelay/internal/model"
	"docrelay/internal/staging"
)

// Sweeper scans the staging root for directories left behind by failed or
// crashed runs and reschedules them. A directory that still exists was never
// cleaned up, so its mirror never completed.
type Sweeper struct {
	root    string
	runner  Runner
	logger  *slog.Logger
	metrics *Metrics
}

// NewSweeper constructs a Sweeper over the staging root.
func NewSweeper(root string, runner Runner, logger *slog.Logger, metrics *Metrics) *Sweeper {
	return &Sweeper{root: root, runner: runner, logger: logger, metrics: metrics}
}

// RetryFailedUploads reschedules every orphaned staging directory whose
// identification record yields an email; the rest are skipped with a warning.
// It reports scheduling only and does not wait for the re-runs to finish.
// Safe to call repeatedly; in-flight directories are skipped by the
// orchestrator's own guard.
func (s *Sweeper) RetryFailedUploads() (*model.SweepReport, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.SweepReport{}, nil
		}
		return nil, err
	}

	report := &model.SweepReport{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())

		email, err := staging.ReadRecordEmail(dir)
		if err != nil || email == "" {
			s.logger.Warn("skipping orphaned directory with no resolvable email", "dir", dir, "error", err)
			s.metrics.sweepDirs.WithLabelValues(model.SweepSkipped).Inc()
			report.Entries = append(report.Entries, model.SweepEntry{
				Directory: entry.Name(),
				Status:    model.SweepSkipped,
				Reason:    "no resolvable email in identification record",
			})
			continue
		}

		s.runner.Schedule(dir, email)
		s.logger.Info("rescheduled orphaned directory", "dir", dir, "email", email)
		s.metrics.sweepDirs.WithLabelValues(model.SweepScheduled).Inc()
		report.Entries = append(report.Entries, model.SweepEntry{
			Directory: entry.Name(),
			Email:     email,
			Status:    model.SweepScheduled,
		})
	}
	return report, nil
}
