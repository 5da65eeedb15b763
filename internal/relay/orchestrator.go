// Package relay mirrors staged submission directories into the remote
// document store and recovers directories left behind by failed runs.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"docrelay/internal/notify"
	"docrelay/internal/sharepoint"
)

// Runner schedules a background mirror run for a staging directory.
type Runner interface {
	Schedule(stagingDir, email string)
}

// Orchestrator owns the lifecycle of a staging directory once control passes
// to it: authenticate, mirror folder-by-folder and file-by-file, delete the
// local copy on full success, notify on either outcome. The first error
// aborts the whole run and leaves the directory untouched for recovery.
type Orchestrator struct {
	store        sharepoint.Store
	notifier     notify.Notifier
	targetFolder string
	logger       *slog.Logger
	metrics      *Metrics

	mu       sync.Mutex
	inflight map[string]bool
}

// NewOrchestrator constructs an Orchestrator. targetFolder is the
// server-relative root under which per-submitter folders are created.
func NewOrchestrator(store sharepoint.Store, notifier notify.Notifier, targetFolder string, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		store:        store,
		notifier:     notifier,
		targetFolder: strings.Trim(targetFolder, "/"),
		logger:       logger,
		metrics:      metrics,
		inflight:     make(map[string]bool),
	}
}

// RemoteRoot returns the server-relative folder for a submitter.
func (o *Orchestrator) RemoteRoot(email string) string {
	return "/" + o.targetFolder + "/" + email
}

// Run mirrors one staging directory. It returns true only when every folder
// and file reached the remote store and never propagates an error past its
// boundary: all failures end in a failure notification and a false result.
func (o *Orchestrator) Run(ctx context.Context, stagingDir, email string) bool {
	if !o.acquire(stagingDir) {
		o.logger.Warn("mirror already in flight, skipping", "dir", stagingDir)
		return false
	}
	defer o.release(stagingDir)

	log := o.logger.With("dir", stagingDir, "email", email)
	remoteRoot := o.RemoteRoot(email)

	session, err := o.store.Connect(ctx)
	if err != nil {
		return o.fail(log, err, email)
	}

	plan, err := BuildMirrorPlan(stagingDir, remoteRoot)
	if err != nil {
		return o.fail(log, fmt.Errorf("walk staging directory: %w", err), email)
	}

	for _, folder := range plan {
		if err := session.EnsureFolder(ctx, folder.RemotePath); err != nil {
			return o.fail(log, err, email)
		}
		for _, file := range folder.Files {
			if err := session.UploadFile(ctx, folder.RemotePath, file); err != nil {
				return o.fail(log, err, email)
			}
			o.metrics.filesRelayed.Inc()
		}
	}

	// Resolve the display name while the record is still on disk.
	displayName := notify.DisplayName(stagingDir, email)

	if err := os.RemoveAll(stagingDir); err != nil {
		// The remote state is already correct; a deletion failure is a
		// housekeeping error, not a run failure.
		log.Error("failed to delete staging directory after successful mirror", "error", err)
	}

	o.metrics.runs.WithLabelValues("success").Inc()
	o.notifier.NotifySuccess(email, displayName, remoteRoot)
	log.Info("mirror completed", "folders", len(plan))
	return true
}

// Schedule starts a background mirror run decoupled from the caller. The
// spawned run has its own error boundary; nothing propagates back.
func (o *Orchestrator) Schedule(stagingDir, email string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("background mirror panicked", "dir", stagingDir, "panic", r)
			}
		}()
		o.Run(context.Background(), stagingDir, email)
	}()
}

func (o *Orchestrator) fail(log *slog.Logger, cause error, email string) bool {
	log.Error("mirror failed", "error", cause)
	o.metrics.runs.WithLabelValues("failure").Inc()
	o.notifier.NotifyFailure(cause, email)
	return false
}

// acquire marks a staging directory as in flight. Nothing else prevents the
// sweeper from rescheduling a directory whose run has not finished; this
// in-memory marker closes that window within one process.
func (o *Orchestrator) acquire(stagingDir string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[stagingDir] {
		return false
	}
	o.inflight[stagingDir] = true
	return true
}

func (o *Orchestrator) release(stagingDir string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, stagingDir)
}
