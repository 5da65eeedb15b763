package model

// StagedFileInfo describes one uploaded file after it was saved to the
// local staging directory. It is returned to the caller as part of the
// upload acknowledgment; remote delivery happens asynchronously.
type StagedFileInfo struct {
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	SavedPath        string `json:"saved_path"`
	Description      string `json:"description,omitempty"`
}

// UploadAck is the structured acknowledgment for a submission. These are pure
// DTOs with no persistence coupling; a submission is decomposed into a staging
// directory immediately and never stored as an object.
type UploadAck struct {
	Name        string           `json:"name"`
	DateOfBirth string           `json:"date_of_birth"`
	Email       string           `json:"email"`
	Files       []StagedFileInfo `json:"uploaded_files_info"`
	Message     string           `json:"message"`
}

// Sweep entry statuses reported by the recovery endpoint.
const (
	SweepScheduled = "scheduled"
	SweepSkipped   = "skipped"
)

// SweepEntry records the outcome of one staging directory during a recovery
// sweep. Scheduled means a background re-run was started, not that it finished.
type SweepEntry struct {
	Directory string `json:"directory"`
	Email     string `json:"email,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// SweepReport lists every staging directory found by a recovery sweep.
type SweepReport struct {
	Entries []SweepEntry `json:"entries"`
}

// Scheduled returns the number of entries that were rescheduled.
func (r *SweepReport) Scheduled() int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == SweepScheduled {
			n++
		}
	}
	return n
}
