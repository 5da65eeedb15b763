package relay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docrelay/internal/model"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Schedule(stagingDir, email string) {
	m.Called(stagingDir, email)
}

func newTestSweeper(t *testing.T, root string, runner Runner) *Sweeper {
	t.Helper()
	return NewSweeper(root, runner, testLogger(), mustMetrics(t))
}

func TestRetryFailedUploads(t *testing.T) {
	root := t.TempDir()

	orphan := filepath.Join(root, testEmail+"-abc123")
	record := "Name: Jane Doe\nDate of birth: 1990-01-02\nEmail: " + testEmail + "\n"
	require.NoError(t, os.MkdirAll(orphan, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(orphan, "identification_client.txt"), []byte(record), 0o644))

	// A directory without an identification record cannot be rescheduled.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "broken-dir"), 0o755))

	// Stray files in the staging root are not submissions.
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	runner := new(mockRunner)
	runner.On("Schedule", orphan, testEmail).Return().Once()

	report, err := newTestSweeper(t, root, runner).RetryFailedUploads()
	require.NoError(t, err)
	runner.AssertExpectations(t)

	require.Len(t, report.Entries, 2)
	assert.Equal(t, 1, report.Scheduled())
	assert.Contains(t, report.Entries, model.SweepEntry{
		Directory: testEmail + "-abc123",
		Email:     testEmail,
		Status:    model.SweepScheduled,
	})
	assert.Contains(t, report.Entries, model.SweepEntry{
		Directory: "broken-dir",
		Status:    model.SweepSkipped,
		Reason:    "no resolvable email in identification record",
	})
}

func TestRetryFailedUploadsMissingRoot(t *testing.T) {
	runner := new(mockRunner)

	report, err := newTestSweeper(t, filepath.Join(t.TempDir(), "gone"), runner).RetryFailedUploads()
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	runner.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestRetryFailedUploadsEmptyRoot(t *testing.T) {
	runner := new(mockRunner)

	report, err := newTestSweeper(t, t.TempDir(), runner).RetryFailedUploads()
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	runner.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}
