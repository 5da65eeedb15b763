package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docrelay/internal/config"
	"docrelay/internal/model"
	"docrelay/internal/staging"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Schedule(stagingDir, email string) {
	m.Called(stagingDir, email)
}

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) RetryFailedUploads() (*model.SweepReport, error) {
	args := m.Called()
	if report, ok := args.Get(0).(*model.SweepReport); ok {
		return report, args.Error(1)
	}
	return nil, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStager(t *testing.T) *staging.Stager {
	t.Helper()
	return staging.NewStager(config.StagingConfig{
		RootDir:           filepath.Join(t.TempDir(), "uploaded_files"),
		AllowedExtensions: []string{".pdf", ".png"},
	}, testLogger())
}

// multipartBody builds a submission request body. files maps form part index
// to filename; descriptions maps the same index to a description value.
func multipartBody(t *testing.T, fields map[string]string, files map[int]string, descriptions map[int]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for i, filename := range files {
		part, err := writer.CreateFormFile("file_"+strconv.Itoa(i), filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + filename))
		require.NoError(t, err)
	}
	for i, desc := range descriptions {
		require.NoError(t, writer.WriteField("description_"+strconv.Itoa(i), desc))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func submissionFields() map[string]string {
	return map[string]string{
		"name":          "Jane Doe",
		"date_of_birth": "1990-01-02",
		"email":         "user@example.com",
	}
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(newTestStager(t)))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy when the staging root cannot be created", func(t *testing.T) {
		// A regular file where the root should be makes MkdirAll fail.
		blocked := filepath.Join(t.TempDir(), "blocked")
		require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

		stager := staging.NewStager(config.StagingConfig{RootDir: blocked}, testLogger())
		app := fiber.New()
		app.Get("/health", HealthCheck(stager))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestUploadFiles(t *testing.T) {
	newApp := func(t *testing.T) (*fiber.App, *staging.Stager, *mockRunner) {
		t.Helper()
		stager := newTestStager(t)
		runner := new(mockRunner)
		app := fiber.New()
		app.Post("/uploadfiles", UploadFiles(stager, runner))
		return app, stager, runner
	}

	t.Run("success", func(t *testing.T) {
		app, stager, runner := newApp(t)
		runner.On("Schedule", mock.AnythingOfType("string"), "user@example.com").Return().Once()

		body, ct := multipartBody(t, submissionFields(),
			map[int]string{0: "scan.pdf", 1: "photo.png"},
			map[int]string{1: "passport"})
		req := httptest.NewRequest(http.MethodPost, "/uploadfiles", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var ack model.UploadAck
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
		assert.Equal(t, "Jane Doe", ack.Name)
		assert.Equal(t, "user@example.com", ack.Email)
		require.Len(t, ack.Files, 2)
		assert.Equal(t, "scan.pdf", ack.Files[0].OriginalFilename)
		assert.Equal(t, "passport", ack.Files[1].Description)
		assert.FileExists(t, ack.Files[0].SavedPath)
		assert.FileExists(t, ack.Files[1].SavedPath)
		assert.Contains(t, ack.Files[1].SavedPath, filepath.Join("passport", "photo_"))

		entries, err := os.ReadDir(stager.Root())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, strings.HasPrefix(entries[0].Name(), "user@example.com-"))
		assert.FileExists(t, filepath.Join(stager.Root(), entries[0].Name(), staging.RecordFilename))

		runner.AssertExpectations(t)
	})

	t.Run("missing required field", func(t *testing.T) {
		app, _, runner := newApp(t)

		fields := submissionFields()
		delete(fields, "date_of_birth")
		body, ct := multipartBody(t, fields, map[int]string{0: "scan.pdf"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/uploadfiles", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "MISSING_FIELD", res.Error.Code)
		assert.Contains(t, res.Error.Message, "date_of_birth")
		runner.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	})

	t.Run("no files", func(t *testing.T) {
		app, _, runner := newApp(t)

		body, ct := multipartBody(t, submissionFields(), nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/uploadfiles", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NO_FILES", res.Error.Code)
		runner.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	})

	t.Run("file parts must start at index zero", func(t *testing.T) {
		app, _, _ := newApp(t)

		body, ct := multipartBody(t, submissionFields(), map[int]string{1: "scan.pdf"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/uploadfiles", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NO_FILES", res.Error.Code)
	})

	t.Run("unsupported extension rejects the whole submission", func(t *testing.T) {
		app, stager, runner := newApp(t)

		body, ct := multipartBody(t, submissionFields(),
			map[int]string{0: "scan.pdf", 1: "malware.exe"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/uploadfiles", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "UNSUPPORTED_FILE_TYPE", res.Error.Code)
		assert.Contains(t, res.Error.Message, "malware.exe")

		// Nothing was staged for a rejected submission.
		assert.NoDirExists(t, stager.Root())
		runner.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	})
}

func TestRetryFailedUploadsHandler(t *testing.T) {
	newApp := func(sweeper Sweeper) *fiber.App {
		app := fiber.New()
		app.Post("/retry-failed-uploads", RetryFailedUploads(sweeper))
		return app
	}

	t.Run("reports scheduled and skipped directories", func(t *testing.T) {
		sweeper := new(mockSweeper)
		sweeper.On("RetryFailedUploads").Return(&model.SweepReport{
			Entries: []model.SweepEntry{
				{Directory: "user@example.com-abc", Email: "user@example.com", Status: model.SweepScheduled},
				{Directory: "broken", Status: model.SweepSkipped, Reason: "no resolvable email in identification record"},
			},
		}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/retry-failed-uploads", nil)
		resp, _ := newApp(sweeper).Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var report model.SweepReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Len(t, report.Entries, 2)
		assert.Equal(t, 1, report.Scheduled())
		sweeper.AssertExpectations(t)
	})

	t.Run("empty staging root", func(t *testing.T) {
		sweeper := new(mockSweeper)
		sweeper.On("RetryFailedUploads").Return(&model.SweepReport{}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/retry-failed-uploads", nil)
		resp, _ := newApp(sweeper).Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "no orphaned directories found", body["message"])
	})

	t.Run("sweep error becomes an internal error", func(t *testing.T) {
		sweeper := new(mockSweeper)
		sweeper.On("RetryFailedUploads").Return(nil, errors.New("disk gone")).Once()

		req := httptest.NewRequest(http.MethodPost, "/retry-failed-uploads", nil)
		resp, _ := newApp(sweeper).Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

type notifierStub struct {
	systemErrors chan string
}

func (n *notifierStub) NotifySuccess(email, displayName, remoteFolder string) {}
func (n *notifierStub) NotifyFailure(cause error, email string)               {}
func (n *notifierStub) NotifySystemError(email string, cause error, stack string) {
	n.systemErrors <- email + ": " + cause.Error()
}

func TestErrorHandler(t *testing.T) {
	t.Run("maps fiber errors to stable codes", func(t *testing.T) {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(testLogger(), nil)})
		app.Get("/teapot", func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusNotFound, "gone")
		})

		req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "NOT_FOUND", body.Error.Code)
	})

	t.Run("internal errors page support with the submitter email", func(t *testing.T) {
		stub := &notifierStub{systemErrors: make(chan string, 1)}
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(testLogger(), stub)})
		app.Post("/boom", func(c *fiber.Ctx) error {
			return errors.New("nil pointer somewhere")
		})

		body, ct := multipartBody(t, map[string]string{"email": "user@example.com"}, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/boom", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "INTERNAL_ERROR", payload.Error.Code)

		select {
		case got := <-stub.systemErrors:
			assert.Equal(t, "user@example.com: nil pointer somewhere", got)
		case <-time.After(2 * time.Second):
			t.Fatal("support notification was never sent")
		}
	})
}

func TestRegisterRoutes(t *testing.T) {
	stager := newTestStager(t)
	runner := new(mockRunner)
	sweeper := new(mockSweeper)
	sweeper.On("RetryFailedUploads").Return(&model.SweepReport{}, nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(testLogger(), nil)})
	RegisterRoutes(app, "s3cret", stager, runner, sweeper)

	t.Run("probes are not guarded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("upload requires the api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/uploadfiles", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	})

	t.Run("recovery accepts the api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/retry-failed-uploads", nil)
		req.Header.Set("X-API-Key", "s3cret")
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
