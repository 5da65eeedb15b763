package handler

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"docrelay/internal/model"
	"docrelay/internal/relay"
	"docrelay/internal/staging"
)

// formFile pairs one uploaded file with its optional description, as read
// from the file_{i}/description_{i} form fields.
type formFile struct {
	header      *multipart.FileHeader
	description string
}

// UploadFiles accepts a multipart submission, stages it on local disk and
// schedules the background mirror to the remote store. The response is an
// acknowledgment of staging only; delivery completes asynchronously.
func UploadFiles(stager *staging.Stager, runner relay.Runner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := strings.TrimSpace(c.FormValue("name"))
		dob := strings.TrimSpace(c.FormValue("date_of_birth"))
		email := strings.TrimSpace(c.FormValue("email"))
		for _, field := range []struct{ name, value string }{
			{"name", name},
			{"date_of_birth", dob},
			{"email", email},
		} {
			if field.value == "" {
				return writeError(c, fiber.StatusBadRequest, "MISSING_FIELD", fmt.Sprintf("form field %q is required", field.name))
			}
		}

		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FORM", "request is not valid multipart/form-data")
		}

		files := collectFormFiles(c, form)
		if len(files) == 0 {
			return writeError(c, fiber.StatusBadRequest, "NO_FILES", "at least one file_0 part is required")
		}

		// Validate every extension up front so a rejected submission leaves
		// no staging directory behind.
		for _, f := range files {
			if !stager.AllowedExtension(f.header.Filename) {
				return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_FILE_TYPE",
					fmt.Sprintf("file type of %q is not allowed; allowed: %s",
						f.header.Filename, strings.Join(stager.AllowedExtensions(), ", ")))
			}
		}

		dir, err := stager.CreateSubmissionDir(email)
		if err != nil {
			return fmt.Errorf("stage submission: %w", err)
		}
		if err := stager.WriteIdentificationRecord(dir, name, dob, email); err != nil {
			return fmt.Errorf("stage submission: %w", err)
		}

		staged := make([]model.StagedFileInfo, 0, len(files))
		for _, f := range files {
			src, err := f.header.Open()
			if err != nil {
				return fmt.Errorf("open upload %s: %w", f.header.Filename, err)
			}
			savedPath, err := stager.StageFile(dir, f.header.Filename, f.description, src)
			src.Close()
			if err != nil {
				return fmt.Errorf("stage submission: %w", err)
			}
			staged = append(staged, model.StagedFileInfo{
				OriginalFilename: f.header.Filename,
				ContentType:      f.header.Header.Get("Content-Type"),
				SavedPath:        savedPath,
				Description:      f.description,
			})
		}

		runner.Schedule(dir, email)

		return c.Status(fiber.StatusAccepted).JSON(model.UploadAck{
			Name:        name,
			DateOfBirth: dob,
			Email:       email,
			Files:       staged,
			Message:     "files staged; delivery to the document store is in progress",
		})
	}
}

// collectFormFiles reads file_{i} parts starting at index 0 and stops at the
// first gap, pairing each with its description_{i} value.
func collectFormFiles(c *fiber.Ctx, form *multipart.Form) []formFile {
	var files []formFile
	for i := 0; ; i++ {
		headers := form.File["file_"+strconv.Itoa(i)]
		if len(headers) == 0 {
			break
		}
		files = append(files, formFile{
			header:      headers[0],
			description: strings.TrimSpace(c.FormValue("description_" + strconv.Itoa(i))),
		})
	}
	return files
}
