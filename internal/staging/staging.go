// Package staging manages per-submission working directories on local disk.
// A staging directory holds an identification record plus the submitter's
// files and survives until the relay mirrors it to the remote store.
package staging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docrelay/internal/config"
)

// RecordFilename is the identification record written into every
// staging directory.
const RecordFilename = "identification_client.txt"

// copyBufferSize is the chunk size used when streaming upload bodies to disk.
const copyBufferSize = 1 << 20

var (
	ErrUnsupportedFileType = errors.New("file type not allowed")
	ErrRecordNotFound      = errors.New("identification record not found")
)

// Stager creates staging directories and saves incoming files into them.
// It is safe for concurrent use; distinct submissions never share a directory.
type Stager struct {
	root    string
	allowed map[string]bool
	logger  *slog.Logger
	now     func() time.Time
}

// NewStager constructs a Stager rooted at cfg.RootDir with the configured
// extension allow-list.
func NewStager(cfg config.StagingConfig, logger *slog.Logger) *Stager {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Stager{
		root:    cfg.RootDir,
		allowed: allowed,
		logger:  logger,
		now:     time.Now,
	}
}

// Root returns the staging root directory.
func (s *Stager) Root() string {
	return s.root
}

// AllowedExtension reports whether the file's extension is on the allow-list.
func (s *Stager) AllowedExtension(filename string) bool {
	return s.allowed[strings.ToLower(filepath.Ext(filename))]
}

// AllowedExtensions returns the configured allow-list, for error messages.
func (s *Stager) AllowedExtensions() []string {
	exts := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		exts = append(exts, ext)
	}
	return exts
}

// CreateSubmissionDir makes a fresh directory named {email}-{uuid} under the
// staging root, creating the root itself if absent. The random identifier
// makes name collisions impossible; only filesystem-level failures error.
func (s *Stager) CreateSubmissionDir(email string) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create staging root %s: %w", s.root, err)
	}
	dir := filepath.Join(s.root, fmt.Sprintf("%s-%s", email, uuid.New().String()))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create submission directory %s: %w", dir, err)
	}
	s.logger.Info("created submission directory", "dir", dir)
	return dir, nil
}

// WriteIdentificationRecord writes the fixed 3-line record. The write either
// completes or the submission must be aborted by the caller; no partial
// record is left ambiguous because the file is written in one call.
func (s *Stager) WriteIdentificationRecord(dir, name, dob, email string) error {
	path := filepath.Join(dir, RecordFilename)
	content := fmt.Sprintf("Name: %s\nDate of birth: %s\nEmail: %s\n", name, dob, email)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write identification record %s: %w", path, err)
	}
	s.logger.Info("wrote identification record", "path", path)
	return nil
}

// StageFile saves an upload body under dir, renamed to
// {stem}_{receipt-timestamp}{ext}. A non-empty description places the file in
// a subdirectory named after it, created on first use. The body is streamed
// to disk in fixed-size chunks. Files whose extension is outside the
// allow-list are rejected before anything is written.
func (s *Stager) StageFile(dir, originalName, description string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !s.allowed[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, originalName)
	}

	target := dir
	if description != "" {
		target = filepath.Join(dir, description)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", fmt.Errorf("create description directory %s: %w", target, err)
		}
	}

	stem := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	timestamp := s.now().Format("20060102150405")
	dest := filepath.Join(target, fmt.Sprintf("%s_%s%s", stem, timestamp, ext))
	// The receipt timestamp has second granularity; a numeric suffix keeps
	// same-stem files received within the same second from overwriting
	// each other.
	for n := 1; exists(dest); n++ {
		dest = filepath.Join(target, fmt.Sprintf("%s_%s_%d%s", stem, timestamp, n, ext))
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create staged file %s: %w", dest, err)
	}
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(f, r, buf); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("save staged file %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file %s: %w", dest, err)
	}

	s.logger.Info("staged file", "original", originalName, "path", dest)
	return dest, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadRecordName extracts the submitter name from a directory's
// identification record.
func ReadRecordName(dir string) (string, error) {
	return readRecordField(dir, "Name:")
}

// ReadRecordEmail extracts the submitter email from a directory's
// identification record.
func ReadRecordEmail(dir string) (string, error) {
	return readRecordField(dir, "Email:")
}

func readRecordField(dir, prefix string) (string, error) {
	path := filepath.Join(dir, RecordFilename)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrRecordNotFound
		}
		return "", fmt.Errorf("open identification record %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read identification record %s: %w", path, err)
	}
	return "", fmt.Errorf("%w: no %q line in %s", ErrRecordNotFound, prefix, path)
}
