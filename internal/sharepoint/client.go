package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docrelay/internal/config"
)

// Client issues authenticated calls against the remote store's REST API.
// It is safe for concurrent use; per-run credentials live on the session.
type Client struct {
	httpClient *http.Client
	siteURL    string
	tokens     TokenProvider
	retryCount int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient constructs a Client from configuration. The retry policy is
// fixed-delay: RetryCount additional attempts with RetryDelaySec between them.
func NewClient(cfg config.SharePointConfig, tokens TokenProvider, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   time.Duration(cfg.HTTPTimeoutSec) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		siteURL:    strings.TrimRight(cfg.SiteURL, "/"),
		tokens:     tokens,
		retryCount: cfg.RetryCount,
		retryDelay: time.Duration(cfg.RetryDelaySec) * time.Second,
		logger:     logger,
	}
}

// Connect obtains the bearer token and the form digest for one run.
func (c *Client) Connect(ctx context.Context) (Session, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	digest, err := c.formDigest(ctx, token)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	return &session{client: c, token: token, digest: digest}, nil
}

// formDigest fetches the anti-forgery digest required on state-changing calls.
func (c *Client) formDigest(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.siteURL+"/_api/contextinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json;odata=verbose")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contextinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("contextinfo returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		D struct {
			GetContextWebInformation struct {
				FormDigestValue string `json:"FormDigestValue"`
			} `json:"GetContextWebInformation"`
		} `json:"d"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode contextinfo response: %w", err)
	}
	digest := payload.D.GetContextWebInformation.FormDigestValue
	if digest == "" {
		return "", fmt.Errorf("contextinfo response carried no form digest")
	}
	return digest, nil
}

type session struct {
	client *Client
	token  string
	digest string
}

// EnsureFolder creates the folder via a metadata-typed JSON POST. Folder
// creation is idempotent: an "already exists" response body is success.
func (s *session) EnsureFolder(ctx context.Context, serverRelativeURL string) error {
	payload, err := json.Marshal(map[string]any{
		"__metadata":        map[string]string{"type": "SP.Folder"},
		"ServerRelativeUrl": serverRelativeURL,
	})
	if err != nil {
		return &FolderError{Path: serverRelativeURL, Err: err}
	}
	endpoint := s.client.siteURL + "/_api/web/folders"

	err = s.client.withRetry(ctx, "create folder "+serverRelativeURL, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		s.setHeaders(req, "application/json;odata=verbose")

		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		body, _ := io.ReadAll(resp.Body)
		if strings.Contains(string(body), "already exists") {
			return nil
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	})
	if err != nil {
		return &FolderError{Path: serverRelativeURL, Err: err}
	}
	return nil
}

// UploadFile posts the file content with overwrite enabled. Every attempt
// re-reads the file from disk so transient local I/O errors are retried too.
func (s *session) UploadFile(ctx context.Context, folderURL, localPath string) error {
	filename := filepath.Base(localPath)
	endpoint := fmt.Sprintf("%s/_api/web/GetFolderByServerRelativeUrl('%s')/Files/add(url='%s',overwrite=true)",
		s.client.siteURL, folderURL, filename)

	err := s.client.withRetry(ctx, "upload "+filename, func() error {
		content, err := os.ReadFile(localPath)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
		if err != nil {
			return err
		}
		s.setHeaders(req, "application/octet-stream")

		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	})
	if err != nil {
		return &UploadError{File: filename, Err: err}
	}
	return nil
}

func (s *session) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json;odata=verbose")
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-RequestDigest", s.digest)
}

// withRetry runs fn under the shared retry policy: attempt 0 is the first
// try, then up to retryCount retries after sleeping retryDelay each time.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	_, err := backoff.Retry(ctx,
		func() (struct{}, error) { return struct{}{}, fn() },
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(uint(c.retryCount)+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.logger.Warn("remote call failed, retrying", "op", op, "delay", delay, "error", err)
		}),
	)
	return err
}
