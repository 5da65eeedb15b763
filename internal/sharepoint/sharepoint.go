// Package sharepoint contains the client for the remote document store:
// authenticated folder-creation and file-upload calls against its REST API,
// with a uniform bounded retry policy.
package sharepoint

import (
	"context"
	"fmt"
)

// Store hands out authenticated sessions against the remote document store.
type Store interface {
	// Connect obtains an access token and a form digest. Both are reused for
	// every call made through the returned session, never fetched per file.
	Connect(ctx context.Context) (Session, error)
}

// Session is one authenticated run against the remote store. Sessions are
// short-lived: one per orchestration run.
type Session interface {
	// EnsureFolder creates the folder at the given server-relative URL.
	// An "already exists" response is success.
	EnsureFolder(ctx context.Context, serverRelativeURL string) error
	// UploadFile uploads the local file into the remote folder with
	// overwrite semantics. The file is re-read from disk on every attempt.
	UploadFile(ctx context.Context, folderURL, localPath string) error
}

// AuthError reports a failed credential or token exchange. No remote side
// effects were attempted when it is returned.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// FolderError reports folder creation that failed after exhausting retries.
type FolderError struct {
	Path string
	Err  error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("create remote folder %s: %v", e.Path, e.Err)
}
func (e *FolderError) Unwrap() error { return e.Err }

// UploadError reports a file upload that failed after exhausting retries.
type UploadError struct {
	File string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload remote file %s: %v", e.File, e.Err)
}
func (e *UploadError) Unwrap() error { return e.Err }
