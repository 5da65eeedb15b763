// Package notify sends the success and failure emails that close out an
// orchestration run.
package notify

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"docrelay/internal/config"
	"docrelay/internal/staging"
)

//go:embed templates/*.html
var templateFS embed.FS

// Notifier reports the outcome of an orchestration run. Implementations must
// not raise: send failures are logged and swallowed so the relay path is
// never blocked on mail delivery.
type Notifier interface {
	// NotifySuccess emails the submitter and the operations address. The two
	// sends are independent: one failing does not suppress the other.
	NotifySuccess(email, displayName, remoteFolder string)
	// NotifyFailure emails the configured support addresses. A warning is
	// logged and nothing is sent when none are configured.
	NotifyFailure(cause error, email string)
	// NotifySystemError emails support about an unexpected error outside the
	// relay pipeline, with the stack trace attached.
	NotifySystemError(email string, cause error, stack string)
}

// EmailNotifier renders named templates and delivers them through a Mailer.
type EmailNotifier struct {
	mailer     Mailer
	support    []string
	operations string
	logger     *slog.Logger
	templates  *template.Template
	now        func() time.Time
}

// NewEmailNotifier builds a Notifier from the SMTP configuration.
func NewEmailNotifier(mailer Mailer, cfg config.SMTPConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		mailer:     mailer,
		support:    cfg.SupportEmails,
		operations: cfg.OperationsEmail,
		logger:     logger,
		templates:  template.Must(template.ParseFS(templateFS, "templates/*.html")),
		now:        time.Now,
	}
}

func (n *EmailNotifier) NotifySuccess(email, displayName, remoteFolder string) {
	date := n.now().Format("2006-01-02 15:04:05")

	n.send([]string{email}, "Your documents were delivered", "upload_success_user.html", map[string]string{
		"DisplayName": displayName,
		"UploadDate":  date,
	})

	if n.operations == "" {
		n.logger.Warn("no operations address configured, skipping informational email")
		return
	}
	n.send([]string{n.operations}, "New document upload", "upload_success_ops.html", map[string]string{
		"DisplayName":  displayName,
		"UploadDate":   date,
		"RemoteFolder": remoteFolder,
	})
}

func (n *EmailNotifier) NotifyFailure(cause error, email string) {
	if len(n.support) == 0 {
		n.logger.Warn("no support addresses configured, dropping failure notification", "email", email)
		return
	}
	n.send(n.support, "Document delivery failed", "upload_failure_support.html", map[string]string{
		"Email":        email,
		"FailureDate":  n.now().Format("2006-01-02 15:04:05"),
		"ErrorMessage": cause.Error(),
	})
}

func (n *EmailNotifier) NotifySystemError(email string, cause error, stack string) {
	if len(n.support) == 0 {
		n.logger.Warn("no support addresses configured, dropping system error notification")
		return
	}
	n.send(n.support, "System error in document relay", "system_error_support.html", map[string]string{
		"Email":        email,
		"ErrorDate":    n.now().Format("2006-01-02 15:04:05"),
		"ErrorMessage": cause.Error(),
		"Stack":        stack,
	})
}

// send renders one template and delivers it. Failures are logged, never
// returned: a lost notification must not fail the run it reports on.
func (n *EmailNotifier) send(to []string, subject, templateName string, data map[string]string) {
	var body bytes.Buffer
	if err := n.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		n.logger.Error("failed to render notification template", "template", templateName, "error", err)
		return
	}
	if err := n.mailer.Send(to, subject, body.String()); err != nil {
		n.logger.Error("failed to send notification email", "to", to, "subject", subject, "error", err)
		return
	}
	n.logger.Info("notification email sent", "to", to, "subject", subject)
}

// DisplayName resolves the submitter's display name: the identification
// record's name field when the staging directory still exists, otherwise the
// local part of the email address.
func DisplayName(stagingDir, email string) string {
	if name, err := staging.ReadRecordName(stagingDir); err == nil && name != "" {
		return name
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
