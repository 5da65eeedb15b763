package notify

import (
	"gopkg.in/gomail.v2"

	"docrelay/internal/config"
)

// Mailer delivers a rendered HTML email.
type Mailer interface {
	Send(to []string, subject, htmlBody string) error
}

// SMTPMailer delivers email over an authenticated SMTP connection.
type SMTPMailer struct {
	dialer      *gomail.Dialer
	senderName  string
	senderEmail string
}

// NewSMTPMailer constructs a Mailer from the SMTP configuration.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:      gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		senderName:  cfg.SenderName,
		senderEmail: cfg.SenderEmail,
	}
}

func (m *SMTPMailer) Send(to []string, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.senderEmail, m.senderName))
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return m.dialer.DialAndSend(msg)
}
