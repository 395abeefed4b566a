// Package notification sends run-health alerts by email, ported from the
// teacher's internal/notification.EmailNotifier.
package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"nettopo/internal/config"
)

// Notifier delivers a subject/body alert somewhere.
type Notifier interface {
	Send(subject, body string) error
}

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	cfg  config.AlerterConfig
	auth smtp.Auth
}

// NewEmailNotifier builds an EmailNotifier from the alerter config. Auth is
// only attempted if cfg carries no credentials-free relay (anonymous
// internal relays are common for run-health alerting); smtp.SendMail skips
// AUTH when auth is nil.
func NewEmailNotifier(cfg config.AlerterConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

// Send delivers subject/body as an HTML email to every configured
// recipient.
func (n *EmailNotifier) Send(subject, body string) error {
	if n.cfg.SMTPAddr == "" || len(n.cfg.MailTo) == 0 {
		return nil
	}
	msg := []byte("To: " + strings.Join(n.cfg.MailTo, ",") + "\r\n" +
		"From: " + n.cfg.MailFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)

	if err := smtp.SendMail(n.cfg.SMTPAddr, n.auth, n.cfg.MailFrom, n.cfg.MailTo, msg); err != nil {
		return fmt.Errorf("notification: send mail: %w", err)
	}
	return nil
}
