// Package notify implements the alert delivery channels: SMTP email and
// queue-backed chat messages.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"

	"budgetwise/internal/core"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// EmailSender delivers alert emails over SMTP.
type EmailSender struct {
	cfg SMTPConfig
	// send is swappable in tests; defaults to a real SMTP send.
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	return &EmailSender{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (s *EmailSender) Send(ctx context.Context, to core.Recipient, subject, body string) error {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{to.Email}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := s.send(e, addr, auth); err != nil {
		return fmt.Errorf("send email to %s: %w", to.Email, err)
	}

	slog.InfoContext(ctx, "Alert email sent", "to", to.Email, "subject", subject)
	return nil
}
