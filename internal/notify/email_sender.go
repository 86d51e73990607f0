package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shanehull/classmonitor/internal/types"

	gomail "gopkg.in/mail.v2"
)

// EmailConfig holds SMTP configuration for sending emails.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
	SourceURL  string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c EmailConfig) Enabled() bool {
	return c.SMTPServer != "" && c.SMTPUser != "" && c.SMTPPass != "" && c.ToEmail != ""
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers notifications via SMTP.
type EmailSender struct {
	cfg      EmailConfig
	renderer *HTMLEmailRenderer
	dialer   dialer
	logger   *slog.Logger
	now      func() time.Time
}

func NewEmailSender(cfg EmailConfig, logger *slog.Logger) *EmailSender {
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.SMTPUser
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	d.Timeout = 10 * time.Second

	return &EmailSender{
		cfg:      cfg,
		renderer: NewHTMLEmailRenderer(),
		dialer:   d,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *EmailSender) Name() string { return "email" }

// Notify delivers an email with HTML body and plain text fallback.
func (s *EmailSender) Notify(_ context.Context, n types.Notification) error {
	msg, err := s.renderer.Render(NewNotificationData(n, s.cfg.SourceURL, s.now()))
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", s.cfg.ToEmail)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s (subject: %s): %w", s.cfg.ToEmail, msg.Subject, err)
	}

	s.logger.Info("notify: email sent", "subject", msg.Subject)
	return nil
}
