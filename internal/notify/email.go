package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/config"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var htmlPolicy = bluemonday.UGCPolicy()

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender renders a message and delivers it over SMTP.
type EmailSender struct {
	cfg      config.NotificationConfig
	sendMail SendMailFunc
	logger   *zap.Logger
}

// NewEmailSender builds a sender. A nil sendMail uses smtp.SendMail.
func NewEmailSender(cfg config.NotificationConfig, sendMail SendMailFunc, logger *zap.Logger) *EmailSender {
	if sendMail == nil {
		sendMail = smtp.SendMail
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSender{cfg: cfg, sendMail: sendMail, logger: logger}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := cleanAddress(msg.To)
	if err != nil {
		return fmt.Errorf("invalid To address: %w", err)
	}
	from, err := cleanAddress(s.cfg.EmailFrom)
	if err != nil {
		return fmt.Errorf("invalid From address: %w", err)
	}

	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	var raw bytes.Buffer
	raw.WriteString("From: " + from + "\r\n")
	raw.WriteString("To: " + to + "\r\n")
	raw.WriteString("Subject: " + subject + "\r\n")
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	raw.WriteString(body)

	if strings.TrimSpace(s.cfg.SMTPHost) == "" {
		s.logger.Info("smtp host not configured, skipping delivery",
			zap.String("type", string(msg.Type)),
			zap.String("ticket_id", msg.TicketID),
			zap.String("to", to))
		return nil
	}

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.sendMail(s.cfg.SMTPAddr(), auth, from, []string{to}, raw.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Render produces the subject line and sanitized HTML body for msg.
func Render(msg Message) (string, string, error) {
	var subj, body bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&subj, string(msg.Type)+"_subject", msg); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := mailTemplates.ExecuteTemplate(&body, string(msg.Type)+"_body", msg); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return headerSafe(subj.String()), htmlPolicy.Sanitize(body.String()), nil
}

// headerSafe strips CR and LF so user text cannot inject headers.
func headerSafe(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	v = strings.ReplaceAll(v, "\n", "")
	return strings.TrimSpace(v)
}

func cleanAddress(addr string) (string, error) {
	addr = headerSafe(addr)
	if addr == "" {
		return "", fmt.Errorf("email address cannot be empty")
	}
	if !emailRegex.MatchString(addr) {
		return "", fmt.Errorf("invalid email address format: %s", addr)
	}
	return addr, nil
}
