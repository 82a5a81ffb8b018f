package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"shoe-market/internal/config"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer delivers messages; implementations may fail and are not retried.
// Send returns only once the delivery attempt has finished.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer returns a Mailer backed by an SMTP relay.
func NewSMTPMailer(cfg config.SMTPConfig) (Mailer, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.SenderEmail == "" {
		return nil, fmt.Errorf("SMTP host, port, and sender email must be configured")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	switch strings.ToLower(cfg.Encryption) {
	case "ssl":
		dialer.SSL = true
		dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	case "tls", "starttls":
		dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}

	from := cfg.SenderEmail
	if cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderEmail)
	}

	return &smtpMailer{dialer: dialer, from: from}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	gm, err := buildMessage(m.from, msg)
	if err != nil {
		return err
	}

	// A gomail session cannot be interrupted, so ctx only gates the dial.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email sending cancelled: %w", err)
	}
	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMessage renders msg as a multipart/alternative email with a text part and an optional HTML part.
func buildMessage(from string, msg Message) (*gomail.Message, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		return nil, fmt.Errorf("email body (HTML or Text) must be provided")
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		gm.SetBody("text/plain", msg.TextBody)
		gm.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		gm.SetBody("text/html", msg.HTMLBody)
	default:
		gm.SetBody("text/plain", msg.TextBody)
	}
	return gm, nil
}
