package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"callscreen-platform/internal/config"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// SMTPMailer delivers messages over SMTP, upgrading with STARTTLS when the
// server offers it.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration

	clock func() time.Time
}

func NewSMTP(cfg config.MailConfig) *SMTPMailer {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.From,
		timeout:  timeout,
		clock:    time.Now,
	}
}

// Send opens one SMTP session per message. go-mail clients hold a single
// connection, and the scheduler and outbox dispatcher send concurrently.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id := uuid.NewString() + "@" + m.host
	out, err := buildMsg(m.from, msg, id, m.clock())
	if err != nil {
		return "", err
	}

	client, err := mail.NewClient(m.host, m.clientOptions()...)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return "<" + id + ">", nil
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTLSConfig(&tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12}),
		mail.WithTimeout(m.timeout),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	return opts
}

// buildMsg renders msg with a text/html alternative body followed by the
// attachments. messageID is given without angle brackets.
func buildMsg(from string, msg Message, messageID string, now time.Time) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, fmt.Errorf("mailer: from: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	out.Subject(msg.Subject)
	out.SetMessageIDWithValue(messageID)
	out.SetDateWithValue(now)

	switch {
	case msg.Text != "" && msg.HTML != "":
		out.SetBodyString(mail.TypeTextPlain, msg.Text)
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.Text != "":
		out.SetBodyString(mail.TypeTextPlain, msg.Text)
	default:
		out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	}

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := out.AttachReader(a.Filename, bytes.NewReader(a.Data), mail.WithFileContentType(mail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("mailer: attach %s: %w", a.Filename, err)
		}
	}
	return out, nil
}
