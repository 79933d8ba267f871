package mailer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer sends one message and returns the transport's message id.
// Implementations must honour ctx cancellation and deadlines.
type Mailer interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

var ErrInvalidMessage = errors.New("mailer: invalid message")

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" || strings.ContainsAny(msg.To, "\r\n") {
		return ErrInvalidMessage
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return ErrInvalidMessage
	}
	if msg.HTML == "" && msg.Text == "" {
		return ErrInvalidMessage
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
// It is used when no SMTP host is configured.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "mail not sent (log mailer)",
		"message_id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	return id, nil
}
