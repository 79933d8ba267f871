package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for email logs.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, l EmailLog) error
	List(ctx context.Context, f Filter) ([]EmailLog, error)
}

// Logger records report delivery attempts.
type Logger struct {
	repo  Repository
	clock func() time.Time
}

func NewLogger(repo Repository) *Logger {
	return &Logger{repo: repo, clock: time.Now}
}

var ErrInvalidAttempt = errors.New("delivery: invalid attempt")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// RecordSent appends a sent row carrying the provider's message id.
func (l *Logger) RecordSent(ctx context.Context, a Attempt, messageID string) (EmailLog, error) {
	row, err := l.build(a, StatusSent)
	if err != nil {
		return EmailLog{}, err
	}
	if messageID != "" {
		row.ProviderMessageID = &messageID
	}
	return row, l.repo.Append(ctx, row)
}

// RecordFailed appends a failed row carrying the send error.
func (l *Logger) RecordFailed(ctx context.Context, a Attempt, sendErr error) (EmailLog, error) {
	row, err := l.build(a, StatusFailed)
	if err != nil {
		return EmailLog{}, err
	}
	msg := "unknown error"
	if sendErr != nil {
		msg = sendErr.Error()
	}
	row.ErrorMessage = &msg
	return row, l.repo.Append(ctx, row)
}

// List returns logs newest first.
func (l *Logger) List(ctx context.Context, f Filter) ([]EmailLog, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	if f.Status != "" && f.Status != StatusSent && f.Status != StatusFailed {
		return nil, ErrInvalidAttempt
	}
	return l.repo.List(ctx, f)
}

func (l *Logger) build(a Attempt, status Status) (EmailLog, error) {
	if l.repo == nil {
		return EmailLog{}, errors.New("delivery: repository not configured")
	}
	if a.ReportConfigID == "" || a.RecipientEmail == "" {
		return EmailLog{}, ErrInvalidAttempt
	}

	row := EmailLog{
		ID:                uuid.NewString(),
		ReportConfigID:    a.ReportConfigID,
		RecipientEmail:    a.RecipientEmail,
		Subject:           a.Subject,
		Status:            status,
		ReportPeriodStart: a.PeriodStart,
		ReportPeriodEnd:   a.PeriodEnd,
		SentAt:            l.clock().UTC(),
	}
	if a.RecipientUserID != "" {
		uid := a.RecipientUserID
		row.RecipientUserID = &uid
	}
	if a.Snapshot != nil {
		b, err := json.Marshal(a.Snapshot)
		if err != nil {
			return EmailLog{}, fmt.Errorf("encode report data: %w", err)
		}
		row.ReportData = b
	}
	return row, nil
}
