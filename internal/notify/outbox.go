package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"callscreen-platform/internal/calls"
	"callscreen-platform/internal/users"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the notification outbox.
type Repository interface {
	// Enqueue stores msgs and returns how many were new. A message for a
	// call and recipient that is already queued is skipped.
	Enqueue(ctx context.Context, msgs []Message) (int, error)
	// ClaimDue returns up to limit pending messages whose next attempt is due
	// and pushes their next_attempt_at forward by lease so concurrent
	// dispatchers skip them.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Message, error)
	MarkSent(ctx context.Context, id string, attempts int, now time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, now time.Time) error
	MarkDead(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error
}

// RecipientSource lists who receives notifications.
type RecipientSource interface {
	ListNotificationRecipients(ctx context.Context) ([]users.Recipient, error)
}

// Outbox records owed notifications after a call has been stored.
// Delivery happens later in Dispatcher, so a slow mail server never delays
// webhook ingestion.
type Outbox struct {
	repo        Repository
	recipients  RecipientSource
	maxAttempts int
	clock       func() time.Time
}

func NewOutbox(repo Repository, recipients RecipientSource, maxAttempts int) *Outbox {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Outbox{repo: repo, recipients: recipients, maxAttempts: maxAttempts, clock: time.Now}
}

// EnqueueNewCall adds one pending message per notification recipient.
// It returns the number of messages enqueued. Calling it again for the same
// call only fills in recipients that are missing, so a webhook redelivery
// can safely repeat it.
func (o *Outbox) EnqueueNewCall(ctx context.Context, rec calls.CallRecord) (int, error) {
	if o == nil || o.repo == nil {
		return 0, errors.New("notify: outbox not configured")
	}
	recipients, err := o.recipients.ListNotificationRecipients(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	now := o.clock().UTC()
	payload, err := json.Marshal(NewCall{
		CallRecordID:   rec.ID,
		ConversationID: rec.ConversationID,
		AgentID:        rec.AgentID,
		Name:           strings.TrimSpace(rec.FirstName + " " + rec.LastName),
		Phone:          rec.Phone,
		Qualification:  rec.Qualified.Label(),
		CallDuration:   rec.ExtractedData.CallDuration,
		Summary:        rec.ExtractedData.TranscriptSummary,
		ReceivedAt:     now,
	})
	if err != nil {
		return 0, err
	}

	msgs := make([]Message, 0, len(recipients))
	for _, r := range recipients {
		msgs = append(msgs, Message{
			ID:             uuid.NewString(),
			CallRecordID:   rec.ID,
			ConversationID: rec.ConversationID,
			RecipientEmail: r.Email,
			Payload:        payload,
			Status:         StatusPending,
			MaxAttempts:    o.maxAttempts,
			NextAttemptAt:  now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return o.repo.Enqueue(ctx, msgs)
}
