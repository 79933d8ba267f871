package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"callscreen-platform/internal/calls"
	"callscreen-platform/internal/extraction"
	"callscreen-platform/internal/users"
)

func testRecord() calls.CallRecord {
	return calls.CallRecord{
		ID:             "rec_1",
		ConversationID: "conv_1",
		AgentID:        "agent_1",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Phone:          "5551234567",
		Qualified:      calls.Qualified,
		ExtractedData:  extraction.ExtractedData{CallDuration: 95, TranscriptSummary: "good fit"},
	}
}

func testRecipients() *users.MemoryRepo {
	return users.NewMemoryRepo(
		users.User{ID: "u1", Email: "a@example.com", NotificationsEnabled: true},
		users.User{ID: "u2", Email: "b@example.com", NotificationsEnabled: true},
		users.User{ID: "u3", Email: "c@example.com", NotificationsEnabled: false},
	)
}

func TestEnqueueNewCall_OneMessagePerRecipient(t *testing.T) {
	repo := NewMemoryRepo()
	o := NewOutbox(repo, testRecipients(), 3)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	o.clock = func() time.Time { return now }

	n, err := o.EnqueueNewCall(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}

	msgs := repo.Messages()
	if len(msgs) != 2 || msgs[0].RecipientEmail != "a@example.com" || msgs[1].RecipientEmail != "b@example.com" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	for _, m := range msgs {
		if m.Status != StatusPending || m.MaxAttempts != 3 || !m.NextAttemptAt.Equal(now) {
			t.Fatalf("unexpected message state: %+v", m)
		}
	}

	var p NewCall
	if err := json.Unmarshal(msgs[0].Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Name != "Ada Lovelace" || p.Qualification != "Qualified" || p.CallDuration != 95 {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestEnqueueNewCall_NoRecipients(t *testing.T) {
	repo := NewMemoryRepo()
	o := NewOutbox(repo, users.NewMemoryRepo(), 0)
	n, err := o.EnqueueNewCall(context.Background(), testRecord())
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
	if len(repo.Messages()) != 0 {
		t.Fatalf("expected empty outbox")
	}
}

func TestMemoryRepo_ClaimDueLeases(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	if _, err := repo.Enqueue(context.Background(), []Message{
		{ID: "m1", CallRecordID: "rec_1", RecipientEmail: "a@example.com", Status: StatusPending, NextAttemptAt: now.Add(-time.Minute)},
		{ID: "m2", CallRecordID: "rec_1", RecipientEmail: "b@example.com", Status: StatusPending, NextAttemptAt: now.Add(time.Minute)},
		{ID: "m3", CallRecordID: "rec_1", RecipientEmail: "c@example.com", Status: StatusSent, NextAttemptAt: now.Add(-time.Minute)},
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := repo.ClaimDue(context.Background(), now, 10, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected only m1 due, got %+v", got)
	}

	again, _ := repo.ClaimDue(context.Background(), now, 10, time.Minute)
	if len(again) != 0 {
		t.Fatalf("expected leased message to be hidden, got %+v", again)
	}
}

func TestEnqueueNewCall_RepeatOnlyFillsMissingRecipients(t *testing.T) {
	repo := NewMemoryRepo()
	recipients := users.NewMemoryRepo(users.User{ID: "u1", Email: "a@example.com", NotificationsEnabled: true})
	o := NewOutbox(repo, recipients, 3)

	if n, err := o.EnqueueNewCall(context.Background(), testRecord()); err != nil || n != 1 {
		t.Fatalf("first enqueue: n=%d err=%v", n, err)
	}
	if n, err := o.EnqueueNewCall(context.Background(), testRecord()); err != nil || n != 0 {
		t.Fatalf("expected repeat to add nothing, got n=%d err=%v", n, err)
	}

	recipients.Add(users.User{ID: "u2", Email: "b@example.com", NotificationsEnabled: true})
	if n, err := o.EnqueueNewCall(context.Background(), testRecord()); err != nil || n != 1 {
		t.Fatalf("expected only the new recipient, got n=%d err=%v", n, err)
	}
	if got := len(repo.Messages()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}

func TestEnqueueNewCall_RepoFailureIsReturned(t *testing.T) {
	repo := NewMemoryRepo()
	repo.FailEnqueue(errors.New("db down"))
	o := NewOutbox(repo, testRecipients(), 3)

	if _, err := o.EnqueueNewCall(context.Background(), testRecord()); err == nil {
		t.Fatalf("expected enqueue error")
	}
	if len(repo.Messages()) != 0 {
		t.Fatalf("expected nothing queued")
	}
}
