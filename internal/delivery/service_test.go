package delivery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLogger() (*Logger, *MemoryRepo) {
	repo := NewMemoryRepo()
	l := NewLogger(repo)
	l.clock = func() time.Time { return time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC) }
	return l, repo
}

func attempt(to string) Attempt {
	return Attempt{
		ReportConfigID:  "cfg_1",
		RecipientEmail:  to,
		RecipientUserID: "user_" + to,
		Subject:         "Daily Report - Mar 14, 2024",
		PeriodStart:     time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		PeriodEnd:       time.Date(2024, 3, 14, 23, 59, 59, 999_000_000, time.UTC),
		Snapshot:        map[string]int{"total_calls": 3},
	}
}

func TestLogger_RecordSentAndFailed(t *testing.T) {
	l, repo := newTestLogger()
	ctx := context.Background()

	if _, err := l.RecordSent(ctx, attempt("a@example.com"), "msg-1"); err != nil {
		t.Fatalf("sent: %v", err)
	}
	if _, err := l.RecordFailed(ctx, attempt("b@example.com"), errors.New("mailbox full")); err != nil {
		t.Fatalf("failed: %v", err)
	}

	logs := repo.Logs()
	if len(logs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(logs))
	}
	sent, failed := logs[0], logs[1]
	if sent.Status != StatusSent || sent.ProviderMessageID == nil || *sent.ProviderMessageID != "msg-1" || sent.ErrorMessage != nil {
		t.Fatalf("unexpected sent row %+v", sent)
	}
	if failed.Status != StatusFailed || failed.ErrorMessage == nil || *failed.ErrorMessage != "mailbox full" || failed.ProviderMessageID != nil {
		t.Fatalf("unexpected failed row %+v", failed)
	}
	if string(sent.ReportData) != `{"total_calls":3}` {
		t.Fatalf("unexpected snapshot %s", sent.ReportData)
	}
	if sent.ID == failed.ID || sent.ID == "" {
		t.Fatalf("expected distinct ids")
	}
	if sent.RecipientUserID == nil || *sent.RecipientUserID != "user_a@example.com" {
		t.Fatalf("expected recipient user id")
	}
}

func TestLogger_RejectsInvalidAttempt(t *testing.T) {
	l, repo := newTestLogger()
	a := attempt("")
	if _, err := l.RecordSent(context.Background(), a, "x"); !errors.Is(err, ErrInvalidAttempt) {
		t.Fatalf("expected ErrInvalidAttempt, got %v", err)
	}
	if len(repo.Logs()) != 0 {
		t.Fatalf("expected nothing appended")
	}
}

func TestLogger_ListFiltersNewestFirst(t *testing.T) {
	l, _ := newTestLogger()
	ctx := context.Background()
	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := l.RecordSent(ctx, attempt(to), "id"); err != nil {
			t.Fatalf("sent: %v", err)
		}
	}
	other := attempt("d@example.com")
	other.ReportConfigID = "cfg_2"
	if _, err := l.RecordFailed(ctx, other, errors.New("boom")); err != nil {
		t.Fatalf("failed: %v", err)
	}

	got, err := l.List(ctx, Filter{ReportConfigID: "cfg_1", Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].RecipientEmail != "c@example.com" {
		t.Fatalf("unexpected page %+v", got)
	}

	got, _ = l.List(ctx, Filter{Status: StatusFailed})
	if len(got) != 1 || got[0].ReportConfigID != "cfg_2" {
		t.Fatalf("unexpected failed filter result %+v", got)
	}

	if _, err := l.List(ctx, Filter{Status: "bounced"}); !errors.Is(err, ErrInvalidAttempt) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}
