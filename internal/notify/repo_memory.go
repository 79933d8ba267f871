package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu   sync.Mutex
	msgs map[string]Message

	failEnqueue error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{msgs: map[string]Message{}}
}

func (r *MemoryRepo) Enqueue(ctx context.Context, msgs []Message) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEnqueue != nil {
		return 0, r.failEnqueue
	}
	added := 0
	for _, m := range msgs {
		if r.queuedLocked(m.CallRecordID, m.RecipientEmail) {
			continue
		}
		r.msgs[m.ID] = m
		added++
	}
	return added, nil
}

// FailEnqueue makes Enqueue return err until it is called again with nil.
func (r *MemoryRepo) FailEnqueue(err error) {
	r.mu.Lock()
	r.failEnqueue = err
	r.mu.Unlock()
}

func (r *MemoryRepo) queuedLocked(callRecordID, email string) bool {
	for _, m := range r.msgs {
		if m.CallRecordID == callRecordID && m.RecipientEmail == email {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := make([]Message, 0)
	for _, m := range r.msgs {
		if m.Status == StatusPending && !m.NextAttemptAt.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, m := range due {
		m.NextAttemptAt = now.Add(lease)
		r.msgs[m.ID] = m
	}
	return due, nil
}

func (r *MemoryRepo) MarkSent(ctx context.Context, id string, attempts int, now time.Time) error {
	return r.update(id, func(m *Message) {
		m.Status = StatusSent
		m.Attempts = attempts
		m.UpdatedAt = now
	})
}

func (r *MemoryRepo) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, now time.Time) error {
	return r.update(id, func(m *Message) {
		m.Attempts = attempts
		m.NextAttemptAt = next
		m.LastError = &lastErr
		m.UpdatedAt = now
	})
}

func (r *MemoryRepo) MarkDead(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	return r.update(id, func(m *Message) {
		m.Status = StatusDead
		m.Attempts = attempts
		m.LastError = &lastErr
		m.UpdatedAt = now
	})
}

func (r *MemoryRepo) update(id string, fn func(*Message)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return ErrNotFound
	}
	fn(&m)
	r.msgs[id] = m
	return nil
}

// Messages returns a snapshot ordered by creation time then recipient.
func (r *MemoryRepo) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RecipientEmail < out[j].RecipientEmail
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
