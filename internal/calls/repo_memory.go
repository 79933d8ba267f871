package calls

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory call record repository for tests and local runs.
// A mutex serialises upserts the way the unique constraint does in Postgres.
type MemoryRepo struct {
	mu     sync.Mutex
	byID   map[string]*CallRecord
	byConv map[string]string // conversation_id -> id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]*CallRecord{}, byConv: map[string]string{}}
}

func (r *MemoryRepo) Upsert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byConv[rec.ConversationID]; ok {
		existing := r.byID[id]
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	cp := rec
	r.byID[rec.ID] = &cp
	r.byConv[rec.ConversationID] = rec.ID
	return cp, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return *rec, nil
}

func (r *MemoryRepo) SetQualification(ctx context.Context, id string, q Qualification, now time.Time) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	rec.Qualified = q
	rec.UpdatedAt = now
	return *rec, nil
}

func (r *MemoryRepo) Query(ctx context.Context, f Filter) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CallRecord, 0)
	for _, rec := range r.sortedLocked() {
		if f.AgentID != "" && rec.AgentID != f.AgentID {
			continue
		}
		if f.Search != "" && !matches(rec, f.Search) {
			continue
		}
		out = append(out, rec)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) Stats(ctx context.Context, since time.Time) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st Stats
	for _, rec := range r.byID {
		if !rec.CreatedAt.Before(since) {
			st.TodayCalls++
		}
		switch rec.Qualified {
		case Qualified:
			st.Qualified++
			st.Reviewed++
		case NotQualified:
			st.Reviewed++
		default:
			st.Pending++
		}
	}
	return st, nil
}

func (r *MemoryRepo) ListBetween(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CallRecord, 0)
	for _, rec := range r.sortedLocked() {
		if rec.CreatedAt.Before(from) || rec.CreatedAt.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *MemoryRepo) ListAll(ctx context.Context) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked(), nil
}

// Count returns the number of stored records.
func (r *MemoryRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *MemoryRepo) sortedLocked() []CallRecord {
	out := make([]CallRecord, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matches(rec CallRecord, term string) bool {
	return strings.Contains(rec.FirstName, term) ||
		strings.Contains(rec.LastName, term) ||
		strings.Contains(rec.Phone, term) ||
		strings.Contains(rec.ConversationID, term)
}
