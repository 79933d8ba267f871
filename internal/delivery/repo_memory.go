package delivery

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository for tests and local runs.
type MemoryRepo struct {
	mu   sync.Mutex
	logs []EmailLog
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, l EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EmailLog, 0)
	for i := len(r.logs) - 1; i >= 0; i-- {
		l := r.logs[i]
		if f.ReportConfigID != "" && l.ReportConfigID != f.ReportConfigID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Logs returns every row in append order.
func (r *MemoryRepo) Logs() []EmailLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EmailLog, len(r.logs))
	copy(out, r.logs)
	return out
}
