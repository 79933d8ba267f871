package reporting

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryConfigRepo is an in-memory ConfigRepository for tests and local runs.
type MemoryConfigRepo struct {
	mu      sync.Mutex
	configs map[string]ReportConfig
}

func NewMemoryConfigRepo() *MemoryConfigRepo {
	return &MemoryConfigRepo{configs: map[string]ReportConfig{}}
}

func (r *MemoryConfigRepo) Create(ctx context.Context, cfg ReportConfig) (ReportConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = clone(cfg)
	return clone(cfg), nil
}

func (r *MemoryConfigRepo) Get(ctx context.Context, id string) (ReportConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return ReportConfig{}, ErrNotFound
	}
	return clone(cfg), nil
}

func (r *MemoryConfigRepo) List(ctx context.Context) ([]ReportConfig, error) {
	return r.filter(func(ReportConfig) bool { return true }), nil
}

func (r *MemoryConfigRepo) Update(ctx context.Context, cfg ReportConfig) (ReportConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[cfg.ID]; !ok {
		return ReportConfig{}, ErrNotFound
	}
	r.configs[cfg.ID] = clone(cfg)
	return clone(cfg), nil
}

func (r *MemoryConfigRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[id]; !ok {
		return ErrNotFound
	}
	delete(r.configs, id)
	return nil
}

func (r *MemoryConfigRepo) ListDue(ctx context.Context, now time.Time) ([]ReportConfig, error) {
	return r.filter(func(c ReportConfig) bool { return c.Due(now) }), nil
}

func (r *MemoryConfigRepo) ListEnabled(ctx context.Context) ([]ReportConfig, error) {
	return r.filter(func(c ReportConfig) bool { return c.Enabled }), nil
}

func (r *MemoryConfigRepo) UpdateSchedule(ctx context.Context, id string, lastSentAt, nextSendAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return ErrNotFound
	}
	cfg.LastSentAt = &lastSentAt
	cfg.NextSendAt = &nextSendAt
	cfg.UpdatedAt = lastSentAt
	r.configs[id] = cfg
	return nil
}

func (r *MemoryConfigRepo) filter(keep func(ReportConfig) bool) []ReportConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReportConfig, 0, len(r.configs))
	for _, c := range r.configs {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// clone copies pointer and slice fields so callers cannot mutate stored state.
func clone(c ReportConfig) ReportConfig {
	c.IncludeMetrics = append([]Metric(nil), c.IncludeMetrics...)
	c.DayOfWeek = copyPtr(c.DayOfWeek)
	c.DayOfMonth = copyPtr(c.DayOfMonth)
	c.LastSentAt = copyPtr(c.LastSentAt)
	c.NextSendAt = copyPtr(c.NextSendAt)
	return c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
