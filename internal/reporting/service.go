package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConfigRepository persists report configs.
type ConfigRepository interface {
	Create(ctx context.Context, cfg ReportConfig) (ReportConfig, error)
	Get(ctx context.Context, id string) (ReportConfig, error)
	List(ctx context.Context) ([]ReportConfig, error)
	Update(ctx context.Context, cfg ReportConfig) (ReportConfig, error)
	Delete(ctx context.Context, id string) error

	// ListDue returns enabled configs whose next_send_at is NULL or <= now.
	ListDue(ctx context.Context, now time.Time) ([]ReportConfig, error)
	ListEnabled(ctx context.Context) ([]ReportConfig, error)
	UpdateSchedule(ctx context.Context, id string, lastSentAt, nextSendAt time.Time) error
}

// ConfigService validates and stores report configs.
type ConfigService struct {
	repo  ConfigRepository
	clock func() time.Time
}

func NewConfigService(repo ConfigRepository) *ConfigService {
	return &ConfigService{repo: repo, clock: time.Now}
}

// Create stores a new config. NextSendAt starts one cadence step from now
// so a new config does not fire on the next tick.
func (s *ConfigService) Create(ctx context.Context, cfg ReportConfig) (ReportConfig, error) {
	if s.repo == nil {
		return ReportConfig{}, errors.New("reporting: repository not configured")
	}
	cfg = normalize(cfg)
	if err := Validate(cfg); err != nil {
		return ReportConfig{}, err
	}

	now := s.clock().UTC()
	cfg.ID = uuid.NewString()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	cfg.LastSentAt = nil
	next := NextSendAt(cfg, now)
	cfg.NextSendAt = &next

	return s.repo.Create(ctx, cfg)
}

func (s *ConfigService) Get(ctx context.Context, id string) (ReportConfig, error) {
	if id == "" {
		return ReportConfig{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *ConfigService) List(ctx context.Context) ([]ReportConfig, error) {
	return s.repo.List(ctx)
}

// Update replaces the editable fields of a config. The scheduling cursor is
// kept unless the cadence changed or the config was re-enabled.
func (s *ConfigService) Update(ctx context.Context, id string, in ReportConfig) (ReportConfig, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return ReportConfig{}, err
	}
	in = normalize(in)
	if err := Validate(in); err != nil {
		return ReportConfig{}, err
	}

	now := s.clock().UTC()
	in.ID = existing.ID
	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = now
	in.LastSentAt = existing.LastSentAt
	in.NextSendAt = existing.NextSendAt
	if !in.sameCadence(existing) || (in.Enabled && !existing.Enabled) {
		next := NextSendAt(in, now)
		in.NextSendAt = &next
	}
	return s.repo.Update(ctx, in)
}

func (s *ConfigService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Seed creates each config whose name is not already present.
// It returns the number of configs created.
func (s *ConfigService) Seed(ctx context.Context, configs []ReportConfig) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	names := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		names[c.Name] = struct{}{}
	}

	created := 0
	for _, c := range configs {
		if _, ok := names[c.Name]; ok {
			continue
		}
		if _, err := s.Create(ctx, c); err != nil {
			return created, fmt.Errorf("seed %q: %w", c.Name, err)
		}
		names[c.Name] = struct{}{}
		created++
	}
	return created, nil
}

func normalize(cfg ReportConfig) ReportConfig {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(cfg.Frequency))))
	if cfg.FrequencyValue < 1 {
		cfg.FrequencyValue = 1
	}
	if cfg.ReportType == "" {
		cfg.ReportType = "summary"
	}
	if cfg.SubjectTemplate == "" {
		cfg.SubjectTemplate = "{period}"
	}
	return cfg
}

// Validate checks a config as submitted through the admin API or seed file.
func Validate(cfg ReportConfig) error {
	var problems []string
	if cfg.Name == "" {
		problems = append(problems, "name is required")
	}
	if !cfg.Frequency.Valid() {
		problems = append(problems, "frequency must be daily, weekly or monthly")
	}
	if cfg.HourOfDay < 0 || cfg.HourOfDay > 23 {
		problems = append(problems, "hour_of_day must be 0-23")
	}
	if cfg.DayOfWeek != nil && (*cfg.DayOfWeek < 0 || *cfg.DayOfWeek > 6) {
		problems = append(problems, "day_of_week must be 0-6")
	}
	if cfg.DayOfMonth != nil && (*cfg.DayOfMonth < 1 || *cfg.DayOfMonth > 31) {
		problems = append(problems, "day_of_month must be 1-31")
	}
	for _, m := range cfg.IncludeMetrics {
		if !m.Valid() {
			problems = append(problems, fmt.Sprintf("unknown metric %q", m))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
