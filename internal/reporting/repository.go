package reporting

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"callscreen-platform/pkg/utils"
)

// PostgresConfigRepo stores report configs in the report_configs table.
// include_metrics is a JSONB array of metric names.
type PostgresConfigRepo struct {
	db *sql.DB
}

func NewPostgresConfigRepo(db *sql.DB) *PostgresConfigRepo { return &PostgresConfigRepo{db: db} }

const configColumns = `id, name, enabled, frequency, frequency_value, day_of_week, day_of_month, hour_of_day,
report_type, include_metrics, include_call_details, subject_template, last_sent_at, next_send_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(s rowScanner) (ReportConfig, error) {
	var (
		c          ReportConfig
		dow, dom   sql.NullInt32
		metrics    []byte
		last, next sql.NullTime
	)
	if err := s.Scan(
		&c.ID,
		&c.Name,
		&c.Enabled,
		&c.Frequency,
		&c.FrequencyValue,
		&dow,
		&dom,
		&c.HourOfDay,
		&c.ReportType,
		&metrics,
		&c.IncludeCallDetails,
		&c.SubjectTemplate,
		&last,
		&next,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return ReportConfig{}, err
	}
	c.DayOfWeek = intPtr(dow)
	c.DayOfMonth = intPtr(dom)
	c.LastSentAt = utils.TimePtr(last)
	c.NextSendAt = utils.TimePtr(next)
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &c.IncludeMetrics); err != nil {
			return ReportConfig{}, fmt.Errorf("decode include_metrics: %w", err)
		}
	}
	return c, nil
}

func (r *PostgresConfigRepo) Create(ctx context.Context, c ReportConfig) (ReportConfig, error) {
	metrics, err := encodeMetrics(c.IncludeMetrics)
	if err != nil {
		return ReportConfig{}, err
	}
	q := `
INSERT INTO report_configs (` + configColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + configColumns
	out, err := scanConfig(r.db.QueryRowContext(ctx, q,
		c.ID, c.Name, c.Enabled, string(c.Frequency), c.FrequencyValue,
		nullInt(c.DayOfWeek), nullInt(c.DayOfMonth), c.HourOfDay,
		c.ReportType, metrics, c.IncludeCallDetails, c.SubjectTemplate,
		utils.NullTime(c.LastSentAt), utils.NullTime(c.NextSendAt), c.CreatedAt, c.UpdatedAt,
	))
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return ReportConfig{}, fmt.Errorf("%w: name already exists", ErrInvalidConfig)
		}
		return ReportConfig{}, err
	}
	return out, nil
}

func (r *PostgresConfigRepo) Get(ctx context.Context, id string) (ReportConfig, error) {
	q := `SELECT ` + configColumns + ` FROM report_configs WHERE id = $1`
	c, err := scanConfig(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportConfig{}, ErrNotFound
		}
		return ReportConfig{}, err
	}
	return c, nil
}

func (r *PostgresConfigRepo) List(ctx context.Context) ([]ReportConfig, error) {
	q := `SELECT ` + configColumns + ` FROM report_configs ORDER BY created_at, id`
	return r.list(ctx, q)
}

func (r *PostgresConfigRepo) Update(ctx context.Context, c ReportConfig) (ReportConfig, error) {
	metrics, err := encodeMetrics(c.IncludeMetrics)
	if err != nil {
		return ReportConfig{}, err
	}
	q := `
UPDATE report_configs SET
	name = $2, enabled = $3, frequency = $4, frequency_value = $5,
	day_of_week = $6, day_of_month = $7, hour_of_day = $8,
	report_type = $9, include_metrics = $10, include_call_details = $11,
	subject_template = $12, next_send_at = $13, updated_at = $14
WHERE id = $1
RETURNING ` + configColumns
	out, err := scanConfig(r.db.QueryRowContext(ctx, q,
		c.ID, c.Name, c.Enabled, string(c.Frequency), c.FrequencyValue,
		nullInt(c.DayOfWeek), nullInt(c.DayOfMonth), c.HourOfDay,
		c.ReportType, metrics, c.IncludeCallDetails,
		c.SubjectTemplate, utils.NullTime(c.NextSendAt), c.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportConfig{}, ErrNotFound
		}
		if utils.IsUniqueViolation(err) {
			return ReportConfig{}, fmt.Errorf("%w: name already exists", ErrInvalidConfig)
		}
		return ReportConfig{}, err
	}
	return out, nil
}

func (r *PostgresConfigRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM report_configs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresConfigRepo) ListDue(ctx context.Context, now time.Time) ([]ReportConfig, error) {
	q := `SELECT ` + configColumns + ` FROM report_configs
WHERE enabled = TRUE AND (next_send_at IS NULL OR next_send_at <= $1)
ORDER BY next_send_at NULLS FIRST, id`
	return r.list(ctx, q, now)
}

func (r *PostgresConfigRepo) ListEnabled(ctx context.Context) ([]ReportConfig, error) {
	q := `SELECT ` + configColumns + ` FROM report_configs WHERE enabled = TRUE ORDER BY created_at, id`
	return r.list(ctx, q)
}

func (r *PostgresConfigRepo) UpdateSchedule(ctx context.Context, id string, lastSentAt, nextSendAt time.Time) error {
	const q = `
UPDATE report_configs SET last_sent_at = $2, next_send_at = $3, updated_at = $2
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, id, lastSentAt, nextSendAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresConfigRepo) list(ctx context.Context, q string, args ...any) ([]ReportConfig, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ReportConfig, 0)
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func encodeMetrics(m []Metric) ([]byte, error) {
	if m == nil {
		m = []Metric{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode include_metrics: %w", err)
	}
	return b, nil
}

func nullInt(p *int) sql.NullInt32 {
	if p == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*p), Valid: true}
}

func intPtr(n sql.NullInt32) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}
