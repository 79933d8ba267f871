package delivery

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"callscreen-platform/pkg/utils"
)

// PostgresRepo appends to email_logs. The table carries a trigger that
// rejects UPDATE and DELETE.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, l EmailLog) error {
	const q = `
INSERT INTO email_logs (
	id, report_config_id, recipient_email, recipient_user_id, subject,
	status, provider_message_id, error_message,
	report_period_start, report_period_end, report_data, sent_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	var data any
	if len(l.ReportData) > 0 {
		data = []byte(l.ReportData)
	}
	_, err := r.db.ExecContext(ctx, q,
		l.ID,
		l.ReportConfigID,
		l.RecipientEmail,
		nullPtr(l.RecipientUserID),
		l.Subject,
		string(l.Status),
		nullPtr(l.ProviderMessageID),
		nullPtr(l.ErrorMessage),
		l.ReportPeriodStart,
		l.ReportPeriodEnd,
		data,
		l.SentAt,
	)
	if err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]EmailLog, error) {
	var (
		where []string
		args  []any
	)
	if f.ReportConfigID != "" {
		args = append(args, f.ReportConfigID)
		where = append(where, fmt.Sprintf("report_config_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	q := `
SELECT id, report_config_id, recipient_email, recipient_user_id, subject,
	status, provider_message_id, error_message,
	report_period_start, report_period_end, report_data, sent_at
FROM email_logs`
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf("\nORDER BY sent_at DESC, id LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]EmailLog, 0)
	for rows.Next() {
		var (
			l                  EmailLog
			uid, msgID, errMsg sql.NullString
			data               []byte
		)
		if err := rows.Scan(
			&l.ID,
			&l.ReportConfigID,
			&l.RecipientEmail,
			&uid,
			&l.Subject,
			&l.Status,
			&msgID,
			&errMsg,
			&l.ReportPeriodStart,
			&l.ReportPeriodEnd,
			&data,
			&l.SentAt,
		); err != nil {
			return nil, err
		}
		l.RecipientUserID = utils.StringPtr(uid)
		l.ProviderMessageID = utils.StringPtr(msgID)
		l.ErrorMessage = utils.StringPtr(errMsg)
		l.ReportData = data
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
