package notify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"callscreen-platform/pkg/utils"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const outboxColumns = `id, call_record_id, conversation_id, recipient_email, payload,
	status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at`

func (r *PostgresRepo) Enqueue(ctx context.Context, msgs []Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	var added int64
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var (
			values []string
			args   []any
		)
		for _, m := range msgs {
			n := len(args)
			values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, 0, $%d, $%d, $%d, $%d)",
				n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9, n+10))
			args = append(args,
				m.ID,
				m.CallRecordID,
				m.ConversationID,
				m.RecipientEmail,
				[]byte(m.Payload),
				string(m.Status),
				m.MaxAttempts,
				m.NextAttemptAt,
				m.CreatedAt,
				m.UpdatedAt,
			)
		}
		q := `
INSERT INTO notification_outbox (
	id, call_record_id, conversation_id, recipient_email, payload,
	status, attempts, max_attempts, next_attempt_at, created_at, updated_at
) VALUES ` + strings.Join(values, ",\n") + `
ON CONFLICT (call_record_id, recipient_email) DO NOTHING`
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("enqueue notifications: %w", err)
		}
		added, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(added), nil
}

// ClaimDue locks due rows with SKIP LOCKED so several API instances can
// dispatch the same outbox without sending a message twice.
func (r *PostgresRepo) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Message, error) {
	var out []Message
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := `
SELECT ` + outboxColumns + `
FROM notification_outbox
WHERE status = 'pending' AND next_attempt_at <= $1
ORDER BY next_attempt_at, id
LIMIT $2
FOR UPDATE SKIP LOCKED
`
		rows, err := tx.QueryContext(ctx, q, now, limit)
		if err != nil {
			return err
		}
		out = make([]Message, 0)
		for rows.Next() {
			var (
				m       Message
				lastErr sql.NullString
				payload []byte
			)
			if err := rows.Scan(
				&m.ID,
				&m.CallRecordID,
				&m.ConversationID,
				&m.RecipientEmail,
				&payload,
				&m.Status,
				&m.Attempts,
				&m.MaxAttempts,
				&m.NextAttemptAt,
				&lastErr,
				&m.CreatedAt,
				&m.UpdatedAt,
			); err != nil {
				rows.Close()
				return err
			}
			m.Payload = payload
			m.LastError = utils.StringPtr(lastErr)
			out = append(out, m)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		until := now.Add(lease)
		for _, m := range out {
			if _, err := tx.ExecContext(ctx,
				`UPDATE notification_outbox SET next_attempt_at = $2 WHERE id = $1`, m.ID, until); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim notifications: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) MarkSent(ctx context.Context, id string, attempts int, now time.Time) error {
	const q = `
UPDATE notification_outbox
SET status = 'sent', attempts = $2, last_error = NULL, updated_at = $3
WHERE id = $1
`
	return r.exec(ctx, q, id, attempts, now)
}

func (r *PostgresRepo) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, now time.Time) error {
	const q = `
UPDATE notification_outbox
SET attempts = $2, next_attempt_at = $3, last_error = $4, updated_at = $5
WHERE id = $1
`
	return r.exec(ctx, q, id, attempts, next, lastErr, now)
}

func (r *PostgresRepo) MarkDead(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	const q = `
UPDATE notification_outbox
SET status = 'dead', attempts = $2, last_error = $3, updated_at = $4
WHERE id = $1
`
	return r.exec(ctx, q, id, attempts, lastErr, now)
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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
