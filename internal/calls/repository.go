package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"callscreen-platform/pkg/utils"
)

// PostgresRepo stores call records in the call_records table.
//
// It relies on UNIQUE (conversation_id) for idempotent ingestion and keeps
// the tri-state qualification in a nullable BOOLEAN column
// (true, false, NULL = pending).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `id, conversation_id, agent_id, status, first_name, last_name, phone, qualified, raw_data, extracted_data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(s rowScanner) (CallRecord, error) {
	var (
		rec                CallRecord
		agent, status      sql.NullString
		first, last, phone sql.NullString
		qualified          sql.NullBool
		raw, extracted     []byte
	)
	if err := s.Scan(
		&rec.ID,
		&rec.ConversationID,
		&agent,
		&status,
		&first,
		&last,
		&phone,
		&qualified,
		&raw,
		&extracted,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return CallRecord{}, err
	}
	rec.AgentID = agent.String
	rec.Status = status.String
	rec.FirstName = first.String
	rec.LastName = last.String
	rec.Phone = phone.String
	rec.Qualified = qualificationFromNull(qualified)
	rec.RawData = json.RawMessage(raw)
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &rec.ExtractedData); err != nil {
			return CallRecord{}, fmt.Errorf("decode extracted_data: %w", err)
		}
	}
	return rec, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	extracted, err := json.Marshal(rec.ExtractedData)
	if err != nil {
		return CallRecord{}, fmt.Errorf("encode extracted_data: %w", err)
	}

	q := `
INSERT INTO call_records (` + callColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
ON CONFLICT (conversation_id) DO UPDATE SET
	agent_id = EXCLUDED.agent_id,
	status = EXCLUDED.status,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	phone = EXCLUDED.phone,
	qualified = EXCLUDED.qualified,
	raw_data = EXCLUDED.raw_data,
	extracted_data = EXCLUDED.extracted_data,
	updated_at = EXCLUDED.updated_at
RETURNING ` + callColumns

	out, err := scanCall(r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.ConversationID,
		utils.NullString(rec.AgentID),
		utils.NullString(rec.Status),
		utils.NullString(rec.FirstName),
		utils.NullString(rec.LastName),
		utils.NullString(rec.Phone),
		rec.Qualified.nullBool(),
		[]byte(rec.RawData),
		extracted,
		rec.UpdatedAt,
	))
	if err != nil {
		return CallRecord{}, fmt.Errorf("upsert call record: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	q := `SELECT ` + callColumns + ` FROM call_records WHERE id = $1`
	rec, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return rec, nil
}

func (r *PostgresRepo) SetQualification(ctx context.Context, id string, qual Qualification, now time.Time) (CallRecord, error) {
	q := `
UPDATE call_records SET qualified = $2, updated_at = $3
WHERE id = $1
RETURNING ` + callColumns
	rec, err := scanCall(r.db.QueryRowContext(ctx, q, id, qual.nullBool(), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return rec, nil
}

func (r *PostgresRepo) Query(ctx context.Context, f Filter) ([]CallRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		where = append(where, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(first_name LIKE $%[1]d OR last_name LIKE $%[1]d OR phone LIKE $%[1]d OR conversation_id LIKE $%[1]d)", n))
	}

	q := `SELECT ` + callColumns + ` FROM call_records`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, len(args))

	return r.list(ctx, q, args...)
}

func (r *PostgresRepo) Stats(ctx context.Context, since time.Time) (Stats, error) {
	const q = `
SELECT
	COUNT(*) FILTER (WHERE created_at >= $1),
	COUNT(*) FILTER (WHERE qualified = TRUE),
	COUNT(*) FILTER (WHERE qualified IS NULL),
	COUNT(*) FILTER (WHERE qualified IS NOT NULL)
FROM call_records
`
	var st Stats
	if err := r.db.QueryRowContext(ctx, q, since).Scan(&st.TodayCalls, &st.Qualified, &st.Pending, &st.Reviewed); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (r *PostgresRepo) ListBetween(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	q := `SELECT ` + callColumns + ` FROM call_records
WHERE created_at >= $1 AND created_at <= $2
ORDER BY created_at DESC, id`
	return r.list(ctx, q, from, to)
}

func (r *PostgresRepo) ListAll(ctx context.Context) ([]CallRecord, error) {
	q := `SELECT ` + callColumns + ` FROM call_records ORDER BY created_at DESC, id`
	return r.list(ctx, q)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]CallRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (q Qualification) nullBool() sql.NullBool {
	switch q {
	case Qualified:
		return sql.NullBool{Bool: true, Valid: true}
	case NotQualified:
		return sql.NullBool{Bool: false, Valid: true}
	default:
		return sql.NullBool{}
	}
}

func qualificationFromNull(b sql.NullBool) Qualification {
	if !b.Valid {
		return Pending
	}
	if b.Bool {
		return Qualified
	}
	return NotQualified
}
