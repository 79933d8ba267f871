package users

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the read-only user lookup this service needs.
type Repository interface {
	ListNotificationRecipients(ctx context.Context) ([]Recipient, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListNotificationRecipients(ctx context.Context) ([]Recipient, error) {
	const q = `
SELECT id, email, COALESCE(name, '')
FROM users
WHERE notifications_enabled = TRUE AND email <> ''
ORDER BY email
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Recipient, 0)
	for rows.Next() {
		var rc Recipient
		if err := rows.Scan(&rc.UserID, &rc.Email, &rc.Name); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `lower(email) = $1`, normalizeEmail(email))
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresRepo) findOne(ctx context.Context, where string, arg any) (User, error) {
	q := `
SELECT id, email, COALESCE(name, ''), role, password_hash, notifications_enabled
FROM users
WHERE ` + where
	var u User
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.PasswordHash,
		&u.NotificationsEnabled,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
