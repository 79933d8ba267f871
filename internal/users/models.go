package users

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// User is a dashboard account. This service only reads users; accounts are
// managed elsewhere.
type User struct {
	ID                   string `json:"id" db:"id"`
	Email                string `json:"email" db:"email"`
	Name                 string `json:"name" db:"name"`
	Role                 string `json:"role" db:"role"`
	PasswordHash         string `json:"-" db:"password_hash"`
	NotificationsEnabled bool   `json:"notifications_enabled" db:"notifications_enabled"`
}

// Recipient is a user who receives report and new-call emails.
type Recipient struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

var ErrNotFound = errors.New("users: not found")

// CheckPassword reports whether password matches the stored bcrypt hash.
func (u User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// HashPassword returns a bcrypt hash suitable for password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
