package notify

import (
	"encoding/json"
	"errors"
	"time"
)

// Message is one outbox row: a new-call email owed to one recipient.
type Message struct {
	ID             string          `json:"id" db:"id"`
	CallRecordID   string          `json:"call_record_id" db:"call_record_id"`
	ConversationID string          `json:"conversation_id" db:"conversation_id"`
	RecipientEmail string          `json:"recipient_email" db:"recipient_email"`
	Payload        json.RawMessage `json:"payload" db:"payload"`

	Status        Status    `json:"status" db:"status"`
	Attempts      int       `json:"attempts" db:"attempts"`
	MaxAttempts   int       `json:"max_attempts" db:"max_attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at" db:"next_attempt_at"`
	LastError     *string   `json:"last_error,omitempty" db:"last_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusDead    Status = "dead"
)

// NewCall is the payload of a new-call notification.
type NewCall struct {
	CallRecordID   string    `json:"call_record_id"`
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Qualification  string    `json:"qualification"`
	CallDuration   int       `json:"call_duration"`
	Summary        string    `json:"summary,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

var ErrNotFound = errors.New("notify: message not found")
