package calls

import (
	"encoding/json"
	"errors"
	"time"

	"callscreen-platform/internal/extraction"
)

// CallRecord is one ingested voice-agent conversation.
//
// Invariant: exactly one row per ConversationID. A repeated ingestion
// overwrites the row in place and bumps UpdatedAt.
type CallRecord struct {
	ID             string `json:"id" db:"id"`
	ConversationID string `json:"conversation_id" db:"conversation_id"`
	AgentID        string `json:"agent_id" db:"agent_id"`
	Status         string `json:"status" db:"status"`

	// Denormalized from ExtractedData for listing and search.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Phone     string `json:"phone" db:"phone"`

	Qualified Qualification `json:"qualified" db:"qualified"`

	RawData       json.RawMessage          `json:"raw_data" db:"raw_data"`
	ExtractedData extraction.ExtractedData `json:"extracted_data" db:"extracted_data"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Qualification is the review outcome of a call.
type Qualification string

const (
	Qualified    Qualification = "qualified"
	NotQualified Qualification = "not_qualified"
	Pending      Qualification = "pending"
)

func (q Qualification) Valid() bool {
	switch q {
	case Qualified, NotQualified, Pending:
		return true
	default:
		return false
	}
}

// Label is the human form used in reports.
func (q Qualification) Label() string {
	switch q {
	case Qualified:
		return "Qualified"
	case NotQualified:
		return "Not Qualified"
	default:
		return "Pending"
	}
}

// ParseQualification accepts the enum names plus the boolean forms
// "true", "false" and "null" used by older dashboard clients.
func ParseQualification(s string) (Qualification, error) {
	switch s {
	case "qualified", "true":
		return Qualified, nil
	case "not_qualified", "false":
		return NotQualified, nil
	case "pending", "null", "":
		return Pending, nil
	default:
		return "", ErrInvalidArgument
	}
}

// QualificationFor derives the ingestion-time outcome. Payloads without any
// data collection results have not been screened yet and stay pending.
func QualificationFor(d extraction.ExtractedData) Qualification {
	if !d.HasAnswers() {
		return Pending
	}
	if d.Qualified {
		return Qualified
	}
	return NotQualified
}

// Filter narrows Query results. Search is a case-sensitive substring match
// against first name, last name, phone and conversation id.
type Filter struct {
	AgentID string `json:"agent_id,omitempty"`
	Search  string `json:"search,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Stats is the dashboard summary.
type Stats struct {
	TodayCalls        int `json:"today_calls"`
	Qualified         int `json:"qualified"`
	Pending           int `json:"pending"`
	Reviewed          int `json:"reviewed"`
	QualificationRate int `json:"qualification_rate"`
}

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)
