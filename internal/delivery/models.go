package delivery

import (
	"encoding/json"
	"time"
)

// EmailLog is one report delivery attempt to one recipient.
//
// Invariants:
// - Rows are never updated or deleted.
// - ReportData is the snapshot the email was rendered from, kept for replay.
type EmailLog struct {
	ID              string  `json:"id" db:"id"`
	ReportConfigID  string  `json:"report_config_id" db:"report_config_id"`
	RecipientEmail  string  `json:"recipient_email" db:"recipient_email"`
	RecipientUserID *string `json:"recipient_user_id,omitempty" db:"recipient_user_id"`
	Subject         string  `json:"subject" db:"subject"`

	Status            Status  `json:"status" db:"status"`
	ProviderMessageID *string `json:"provider_message_id,omitempty" db:"provider_message_id"`
	ErrorMessage      *string `json:"error_message,omitempty" db:"error_message"`

	ReportPeriodStart time.Time       `json:"report_period_start" db:"report_period_start"`
	ReportPeriodEnd   time.Time       `json:"report_period_end" db:"report_period_end"`
	ReportData        json.RawMessage `json:"report_data,omitempty" db:"report_data"`

	SentAt time.Time `json:"sent_at" db:"sent_at"`
}

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Attempt describes a send the scheduler just made.
type Attempt struct {
	ReportConfigID  string
	RecipientEmail  string
	RecipientUserID string
	Subject         string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	// Snapshot is marshalled to JSON as the row's report_data.
	Snapshot any
}

type Filter struct {
	ReportConfigID string
	Status         Status
	Limit          int
}
