package reporting

import (
	"errors"
	"time"

	"callscreen-platform/internal/mailer"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	return f == Daily || f == Weekly || f == Monthly
}

// Metric selects a section of the report body.
type Metric string

const (
	MetricTotalCalls       Metric = "total_calls"
	MetricQualifiedLeads   Metric = "qualified_leads"
	MetricConversionRate   Metric = "conversion_rate"
	MetricAgentPerformance Metric = "agent_performance"
	MetricCallDuration     Metric = "call_duration"
)

var allMetrics = []Metric{
	MetricTotalCalls,
	MetricQualifiedLeads,
	MetricConversionRate,
	MetricAgentPerformance,
	MetricCallDuration,
}

func (m Metric) Valid() bool {
	for _, known := range allMetrics {
		if m == known {
			return true
		}
	}
	return false
}

// ReportConfig is a recurring report definition.
//
// NextSendAt is the scheduling cursor: nil or <= now means due. After every
// dispatch the scheduler moves it strictly into the future.
type ReportConfig struct {
	ID      string `json:"id" yaml:"-"`
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`

	Frequency      Frequency `json:"frequency" yaml:"frequency"`
	FrequencyValue int       `json:"frequency_value" yaml:"frequency_value"`
	DayOfWeek      *int      `json:"day_of_week,omitempty" yaml:"day_of_week,omitempty"`
	DayOfMonth     *int      `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`
	HourOfDay      int       `json:"hour_of_day" yaml:"hour_of_day"`

	ReportType         string   `json:"report_type" yaml:"report_type"`
	IncludeMetrics     []Metric `json:"include_metrics" yaml:"include_metrics"`
	IncludeCallDetails bool     `json:"include_call_details" yaml:"include_call_details"`
	SubjectTemplate    string   `json:"subject_template" yaml:"subject_template"`

	LastSentAt *time.Time `json:"last_sent_at,omitempty" yaml:"-"`
	NextSendAt *time.Time `json:"next_send_at,omitempty" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Includes reports whether the metric section is enabled. An empty
// IncludeMetrics enables everything.
func (c ReportConfig) Includes(m Metric) bool {
	if len(c.IncludeMetrics) == 0 {
		return true
	}
	for _, x := range c.IncludeMetrics {
		if x == m {
			return true
		}
	}
	return false
}

// Due reports whether the config should be dispatched at now.
func (c ReportConfig) Due(now time.Time) bool {
	return c.Enabled && (c.NextSendAt == nil || !c.NextSendAt.After(now))
}

func (c ReportConfig) sameCadence(o ReportConfig) bool {
	return c.Frequency == o.Frequency &&
		c.FrequencyValue == o.FrequencyValue &&
		c.HourOfDay == o.HourOfDay &&
		equalIntPtr(c.DayOfWeek, o.DayOfWeek) &&
		equalIntPtr(c.DayOfMonth, o.DayOfMonth)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Period is the reporting window, both ends inclusive.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// ReportData is the computed snapshot a report email is rendered from.
// It is also stored on every EmailLog row.
type ReportData struct {
	ConfigID string `json:"config_id"`
	Period   Period `json:"period"`

	TotalCalls      int     `json:"total_calls"`
	QualifiedLeads  int     `json:"qualified_leads"`
	NotQualified    int     `json:"not_qualified"`
	Pending         int     `json:"pending"`
	ConversionRate  float64 `json:"conversion_rate"`
	SuccessfulCalls int     `json:"successful_calls"`

	// AverageCallDuration is in seconds.
	AverageCallDuration int `json:"average_call_duration"`

	TopAgents   []AgentPerformance `json:"top_agents"`
	RecentCalls []CallSummary      `json:"recent_calls"`
	MoreCalls   int                `json:"more_calls"`

	// Calls holds every summary in the period for the workbook attachment.
	Calls []CallSummary `json:"-"`

	GeneratedAt time.Time `json:"generated_at"`
}

type AgentPerformance struct {
	AgentID           string  `json:"agent_id"`
	TotalCalls        int     `json:"total_calls"`
	QualifiedLeads    int     `json:"qualified_leads"`
	QualificationRate float64 `json:"qualification_rate"`
}

type CallSummary struct {
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Qualification  string    `json:"qualification"`
	Duration       int       `json:"duration"`
	Successful     bool      `json:"successful"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmailTemplate is a rendered report ready for the mailer.
type EmailTemplate struct {
	Subject     string
	HTML        string
	Text        string
	Attachments []mailer.Attachment
}

var (
	ErrNotFound      = errors.New("reporting: not found")
	ErrInvalidConfig = errors.New("reporting: invalid config")
)
