package extraction

import (
	"encoding/json"
	"strconv"
)

// Data collection field names configured on the voice agent.
// Question_two is capitalised in the agent configuration; keep it that way.
const (
	FieldFirstName     = "First_Name"
	FieldLastName      = "Last_Name"
	FieldPhone         = "Phone_number"
	FieldHasCDL        = "question_one"
	FieldHasExperience = "Question_two"
	FieldHasViolations = "question_five"
	FieldWorkEligible  = "question_six"
)

// DataCollectionResult is one answer the agent collected during the call.
// Value is whatever JSON scalar the provider sent (bool, string, number or nil).
type DataCollectionResult struct {
	DataCollectionID string         `json:"data_collection_id,omitempty"`
	Value            any            `json:"value"`
	JSONSchema       map[string]any `json:"json_schema,omitempty"`
	Rationale        string         `json:"rationale,omitempty"`
}

// ExtractedData is the flat qualification view of a conversation.
type ExtractedData struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`

	HasCDL        bool `json:"hasCDL"`
	HasExperience bool `json:"hasExperience"`
	HasViolations bool `json:"hasViolations"`
	WorkEligible  bool `json:"workEligible"`
	Qualified     bool `json:"qualified"`

	CallDuration      int    `json:"callDuration"`
	CallSuccessful    bool   `json:"callSuccessful"`
	TranscriptSummary string `json:"transcriptSummary,omitempty"`

	DataCollection map[string]DataCollectionResult `json:"dataCollection"`
}

// HasAnswers reports whether the payload carried any data collection results.
func (d ExtractedData) HasAnswers() bool { return len(d.DataCollection) > 0 }

// conversation is the subset of the provider payload the extractor reads.
// Every field is optional.
type conversation struct {
	Analysis   *analysis         `json:"analysis"`
	Transcript []transcriptEntry `json:"transcript"`
}

type analysis struct {
	CallSuccessful        string                          `json:"call_successful"`
	TranscriptSummary     string                          `json:"transcript_summary"`
	DataCollectionResults map[string]DataCollectionResult `json:"data_collection_results"`
}

type transcriptEntry struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Extract maps a raw conversation payload into ExtractedData.
// It accepts either the conversation object or the webhook envelope
// ({"data": {...}}). Missing or mistyped fields yield zero values; it never fails.
func Extract(raw []byte) ExtractedData {
	conv := decode(raw)

	out := ExtractedData{DataCollection: map[string]DataCollectionResult{}}
	if conv.Analysis != nil {
		for k, v := range conv.Analysis.DataCollectionResults {
			out.DataCollection[k] = v
		}
		out.CallSuccessful = conv.Analysis.CallSuccessful == "success"
		out.TranscriptSummary = conv.Analysis.TranscriptSummary
	}

	out.FirstName = out.stringValue(FieldFirstName)
	out.LastName = out.stringValue(FieldLastName)
	out.Phone = out.stringValue(FieldPhone)

	out.HasCDL = out.isTrue(FieldHasCDL)
	out.HasExperience = out.isTrue(FieldHasExperience)
	out.HasViolations = out.isTrue(FieldHasViolations)
	// Absent or non-boolean answers count as eligible; only an explicit false disqualifies.
	out.WorkEligible = !out.isFalse(FieldWorkEligible)

	out.Qualified = Qualifies(out.HasCDL, out.HasExperience, out.HasViolations, out.WorkEligible)

	if n := len(conv.Transcript); n > 0 {
		out.CallDuration = int(conv.Transcript[n-1].TimeInCallSecs)
	}
	return out
}

// Qualifies is the screening rule: CDL and experience, no violations, and
// not explicitly ineligible to work.
func Qualifies(hasCDL, hasExperience, hasViolations, workEligible bool) bool {
	return hasCDL && hasExperience && !hasViolations && workEligible
}

func decode(raw []byte) conversation {
	var conv conversation
	if len(raw) == 0 {
		return conv
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		raw = env.Data
	}
	if err := json.Unmarshal(raw, &conv); err != nil {
		// A type mismatch deep in the payload fails the whole decode;
		// retry field by field so one bad field does not blank the rest.
		return decodeLoose(raw)
	}
	return conv
}

func decodeLoose(raw []byte) conversation {
	var conv conversation
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return conv
	}

	if a, ok := top["analysis"]; ok {
		var fields map[string]json.RawMessage
		if json.Unmarshal(a, &fields) == nil {
			an := &analysis{DataCollectionResults: map[string]DataCollectionResult{}}
			_ = json.Unmarshal(fields["call_successful"], &an.CallSuccessful)
			_ = json.Unmarshal(fields["transcript_summary"], &an.TranscriptSummary)
			var results map[string]json.RawMessage
			if json.Unmarshal(fields["data_collection_results"], &results) == nil {
				for k, v := range results {
					var r DataCollectionResult
					if json.Unmarshal(v, &r) == nil {
						an.DataCollectionResults[k] = r
					}
				}
			}
			conv.Analysis = an
		}
	}

	if t, ok := top["transcript"]; ok {
		var entries []json.RawMessage
		if json.Unmarshal(t, &entries) == nil {
			for _, e := range entries {
				var te transcriptEntry
				_ = json.Unmarshal(e, &te)
				conv.Transcript = append(conv.Transcript, te)
			}
		}
	}
	return conv
}

func (d ExtractedData) isTrue(field string) bool {
	v, ok := d.DataCollection[field]
	if !ok {
		return false
	}
	b, ok := v.Value.(bool)
	return ok && b
}

func (d ExtractedData) isFalse(field string) bool {
	v, ok := d.DataCollection[field]
	if !ok {
		return false
	}
	b, ok := v.Value.(bool)
	return ok && !b
}

func (d ExtractedData) stringValue(field string) string {
	v, ok := d.DataCollection[field]
	if !ok {
		return ""
	}
	switch s := v.Value.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
