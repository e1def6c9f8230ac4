package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringArray is a JSON string array stored as a text column.
type StringArray []string

// Scan implements sql.Scanner for StringArray.
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("StringArray: unsupported type %T", src)
	}
	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}

// Value implements driver.Valuer for StringArray.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// CaseReport is the result object returned for a processed case and shown to
// the user. Feedback references it to re-derive the action that was displayed.
type CaseReport struct {
	ProjectID          string          `json:"project_id"`
	CaseID             string          `json:"case_id"`
	City               string          `json:"city"`
	Parameters         CaseParameters  `json:"parameters"`
	RulesApplied       StringArray     `json:"rules_applied"`
	Reasoning          string          `json:"reasoning"`
	ChosenAction       Action          `json:"chosen_action"`
	ActionLabel        string          `json:"action_label"`
	RawConfidence      float64         `json:"raw_confidence"`
	AdjustedConfidence float64         `json:"confidence_score"`
	ConfidenceLevel    ConfidenceLevel `json:"confidence_level"`
	ConfidenceNote     string          `json:"confidence_note"`
	Degraded           bool            `json:"degraded,omitempty"`
	AuditTrail         StringArray     `json:"audit_trail,omitempty"`
	GeneratedAt        time.Time       `json:"generated_at"`
}
