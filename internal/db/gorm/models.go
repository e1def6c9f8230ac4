package gorm

import (
	"time"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// GORM Models

// Note: JSON column types (ConditionSet, Entitlements, ActionWeightVector,
// StringArray) are imported from pkg/models and already implement
// sql.Scanner and driver.Valuer.

// RuleRecord is a stored regulatory rule.
type RuleRecord struct {
	ID           string              `gorm:"primaryKey"`
	City         string              `gorm:"index;not null"`
	RuleType     string              `gorm:"not null;default:''"`
	Conditions   models.ConditionSet `gorm:"type:jsonb;not null"`
	Entitlements models.Entitlements `gorm:"type:jsonb"`
	Notes        string
	Authority    string
	ClauseNo     string
	Page         string
}

func (RuleRecord) TableName() string { return "rules" }

func (r RuleRecord) toModel() models.Rule {
	return models.Rule{
		ID:           r.ID,
		City:         r.City,
		RuleType:     r.RuleType,
		Conditions:   r.Conditions,
		Entitlements: r.Entitlements,
		Notes:        r.Notes,
		Authority:    r.Authority,
		ClauseNo:     r.ClauseNo,
		Page:         r.Page,
	}
}

func ruleRecord(rule models.Rule) RuleRecord {
	return RuleRecord{
		ID:           rule.ID,
		City:         rule.City,
		RuleType:     rule.RuleType,
		Conditions:   rule.Conditions,
		Entitlements: rule.Entitlements,
		Notes:        rule.Notes,
		Authority:    rule.Authority,
		ClauseNo:     rule.ClauseNo,
		Page:         rule.Page,
	}
}

// FeedbackEventRecord is one append-only feedback event.
type FeedbackEventRecord struct {
	ID          string `gorm:"primaryKey"`
	CaseID      string `gorm:"index;not null"`
	ProjectID   string
	City        string `gorm:"index;not null"`
	Polarity    string `gorm:"column:feedback_type;type:text;check:feedback_type IN ('up', 'down');not null"`
	Action      int    `gorm:"not null"`
	CreatedAt   string `gorm:"not null"`
	CreatedAtNS int64  `gorm:"column:created_at_epoch_ns;index;not null"`
}

func (FeedbackEventRecord) TableName() string { return "feedback_events" }

func (r FeedbackEventRecord) toModel() models.FeedbackEvent {
	return models.FeedbackEvent{
		ID:        r.ID,
		CaseID:    r.CaseID,
		ProjectID: r.ProjectID,
		City:      r.City,
		Polarity:  models.FeedbackPolarity(r.Polarity),
		Action:    models.Action(r.Action),
		Timestamp: time.Unix(0, r.CreatedAtNS).UTC(),
	}
}

func feedbackRecord(ev models.FeedbackEvent) FeedbackEventRecord {
	return FeedbackEventRecord{
		ID:          ev.ID,
		CaseID:      ev.CaseID,
		ProjectID:   ev.ProjectID,
		City:        ev.City,
		Polarity:    string(ev.Polarity),
		Action:      int(ev.Action),
		CreatedAt:   ev.Timestamp.UTC().Format(time.RFC3339Nano),
		CreatedAtNS: ev.Timestamp.UnixNano(),
	}
}

// SegmentWeightsRecord is the persisted adaptive state of one city segment.
type SegmentWeightsRecord struct {
	City          string                    `gorm:"primaryKey"`
	BaseReward    float64                   `gorm:"not null"`
	ActionWeights models.ActionWeightVector `gorm:"type:jsonb;not null"`
	PositiveCount int                       `gorm:"not null;default:0"`
	NegativeCount int                       `gorm:"not null;default:0"`
	TotalCases    int                       `gorm:"not null;default:0"`
	UpdatedAt     time.Time
}

func (SegmentWeightsRecord) TableName() string { return "segment_weights" }

func (r SegmentWeightsRecord) toModel() *models.SegmentWeights {
	return &models.SegmentWeights{
		City:          r.City,
		BaseReward:    r.BaseReward,
		ActionWeights: r.ActionWeights,
		PositiveCount: r.PositiveCount,
		NegativeCount: r.NegativeCount,
		TotalCases:    r.TotalCases,
	}
}

func segmentRecord(w *models.SegmentWeights) SegmentWeightsRecord {
	return SegmentWeightsRecord{
		City:          w.City,
		BaseReward:    w.BaseReward,
		ActionWeights: w.ActionWeights,
		PositiveCount: w.PositiveCount,
		NegativeCount: w.NegativeCount,
		TotalCases:    w.TotalCases,
		UpdatedAt:     time.Now().UTC(),
	}
}

// CaseReportRecord is a stored case report.
type CaseReportRecord struct {
	CaseID             string             `gorm:"primaryKey"`
	ProjectID          string             `gorm:"index;not null"`
	City               string             `gorm:"index;not null"`
	Parameters         string             `gorm:"type:jsonb;not null"`
	RulesApplied       models.StringArray `gorm:"type:jsonb"`
	Reasoning          string
	ChosenAction       int    `gorm:"not null"`
	ActionLabel        string `gorm:"not null"`
	RawConfidence      float64
	ConfidenceScore    float64
	ConfidenceLevel    string `gorm:"not null"`
	ConfidenceNote     string
	Degraded           bool
	AuditTrail         models.StringArray `gorm:"type:jsonb"`
	GeneratedAt        string             `gorm:"not null"`
	GeneratedAtEpochNS int64              `gorm:"column:generated_at_epoch_ns;index:idx_case_reports_generated,sort:desc;not null"`
}

func (CaseReportRecord) TableName() string { return "case_reports" }
