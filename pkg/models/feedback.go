package models

import "time"

// FeedbackPolarity is the approve/reject signal attached to a case result.
type FeedbackPolarity string

const (
	// FeedbackApprove is a thumbs-up on a shown result.
	FeedbackApprove FeedbackPolarity = "up"
	// FeedbackReject is a thumbs-down on a shown result.
	FeedbackReject FeedbackPolarity = "down"
)

// Valid reports whether the polarity is one of the two known signals.
func (p FeedbackPolarity) Valid() bool {
	return p == FeedbackApprove || p == FeedbackReject
}

// FeedbackEvent is one approve/reject event for a shown case result.
// Events are append-only: never mutated or deleted. Action is derived
// deterministically from the shown result so replay stays reproducible.
type FeedbackEvent struct {
	ID        string           `json:"id"`
	CaseID    string           `json:"case_id"`
	ProjectID string           `json:"project_id"`
	City      string           `json:"city"`
	Polarity  FeedbackPolarity `json:"feedback_type"`
	Action    Action           `json:"action"`
	Timestamp time.Time        `json:"timestamp"`
}

// FeedbackResult is returned to the caller after an event is ingested.
type FeedbackResult struct {
	WeightsUpdated bool               `json:"weights_updated"`
	City           string             `json:"city"`
	ActionWeights  ActionWeightVector `json:"new_city_weights"`
	ApprovalRate   float64            `json:"approval_rate"`
	Multiplier     float64            `json:"confidence_adjustment"`
	Explanation    string             `json:"confidence_explanation"`
	AuditTrail     []string           `json:"audit_trail"`
}

// CityStatistics is the presentation view of one segment's adaptive state.
type CityStatistics struct {
	City          string             `json:"city"`
	TotalCases    int                `json:"total_cases"`
	Positive      int                `json:"positive_feedback"`
	Negative      int                `json:"negative_feedback"`
	ApprovalRate  float64            `json:"approval_rate"`
	ActionWeights ActionWeightVector `json:"action_weights"`
	Multiplier    float64            `json:"confidence_multiplier"`
	Status        SegmentStatus      `json:"status"`
}

// FeedbackSummary aggregates feedback across all tracked segments.
type FeedbackSummary struct {
	GeneratedAt         time.Time        `json:"report_timestamp"`
	TotalFeedback       int              `json:"total_feedback_count"`
	TotalPositive       int              `json:"total_positive"`
	OverallApprovalRate float64          `json:"overall_approval_rate"`
	CitiesTracked       int              `json:"cities_tracked"`
	CityBreakdown       []CityStatistics `json:"city_breakdown"`
	RecentEvents        []FeedbackEvent  `json:"recent_feedback"`
}
