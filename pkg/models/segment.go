package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Segment weight bounds. Case-level feedback clamps individual action weights
// into [MinActionWeight, MaxActionWeight]; training-time updates renormalize
// the whole vector so its maximum stays at MaxActionWeight.
const (
	MinActionWeight = 0.1
	MaxActionWeight = 2.0

	// DefaultBaseReward is the base reward for a segment with no feedback.
	// After the first event it is maintained as 0.5 + approval_rate, so it
	// stays inside [0.5, 1.5].
	DefaultBaseReward = 1.0
)

// LearningCaseThreshold is the total-case count above which a segment
// transitions from Learning to Active. The transition is monotonic.
const LearningCaseThreshold = 5

// SegmentStatus is the lifecycle state of a city segment.
type SegmentStatus string

const (
	SegmentUnseen   SegmentStatus = "Unseen"
	SegmentLearning SegmentStatus = "Learning"
	SegmentActive   SegmentStatus = "Active"
)

// StatusForCases maps a total-case count to the segment status.
func StatusForCases(totalCases int) SegmentStatus {
	switch {
	case totalCases <= 0:
		return SegmentUnseen
	case totalCases <= LearningCaseThreshold:
		return SegmentLearning
	default:
		return SegmentActive
	}
}

// ActionWeightVector is the per-action weight vector of a segment, stored as
// a JSON text column.
type ActionWeightVector []float64

// Scan implements sql.Scanner for ActionWeightVector.
func (v *ActionWeightVector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	var data []byte
	switch s := src.(type) {
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		return fmt.Errorf("ActionWeightVector: unsupported type %T", src)
	}
	if len(data) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(data, v)
}

// Value implements driver.Valuer for ActionWeightVector.
func (v ActionWeightVector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// SegmentWeights is the mutable adaptive state of one city segment. It is
// created lazily on first feedback, persisted after every mutation, and fully
// rebuildable by replaying the feedback history.
type SegmentWeights struct {
	City          string             `json:"city"`
	BaseReward    float64            `json:"base_reward"`
	ActionWeights ActionWeightVector `json:"action_weights"`
	PositiveCount int                `json:"positive_feedback_count"`
	NegativeCount int                `json:"negative_feedback_count"`
	TotalCases    int                `json:"total_cases"`
}

// NewSegmentWeights returns the default weights for a fresh segment.
func NewSegmentWeights(city string) *SegmentWeights {
	weights := make(ActionWeightVector, NumActions)
	for i := range weights {
		weights[i] = 1.0
	}
	return &SegmentWeights{
		City:          city,
		BaseReward:    DefaultBaseReward,
		ActionWeights: weights,
	}
}

// Clone returns a deep copy. Snapshots handed to long-running consumers
// (training, statistics) must not alias the live vector.
func (w *SegmentWeights) Clone() *SegmentWeights {
	cp := *w
	cp.ActionWeights = make(ActionWeightVector, len(w.ActionWeights))
	copy(cp.ActionWeights, w.ActionWeights)
	return &cp
}

// ApprovalRate is positive feedback over total cases, guarding the zero case.
func (w *SegmentWeights) ApprovalRate() float64 {
	if w.TotalCases < 1 {
		return 0
	}
	return float64(w.PositiveCount) / float64(w.TotalCases)
}

// Status returns the lifecycle status implied by the case counters.
func (w *SegmentWeights) Status() SegmentStatus {
	return StatusForCases(w.TotalCases)
}

// ActionWeight returns the weight for an action, defaulting to 1.0 for
// out-of-range indices so a resized action space degrades neutrally.
func (w *SegmentWeights) ActionWeight(action Action) float64 {
	if !action.Valid() || int(action) >= len(w.ActionWeights) {
		return 1.0
	}
	return w.ActionWeights[action]
}

// ClampActionWeight bounds a case-level feedback update.
func ClampActionWeight(v float64) float64 {
	if v < MinActionWeight {
		return MinActionWeight
	}
	if v > MaxActionWeight {
		return MaxActionWeight
	}
	return v
}

// RenormalizeActionWeights scales the vector down so its maximum does not
// exceed MaxActionWeight. Used by the training-time update path only.
func (w *SegmentWeights) RenormalizeActionWeights() {
	maxWeight := 0.0
	for _, v := range w.ActionWeights {
		if v > maxWeight {
			maxWeight = v
		}
	}
	if maxWeight <= MaxActionWeight {
		return
	}
	for i, v := range w.ActionWeights {
		w.ActionWeights[i] = v / maxWeight * MaxActionWeight
	}
}
