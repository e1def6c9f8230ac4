package adaptive

import "github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"

// Feedback weight deltas. Rejections are deliberately penalized less than
// approvals are rewarded so sparse negative signal cannot over-correct a
// segment.
const (
	ApproveDelta = 0.05
	RejectDelta  = -0.03
)

// InferActionFromFactCount derives the action a feedback event refers to from
// the number of matched facts that were shown with the result.
//
// The three-bucket heuristic is a coarse proxy for the true action (the shown
// result does not carry the action itself) and is load-bearing for replay
// determinism: live ingestion and replay must derive identical actions from
// identical shown results. Keep any replacement behind this one function.
func InferActionFromFactCount(factCount int) models.Action {
	switch {
	case factCount > 2:
		return models.ActionHighFSI
	case factCount > 0:
		return models.ActionMediumFSI
	default:
		return models.ActionLowFSI
	}
}

// feedbackDelta returns the signed action-weight delta for a polarity.
func feedbackDelta(polarity models.FeedbackPolarity) float64 {
	if polarity == models.FeedbackApprove {
		return ApproveDelta
	}
	return RejectDelta
}

// applyFeedback mutates a segment's weights for one feedback event and
// returns the old and new weight of the affected action.
//
// This is the single update path: live ingestion and replay both go through
// it. Any divergence between the two would be a correctness bug, so neither
// path gets its own variant.
func applyFeedback(w *models.SegmentWeights, ev models.FeedbackEvent) (oldWeight, newWeight float64) {
	w.TotalCases++
	if ev.Polarity == models.FeedbackApprove {
		w.PositiveCount++
	} else {
		w.NegativeCount++
	}

	action := ev.Action
	if !action.Valid() {
		action = models.ActionLowFSI
	}

	oldWeight = w.ActionWeights[action]
	newWeight = models.ClampActionWeight(oldWeight + feedbackDelta(ev.Polarity))
	w.ActionWeights[action] = newWeight

	// Base reward tracks overall approval: 0.5 + rate, bounded [0.5, 1.5].
	w.BaseReward = 0.5 + w.ApprovalRate()

	return oldWeight, newWeight
}
