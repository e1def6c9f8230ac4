package adaptive

import (
	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// Oracle reward values: exact match with the oracle's preferred action, one
// step away by index, anything else.
const (
	oracleExactReward   = 10.0
	oracleAdjacentReward = 2.0
	oracleWrongReward   = -5.0
)

// Oracle thresholds over the raw case features.
const (
	oracleHighPlot = 2000.0
	oracleHighRoad = 18.0
	oracleMidPlot  = 1000.0
	oracleMidRoad  = 12.0
	urbanLocation  = 0
)

// OracleAction is the hand-specified "ground truth" action for a case. It is
// a training label only; it is not the city-adaptive policy being trained and
// must never be served.
func OracleAction(plotSize float64, locationCode int, roadWidth float64) models.Action {
	switch {
	case plotSize > oracleHighPlot && roadWidth > oracleHighRoad && locationCode == urbanLocation:
		return models.ActionHighFSI
	case plotSize > oracleMidPlot && roadWidth > oracleMidRoad:
		return models.ActionMediumFSI
	default:
		return models.ActionLowFSI
	}
}

// OracleReward scores an action against the oracle's preferred one.
func OracleReward(action, preferred models.Action) float64 {
	diff := int(action) - int(preferred)
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return oracleExactReward
	case 1:
		return oracleAdjacentReward
	default:
		return oracleWrongReward
	}
}

// Shaper composes the oracle reward with a city's feedback-derived weights.
// It works over an immutable snapshot taken at training start, so training
// never holds segment locks.
type Shaper struct {
	snapshot map[string]*models.SegmentWeights
}

// NewShaper builds a reward shaper over a segment table snapshot.
func NewShaper(snapshot map[string]*models.SegmentWeights) *Shaper {
	byKey := make(map[string]*models.SegmentWeights, len(snapshot))
	for _, w := range snapshot {
		byKey[segmentKey(w.City)] = w
	}
	return &Shaper{snapshot: byKey}
}

// Reward returns oracle_reward(action) * base_reward(city) * action_weight(city, action).
//
// A city with poor historical approval, or an action that drew rejections in
// that city, yields a systematically smaller training signal for that action
// even when it is oracle-optimal. This is how feedback reshapes the learned
// policy per segment.
func (s *Shaper) Reward(city string, plotSize float64, locationCode int, roadWidth float64, action models.Action) float64 {
	oracle := OracleReward(action, OracleAction(plotSize, locationCode, roadWidth))

	w, ok := s.snapshot[segmentKey(city)]
	if !ok {
		return oracle * models.DefaultBaseReward
	}
	return oracle * w.BaseReward * w.ActionWeight(action)
}

// Weights exposes the snapshot entry for a city, or nil when unseen.
func (s *Shaper) Weights(city string) *models.SegmentWeights {
	return s.snapshot[segmentKey(city)]
}

// ApplyTrainingUpdate applies the training-time weight update to a
// training-local copy of a segment's weights: a multiplicative nudge followed
// by renormalization so the vector's maximum stays at the weight cap, and a
// base-reward refresh from the approval counters.
//
// This path deliberately differs from case-level ingestion (additive,
// clamped); it only ever touches training snapshots, never the live table.
func ApplyTrainingUpdate(w *models.SegmentWeights, action models.Action, polarity models.FeedbackPolarity) {
	if !action.Valid() || int(action) >= len(w.ActionWeights) {
		return
	}

	w.TotalCases++
	if polarity == models.FeedbackApprove {
		w.PositiveCount++
		w.ActionWeights[action] *= 1.1
	} else {
		w.NegativeCount++
		w.ActionWeights[action] *= 0.9
	}
	w.RenormalizeActionWeights()
	w.BaseReward = 0.5 + w.ApprovalRate()
}
