package policy

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// FallbackConfidence is the confidence reported when no policy artifact is
// available and serving degrades to the lowest action.
const FallbackConfidence = 1.0 / models.NumActions

// Score is one policy decision for a case.
type Score struct {
	Action       models.Action
	Confidence   float64
	Distribution [models.NumActions]float64
	// Degraded marks the fallback path: no artifact was available, the
	// action is the conservative default, and the confidence is the uniform
	// minimum. The case still completes.
	Degraded bool
}

// Scorer serves predictions from the currently loaded artifact. Artifact
// swaps are atomic; in-flight scores finish against the artifact they
// started with.
type Scorer struct {
	current atomic.Pointer[Artifact]
}

// NewScorer returns a scorer with no artifact loaded.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Install makes an artifact the serving policy.
func (s *Scorer) Install(artifact *Artifact) {
	s.current.Store(artifact)
	log.Info().
		Str("version", artifact.Version).
		Time("trained_at", artifact.TrainedAt).
		Msg("Policy artifact installed")
}

// Artifact returns the serving artifact, or nil when none is loaded.
func (s *Scorer) Artifact() *Artifact {
	return s.current.Load()
}

// Ready reports whether an artifact is loaded.
func (s *Scorer) Ready() bool {
	return s.current.Load() != nil
}

// Score predicts the action for a case. With no artifact loaded it returns
// the degraded fallback score and ErrPolicyUnavailable; the caller decides
// whether the degraded result is acceptable.
func (s *Scorer) Score(city string, params models.CaseParameters) (Score, error) {
	artifact := s.current.Load()
	if artifact == nil {
		fallback := Score{
			Action:     models.ActionLowFSI,
			Confidence: FallbackConfidence,
			Degraded:   true,
		}
		for i := range fallback.Distribution {
			fallback.Distribution[i] = FallbackConfidence
		}
		return fallback, ErrPolicyUnavailable
	}

	action, distribution := artifact.Predict(artifact.Features(city, params))
	return Score{
		Action:       action,
		Confidence:   distribution[action],
		Distribution: distribution,
	}, nil
}
