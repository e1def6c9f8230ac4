// Package policy owns the trained decision policy: the versioned artifact
// format, the serving-side scorer, atomic artifact publication, and the
// trainer that produces new artifacts from the reward function.
package policy

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// ErrPolicyUnavailable signals that no policy artifact is loaded or the
// loaded artifact cannot score the request. Serving degrades to the
// documented fallback instead of failing the case.
var ErrPolicyUnavailable = errors.New("policy artifact unavailable")

// ArtifactFormatVersion is bumped whenever the serialized shape changes.
// Loading rejects artifacts from a different format generation.
const ArtifactFormatVersion = 1

// NumFeatures is the serving feature vector size:
// [plot_size, location_code, road_width, city_code].
const NumFeatures = 4

// Artifact is one trained, immutable policy snapshot. The internals are
// opaque to callers; everything outside this package goes through Predict.
type Artifact struct {
	FormatVersion int       `json:"format_version"`
	Version       string    `json:"version"`
	TrainedAt     time.Time `json:"trained_at"`

	// CityCodes fixes the city feature encoding at training time. Cities
	// unseen at training time encode as code 0, mirroring the location
	// encoding default.
	CityCodes map[string]int `json:"city_codes"`

	// FeatureScale divides each raw feature before scoring so plot areas in
	// the thousands do not drown the categorical codes.
	FeatureScale [NumFeatures]float64 `json:"feature_scale"`

	// Weights and Biases define a linear softmax policy over the scaled
	// feature vector, one row per action.
	Weights [models.NumActions][NumFeatures]float64 `json:"weights"`
	Biases  [models.NumActions]float64              `json:"biases"`
}

// Features builds the raw serving feature vector for a case.
func (a *Artifact) Features(city string, p models.CaseParameters) [NumFeatures]float64 {
	return [NumFeatures]float64{
		p.PlotSize,
		float64(models.LocationCode(p.Location)),
		p.RoadWidth,
		float64(a.CityCodes[city]),
	}
}

// Predict scores a feature vector and returns the argmax action with the
// full probability simplex over the action space.
func (a *Artifact) Predict(features [NumFeatures]float64) (models.Action, [models.NumActions]float64) {
	var logits [models.NumActions]float64
	for action := 0; action < models.NumActions; action++ {
		z := a.Biases[action]
		for i := 0; i < NumFeatures; i++ {
			scale := a.FeatureScale[i]
			if scale == 0 {
				scale = 1
			}
			z += a.Weights[action][i] * features[i] / scale
		}
		logits[action] = z
	}
	return argmax(logits), softmax(logits)
}

// softmax converts logits to a probability simplex, max-shifted for
// numerical stability.
func softmax(logits [models.NumActions]float64) [models.NumActions]float64 {
	maxLogit := logits[0]
	for _, z := range logits[1:] {
		if z > maxLogit {
			maxLogit = z
		}
	}

	var probs [models.NumActions]float64
	sum := 0.0
	for i, z := range logits {
		probs[i] = math.Exp(z - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// argmax breaks ties toward the lower action index, keeping predictions
// deterministic.
func argmax(logits [models.NumActions]float64) models.Action {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return models.Action(best)
}

// LoadArtifact reads and validates an artifact file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode policy artifact %s: %w", path, err)
	}
	if artifact.FormatVersion != ArtifactFormatVersion {
		return nil, fmt.Errorf("policy artifact %s: format version %d, want %d",
			path, artifact.FormatVersion, ArtifactFormatVersion)
	}
	return &artifact, nil
}
