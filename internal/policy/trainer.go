package policy

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

// RewardFunc scores one (case, action) pair during training. The adaptive
// package supplies the implementation; keeping it a function type means the
// trainer never depends on live segment state.
type RewardFunc func(city string, plotSize float64, locationCode int, roadWidth float64, action models.Action) float64

// TrainerConfig tunes the fitting loop. The optimizer is deliberately a
// plain softmax regression over sampled cases; it is the pluggable part of
// the system, not the point of it.
type TrainerConfig struct {
	Episodes     int
	Epochs       int
	LearningRate float64
	Seed         int64
}

// DefaultTrainerConfig returns the settings used by the trainer binary.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Episodes:     2000,
		Epochs:       40,
		LearningRate: 0.5,
		Seed:         1,
	}
}

// Trainer fits a policy artifact against a reward function.
type Trainer struct {
	cfg    TrainerConfig
	reward RewardFunc
}

// NewTrainer builds a trainer over a reward function.
func NewTrainer(cfg TrainerConfig, reward RewardFunc) *Trainer {
	if cfg.Episodes <= 0 {
		cfg.Episodes = DefaultTrainerConfig().Episodes
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultTrainerConfig().Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultTrainerConfig().LearningRate
	}
	return &Trainer{cfg: cfg, reward: reward}
}

// episode is one sampled training case with its reward-optimal label.
type episode struct {
	features [NumFeatures]float64
	label    models.Action
}

// Sampled case parameter ranges, matching the regulatory bands the rule
// packs cover.
const (
	samplePlotMin = 100.0
	samplePlotMax = 5000.0
	sampleRoadMin = 6.0
	sampleRoadMax = 30.0
)

// defaultFeatureScale keeps the numeric features in comparable ranges so
// the linear fit converges.
var defaultFeatureScale = [NumFeatures]float64{samplePlotMax, 1, sampleRoadMax, 1}

// Train samples cases across the known cities, labels each with its
// reward-maximizing action, fits a softmax policy, and returns a fresh
// versioned artifact. Same cities, rewards, and seed produce the same
// artifact.
func (t *Trainer) Train(cities []string) *Artifact {
	codes := cityCodes(cities)
	rng := rand.New(rand.NewSource(t.cfg.Seed))

	cityNames := make([]string, 0, len(codes))
	for city := range codes {
		cityNames = append(cityNames, city)
	}
	sort.Strings(cityNames)
	if len(cityNames) == 0 {
		cityNames = []string{""}
	}

	episodes := make([]episode, 0, t.cfg.Episodes)
	for i := 0; i < t.cfg.Episodes; i++ {
		city := cityNames[rng.Intn(len(cityNames))]
		plot := samplePlotMin + rng.Float64()*(samplePlotMax-samplePlotMin)
		road := sampleRoadMin + rng.Float64()*(sampleRoadMax-sampleRoadMin)
		locCode := rng.Intn(len(models.LocationCodes))

		episodes = append(episodes, episode{
			features: [NumFeatures]float64{plot, float64(locCode), road, float64(codes[city])},
			label:    t.bestAction(city, plot, locCode, road),
		})
	}

	artifact := &Artifact{
		FormatVersion: ArtifactFormatVersion,
		Version:       uuid.NewString(),
		TrainedAt:     time.Now().UTC(),
		CityCodes:     codes,
		FeatureScale:  defaultFeatureScale,
	}
	t.fit(artifact, episodes)

	log.Info().
		Str("version", artifact.Version).
		Int("episodes", len(episodes)).
		Int("cities", len(codes)).
		Float64("accuracy", t.accuracy(artifact, episodes)).
		Msg("Policy training complete")
	return artifact
}

// bestAction returns the reward-maximizing action for a case, ties broken
// toward the lower action.
func (t *Trainer) bestAction(city string, plot float64, locCode int, road float64) models.Action {
	best := models.ActionLowFSI
	bestReward := math.Inf(-1)
	for a := 0; a < models.NumActions; a++ {
		r := t.reward(city, plot, locCode, road, models.Action(a))
		if r > bestReward {
			bestReward = r
			best = models.Action(a)
		}
	}
	return best
}

// fit runs batch gradient descent on the softmax cross-entropy loss.
func (t *Trainer) fit(artifact *Artifact, episodes []episode) {
	if len(episodes) == 0 {
		return
	}
	step := t.cfg.LearningRate / float64(len(episodes))

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		var gradW [models.NumActions][NumFeatures]float64
		var gradB [models.NumActions]float64

		for _, ep := range episodes {
			_, probs := artifact.Predict(ep.features)
			for a := 0; a < models.NumActions; a++ {
				delta := probs[a]
				if models.Action(a) == ep.label {
					delta -= 1
				}
				gradB[a] += delta
				for i := 0; i < NumFeatures; i++ {
					gradW[a][i] += delta * ep.features[i] / artifact.FeatureScale[i]
				}
			}
		}

		for a := 0; a < models.NumActions; a++ {
			artifact.Biases[a] -= step * gradB[a]
			for i := 0; i < NumFeatures; i++ {
				artifact.Weights[a][i] -= step * gradW[a][i]
			}
		}
	}
}

// accuracy is the fraction of training episodes the fitted artifact labels
// correctly. Logged for operator visibility only.
func (t *Trainer) accuracy(artifact *Artifact, episodes []episode) float64 {
	if len(episodes) == 0 {
		return 0
	}
	correct := 0
	for _, ep := range episodes {
		if action, _ := artifact.Predict(ep.features); action == ep.label {
			correct++
		}
	}
	return float64(correct) / float64(len(episodes))
}

// cityCodes assigns stable feature codes: cities sorted, codes from 1.
// Code 0 is reserved for cities unseen at training time.
func cityCodes(cities []string) map[string]int {
	sorted := make([]string, len(cities))
	copy(sorted, cities)
	sort.Strings(sorted)

	codes := make(map[string]int, len(sorted))
	for _, city := range sorted {
		if _, ok := codes[city]; ok {
			continue
		}
		codes[city] = len(codes) + 1
	}
	return codes
}
