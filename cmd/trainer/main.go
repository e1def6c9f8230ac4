// Package main provides the offline policy trainer. It replays the full
// feedback history into a fresh segment table, trains a policy artifact with
// the feedback-shaped reward, and atomically publishes it for the worker's
// watcher to pick up.
package main

import (
	"context"
	"flag"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/Soham2704/ai-rule-intelligence-platform/internal/adaptive"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/cache"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/config"
	gormdb "github.com/Soham2704/ai-rule-intelligence-platform/internal/db/gorm"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/db/sqlite"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/policy"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/rules"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Get()
	trainerCfg := policy.DefaultTrainerConfig()

	episodes := flag.Int("episodes", trainerCfg.Episodes, "training episodes to sample")
	epochs := flag.Int("epochs", trainerCfg.Epochs, "gradient descent epochs")
	learningRate := flag.Float64("lr", trainerCfg.LearningRate, "gradient descent learning rate")
	seed := flag.Int64("seed", trainerCfg.Seed, "sampling seed")
	out := flag.String("out", cfg.PolicyPath, "policy artifact output path")
	flag.Parse()

	trainerCfg.Episodes = *episodes
	trainerCfg.Epochs = *epochs
	trainerCfg.LearningRate = *learningRate
	trainerCfg.Seed = *seed

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	ruleSource, segments, events, closeStore, err := openStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer closeStore()

	factStore := rules.NewFactStore()
	if err := factStore.LoadFromSource(ctx, ruleSource); err != nil {
		log.Fatal().Err(err).Msg("Failed to load rules")
	}

	table := adaptive.NewTable()
	if err := table.LoadFrom(ctx, segments); err != nil {
		log.Fatal().Err(err).Msg("Failed to load segment weights")
	}

	// Full-history replay first: training must see weights derived from the
	// complete feedback log, not the incrementally served state.
	snapshot, err := adaptive.NewReplayer(table, segments, events).Rebuild(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to rebuild segment table from history")
	}

	cities := unionCities(factStore.Cities(), table.Cities())
	if len(cities) == 0 {
		log.Fatal().Msg("No cities to train on; load a rule pack first")
	}

	shaper := adaptive.NewShaper(snapshot)
	artifact := policy.NewTrainer(trainerCfg, shaper.Reward).Train(cities)

	if err := policy.Publish(artifact, *out); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish policy artifact")
	}

	c := cache.New(cfg.RedisAddr)
	defer c.Close()
	if err := c.PublishPolicyUpdate(ctx, artifact.Version); err != nil {
		log.Warn().Err(err).Msg("Failed to announce policy update")
	}

	log.Info().
		Str("version", artifact.Version).
		Str("path", *out).
		Int("cities", len(cities)).
		Msg("Policy artifact trained and published")
}

func openStores(cfg *config.Config) (rules.Source, adaptive.SegmentStore, adaptive.FeedbackLog, func(), error) {
	if cfg.DatabaseDSN != "" {
		store, err := gormdb.NewStore(gormdb.Config{
			DSN:      cfg.DatabaseDSN,
			MaxConns: cfg.MaxConns,
			LogLevel: logger.Silent,
		})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return gormdb.NewRuleStore(store), gormdb.NewSegmentStore(store), gormdb.NewFeedbackStore(store),
			func() { _ = store.Close() }, nil
	}

	store, err := sqlite.NewStore(sqlite.StoreConfig{Path: cfg.SQLitePath, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return sqlite.NewRuleStore(store), sqlite.NewSegmentStore(store), sqlite.NewFeedbackStore(store),
		func() { _ = store.Close() }, nil
}

func unionCities(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, city := range append(append([]string{}, a...), b...) {
		if city == "" || seen[city] {
			continue
		}
		seen[city] = true
		out = append(out, city)
	}
	sort.Strings(out)
	return out
}
