// Package main provides the rule pack ingestion CLI. It parses YAML or JSON
// rule packs and upserts them into the configured storage backend.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/Soham2704/ai-rule-intelligence-platform/internal/config"
	gormdb "github.com/Soham2704/ai-rule-intelligence-platform/internal/db/gorm"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/db/sqlite"
	"github.com/Soham2704/ai-rule-intelligence-platform/internal/rules"
	"github.com/Soham2704/ai-rule-intelligence-platform/pkg/models"
)

type ruleSink interface {
	UpsertRules(ctx context.Context, rules []models.Rule) error
	CountRules(ctx context.Context) (int, error)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Get()
	dir := flag.String("dir", cfg.RulePackDir, "directory of rule pack files to load")
	flag.Parse()

	var (
		loaded []models.Rule
		err    error
	)
	switch {
	case flag.NArg() > 0:
		for _, path := range flag.Args() {
			var pack []models.Rule
			pack, err = rules.LoadPackFile(path)
			if err != nil {
				log.Fatal().Err(err).Str("path", path).Msg("Failed to parse rule pack")
			}
			loaded = append(loaded, pack...)
		}
	case *dir != "":
		loaded, err = rules.LoadPackDir(*dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", *dir).Msg("Failed to load rule pack directory")
		}
	default:
		log.Fatal().Msg("Nothing to load: pass rule pack files or set -dir")
	}

	if len(loaded) == 0 {
		log.Fatal().Msg("No rules found in the given packs")
	}

	if err := config.EnsureDataDir(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sink, closeStore, err := openSink(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer closeStore()

	if err := sink.UpsertRules(ctx, loaded); err != nil {
		log.Fatal().Err(err).Msg("Failed to upsert rules")
	}

	total, err := sink.CountRules(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count rules")
	}
	log.Info().
		Int("loaded", len(loaded)).
		Int("total", total).
		Msg("Rule pack ingested")
}

func openSink(cfg *config.Config) (ruleSink, func(), error) {
	if cfg.DatabaseDSN != "" {
		store, err := gormdb.NewStore(gormdb.Config{
			DSN:      cfg.DatabaseDSN,
			MaxConns: cfg.MaxConns,
			LogLevel: logger.Silent,
		})
		if err != nil {
			return nil, nil, err
		}
		return gormdb.NewRuleStore(store), func() { _ = store.Close() }, nil
	}

	store, err := sqlite.NewStore(sqlite.StoreConfig{Path: cfg.SQLitePath, MaxConns: cfg.MaxConns})
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewRuleStore(store), func() { _ = store.Close() }, nil
}
