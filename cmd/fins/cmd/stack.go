package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/cathal-killeen/fins/cmd/fins/config"
	"github.com/cathal-killeen/fins/internal/categorize"
	"github.com/cathal-killeen/fins/internal/categorize/openaiclient"
	"github.com/cathal-killeen/fins/internal/dedup"
	"github.com/cathal-killeen/fins/internal/importer"
	"github.com/cathal-killeen/fins/internal/matcher"
	"github.com/cathal-killeen/fins/internal/parsers"
	"github.com/cathal-killeen/fins/internal/recurring"
	"github.com/cathal-killeen/fins/internal/store"
	"github.com/cathal-killeen/fins/internal/store/memory"
	"github.com/cathal-killeen/fins/internal/store/postgres"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// stack bundles the wired pipeline for one CLI invocation.
type stack struct {
	config  *config.Config
	store   store.Store
	service *importer.Service

	categorizer *categorize.Engine
	detector    *recurring.Detector

	cleanup func()
}

// buildStack loads configuration, applies it to the global logger,
// opens the configured store (in-memory when no database is set), and
// wires the import pipeline.
func buildStack(ctx context.Context) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if viper.GetBool("verbose") {
		cfg.Log.Level = logger.DebugLevel
	}
	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobalLogger(log)

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	parser, err := parsers.NewParser(cfg.Parser)
	if err != nil {
		cleanup()
		return nil, err
	}
	matchEngine, err := matcher.NewEngine(cfg.Matcher)
	if err != nil {
		cleanup()
		return nil, err
	}
	dedupEngine, err := dedup.NewEngine(cfg.Dedup)
	if err != nil {
		cleanup()
		return nil, err
	}

	var classifier categorize.Classifier
	if cfg.HasClassifier() {
		classifier, err = openaiclient.New(cfg.OpenAI)
		if err != nil {
			cleanup()
			return nil, err
		}
	}
	categorizer, err := categorize.NewEngine(cfg.Categorize, classifier, st)
	if err != nil {
		cleanup()
		return nil, err
	}

	detector, err := recurring.NewDetector(cfg.Recurring)
	if err != nil {
		cleanup()
		return nil, err
	}

	service, err := importer.NewService(cfg.Importer, st, parser, matchEngine, dedupEngine, categorizer, detector)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &stack{
		config:      cfg,
		store:       st,
		service:     service,
		categorizer: categorizer,
		detector:    detector,
		cleanup:     cleanup,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if !cfg.HasDatabase() {
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// requireDatabase is used by commands whose results must outlive the
// process.
func requireDatabase(cfg *config.Config) error {
	if !cfg.HasDatabase() {
		return fmt.Errorf("this command requires a database; set --dsn or FINS_DATABASE_DSN")
	}
	return nil
}
