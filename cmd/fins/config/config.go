// Package config assembles the runtime configuration of the fins CLI
// from defaults, an optional config file, and FINS_* environment
// variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/cathal-killeen/fins/internal/categorize"
	"github.com/cathal-killeen/fins/internal/categorize/openaiclient"
	"github.com/cathal-killeen/fins/internal/dedup"
	"github.com/cathal-killeen/fins/internal/importer"
	"github.com/cathal-killeen/fins/internal/matcher"
	"github.com/cathal-killeen/fins/internal/parsers"
	"github.com/cathal-killeen/fins/internal/recurring"
	"github.com/cathal-killeen/fins/internal/store/postgres"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// Config is the full CLI configuration tree.
type Config struct {
	Log        *logger.Config       `mapstructure:"log"`
	Database   *postgres.Config     `mapstructure:"database"`
	OpenAI     *openaiclient.Config `mapstructure:"openai"`
	Parser     *parsers.Config      `mapstructure:"parser"`
	Matcher    *matcher.Config      `mapstructure:"matcher"`
	Dedup      *dedup.Config        `mapstructure:"dedup"`
	Categorize *categorize.Config   `mapstructure:"categorize"`
	Recurring  *recurring.Config    `mapstructure:"recurring"`
	Importer   *importer.Config     `mapstructure:"importer"`
}

// Load unmarshals the viper state into a Config, filling unset
// sections with their package defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Log:        logger.DefaultConfig(),
		Database:   postgres.DefaultConfig(),
		OpenAI:     openaiclient.DefaultConfig(),
		Parser:     parsers.DefaultConfig(),
		Matcher:    matcher.DefaultConfig(),
		Dedup:      dedup.DefaultConfig(),
		Categorize: categorize.DefaultConfig(),
		Recurring:  recurring.DefaultConfig(),
		Importer:   importer.DefaultConfig(),
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Log.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}
	if err := cfg.Parser.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parser configuration: %w", err)
	}
	if err := cfg.Matcher.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher configuration: %w", err)
	}
	if err := cfg.Dedup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup configuration: %w", err)
	}
	if err := cfg.Categorize.Validate(); err != nil {
		return nil, fmt.Errorf("invalid categorize configuration: %w", err)
	}
	if err := cfg.Recurring.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recurring configuration: %w", err)
	}
	if err := cfg.Importer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid importer configuration: %w", err)
	}

	return cfg, nil
}

// HasDatabase reports whether a database DSN is configured.
func (c *Config) HasDatabase() bool {
	return c.Database != nil && c.Database.DSN != ""
}

// HasClassifier reports whether classification credentials are
// configured.
func (c *Config) HasClassifier() bool {
	return c.OpenAI != nil && c.OpenAI.APIKey != ""
}
