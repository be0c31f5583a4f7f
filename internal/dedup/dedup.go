// Package dedup decides which candidate transactions from a statement
// import are true duplicates of already-persisted history.
//
// A candidate duplicates an existing transaction when the dates fall
// within a small tolerance (absorbing post-date versus transaction-date
// skew), the amounts are exactly equal, and the descriptions are
// similar after normalization. Matching is greedy and one-to-one in the
// statement's original order, which makes repeated runs deterministic
// and idempotent.
package dedup

import (
	"fmt"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/internal/textmatch"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// Config holds the duplicate-detection tolerances.
type Config struct {
	// DateToleranceDays is the maximum day gap between a candidate and
	// an existing transaction.
	DateToleranceDays int `json:"date_tolerance_days" mapstructure:"date_tolerance_days"`

	// DescriptionThreshold is the minimum normalized description
	// similarity for a duplicate verdict.
	DescriptionThreshold float64 `json:"description_threshold" mapstructure:"description_threshold"`
}

// DefaultConfig returns the standard dedup configuration.
func DefaultConfig() *Config {
	return &Config{
		DateToleranceDays:    1,
		DescriptionThreshold: 0.85,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", c.DateToleranceDays)
	}

	if c.DescriptionThreshold < 0 || c.DescriptionThreshold > 1 {
		return fmt.Errorf("description threshold must be within [0,1]: %f", c.DescriptionThreshold)
	}

	return nil
}

// Result partitions the candidates into rows to persist and rows to
// skip as duplicates.
type Result struct {
	ToInsert []models.RawTransaction
	ToSkip   []SkippedTransaction
}

// SkippedTransaction records why a candidate was dropped.
type SkippedTransaction struct {
	Candidate  models.RawTransaction
	ExistingID string
	Similarity float64
}

// Engine performs duplicate detection for one account at a time.
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine creates a dedup engine with the given configuration.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "dedup", nil, err)
	}

	return &Engine{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("dedup"),
	}, nil
}

// DateToleranceDays reports how far apart, in days, two transaction
// dates may be and still match.
func (e *Engine) DateToleranceDays() int {
	return e.config.DateToleranceDays
}

// Dedupe partitions candidates against the account's existing history
// in the overlapping date range. Candidates are evaluated in statement
// order and each existing transaction can absorb at most one candidate.
func (e *Engine) Dedupe(accountID string, candidates []models.RawTransaction, existing []*models.Transaction) *Result {
	result := &Result{
		ToInsert: make([]models.RawTransaction, 0, len(candidates)),
	}

	absorbed := make(map[string]bool, len(existing))

	for _, candidate := range candidates {
		match, similarity := e.findDuplicate(accountID, candidate, existing, absorbed)
		if match == nil {
			result.ToInsert = append(result.ToInsert, candidate)
			continue
		}

		absorbed[match.ID] = true
		result.ToSkip = append(result.ToSkip, SkippedTransaction{
			Candidate:  candidate,
			ExistingID: match.ID,
			Similarity: similarity,
		})
	}

	e.logger.WithFields(logger.Fields{
		"account_id": accountID,
		"candidates": len(candidates),
		"to_insert":  len(result.ToInsert),
		"skipped":    len(result.ToSkip),
	}).Info("Duplicate detection finished")

	return result
}

// findDuplicate returns the first unabsorbed existing transaction that
// the candidate duplicates, or nil.
func (e *Engine) findDuplicate(accountID string, candidate models.RawTransaction, existing []*models.Transaction, absorbed map[string]bool) (*models.Transaction, float64) {
	for _, tx := range existing {
		if absorbed[tx.ID] {
			continue
		}
		if tx.AccountID != accountID {
			continue
		}
		if !models.DatesWithinTolerance(candidate.Date, tx.Date, e.config.DateToleranceDays) {
			continue
		}
		if !candidate.Amount.Equal(tx.Amount) {
			continue
		}

		similarity := textmatch.Similarity(candidate.Description, tx.Description)
		if similarity >= e.config.DescriptionThreshold {
			return tx, similarity
		}
	}

	return nil, 0
}
