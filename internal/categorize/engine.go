// Package categorize assigns categories to transactions, preferring
// the owner's learned rules and falling back to the external AI
// classification capability. High-confidence AI verdicts are fed back
// into the rule set, so repeated merchants stop needing AI calls.
package categorize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// Config holds the categorization thresholds and batching limits.
type Config struct {
	// RuleConfidenceThreshold is the minimum rule confidence that
	// settles a transaction without an AI call.
	RuleConfidenceThreshold float64 `json:"rule_confidence_threshold" mapstructure:"rule_confidence_threshold"`

	// LearnThreshold is the AI confidence above which a new rule is
	// learned from the result.
	LearnThreshold float64 `json:"learn_threshold" mapstructure:"learn_threshold"`

	// LowConfidenceFloor: AI results below it are stored but filed
	// under the generic Other bucket.
	LowConfidenceFloor float64 `json:"low_confidence_floor" mapstructure:"low_confidence_floor"`

	// BatchSize bounds how many transactions go into one AI request.
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`

	// MaxConcurrent bounds in-flight AI requests across batches.
	MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"`

	// MaxRetries bounds attempts per batch before giving up.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration `json:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// DefaultConfig returns the standard categorization configuration.
func DefaultConfig() *Config {
	return &Config{
		RuleConfidenceThreshold: 0.8,
		LearnThreshold:          0.9,
		LowConfidenceFloor:      0.5,
		BatchSize:               30,
		MaxConcurrent:           5,
		MaxRetries:              3,
		RetryBaseDelay:          500 * time.Millisecond,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.RuleConfidenceThreshold < 0 || c.RuleConfidenceThreshold > 1 {
		return fmt.Errorf("rule confidence threshold must be within [0,1]: %f", c.RuleConfidenceThreshold)
	}

	if c.LearnThreshold < 0 || c.LearnThreshold > 1 {
		return fmt.Errorf("learn threshold must be within [0,1]: %f", c.LearnThreshold)
	}

	if c.LowConfidenceFloor < 0 || c.LowConfidenceFloor > 1 {
		return fmt.Errorf("low confidence floor must be within [0,1]: %f", c.LowConfidenceFloor)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive: %d", c.BatchSize)
	}

	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be positive: %d", c.MaxConcurrent)
	}

	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive: %d", c.MaxRetries)
	}

	return nil
}

// Stats summarizes one categorization pass.
type Stats struct {
	Total         int
	ByRule        int
	ByAI          int
	RulesLearned  int
	Uncategorized int
	FailedBatches int
}

// String returns a human-readable summary of the pass.
func (s *Stats) String() string {
	return fmt.Sprintf("Categorized %d of %d transactions (%d by rule, %d by AI, %d rules learned)",
		s.ByRule+s.ByAI, s.Total, s.ByRule, s.ByAI, s.RulesLearned)
}

// Engine runs the rule-first, AI-fallback categorization pipeline.
type Engine struct {
	config     *Config
	classifier Classifier
	rules      RuleStore
	logger     logger.Logger

	// sem bounds concurrent AI requests across all jobs sharing this
	// engine instance.
	sem chan struct{}
}

// NewEngine creates a categorization engine.
func NewEngine(config *Config, classifier Classifier, rules RuleStore) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "categorize", nil, err)
	}

	if rules == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "categorize.rule_store", nil, nil)
	}

	return &Engine{
		config:     config,
		classifier: classifier,
		rules:      rules,
		logger:     logger.GetGlobalLogger().WithComponent("categorize"),
		sem:        make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Categorize attempts every transaction in the slice, mutating each
// one's category fields in place. Classification failures never fail
// the pass: affected transactions are left uncategorized for a later
// retry, and the count is reported in Stats.
func (e *Engine) Categorize(ctx context.Context, userID string, transactions []*models.Transaction) (*Stats, error) {
	stats := &Stats{Total: len(transactions)}
	if len(transactions) == 0 {
		return stats, nil
	}

	rules, err := e.rules.ListRules(ctx, userID)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list categorization rules", err)
	}

	var needsAI []*models.Transaction
	for _, tx := range transactions {
		rule := selectRule(rules, tx.Merchant, tx.Description)
		if rule != nil && rule.Confidence >= e.config.RuleConfidenceThreshold {
			e.applyRule(ctx, tx, rule)
			stats.ByRule++
			continue
		}
		needsAI = append(needsAI, tx)
	}

	if len(needsAI) == 0 {
		return stats, nil
	}

	if e.classifier == nil {
		stats.Uncategorized = len(needsAI)
		e.logger.WithField("count", len(needsAI)).
			Warn("No classifier configured, leaving transactions uncategorized")
		return stats, nil
	}

	e.classifyBatches(ctx, userID, needsAI, stats)
	return stats, nil
}

func (e *Engine) applyRule(ctx context.Context, tx *models.Transaction, rule *models.CategorizationRule) {
	tx.Category = rule.Category
	tx.Subcategory = rule.Subcategory
	tx.ConfidenceScore = rule.Confidence
	tx.AICategorized = false

	if err := e.rules.RecordRuleUse(ctx, rule.ID); err != nil {
		e.logger.WithError(err).WithField("rule_id", rule.ID).
			Warn("Failed to record rule use")
	}
}

// classifyBatches splits the transactions into bounded batches and
// submits them concurrently, respecting the engine-wide concurrency
// limit.
func (e *Engine) classifyBatches(ctx context.Context, userID string, transactions []*models.Transaction, stats *Stats) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for start := 0; start < len(transactions); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(transactions) {
			end = len(transactions)
		}
		batch := transactions[start:end]

		wg.Add(1)
		go func(batch []*models.Transaction) {
			defer wg.Done()

			e.sem <- struct{}{}
			defer func() { <-e.sem }()

			batchStats, err := e.classifyBatch(ctx, userID, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FailedBatches++
				stats.Uncategorized += len(batch)
				e.logger.WithError(err).WithField("batch_size", len(batch)).
					Warn("Classification batch failed, transactions left uncategorized")
				return
			}
			stats.ByAI += batchStats.ByAI
			stats.RulesLearned += batchStats.RulesLearned
			stats.Uncategorized += batchStats.Uncategorized
		}(batch)
	}

	wg.Wait()
}

// classifyBatch submits one batch with bounded exponential-backoff
// retries and applies the results.
func (e *Engine) classifyBatch(ctx context.Context, userID string, batch []*models.Transaction) (*Stats, error) {
	requests := make([]ClassificationRequest, len(batch))
	byID := make(map[string]*models.Transaction, len(batch))
	for i, tx := range batch {
		requests[i] = ClassificationRequest{
			ID:          tx.ID,
			Merchant:    tx.Merchant,
			Description: tx.Description,
			Amount:      tx.Amount,
		}
		byID[tx.ID] = tx
	}

	results, err := e.classifyWithRetry(ctx, requests)
	if err != nil {
		return nil, err
	}

	if err := validateMapping(requests, results); err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, result := range results {
		tx := byID[result.ID]
		e.applyAIResult(ctx, userID, tx, result, stats)
	}
	return stats, nil
}

func (e *Engine) classifyWithRetry(ctx context.Context, requests []ClassificationRequest) ([]ClassificationResult, error) {
	var lastErr error

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.config.RetryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.ClassificationError(errors.CodeClassificationUnavailable,
					"context cancelled during retry backoff", ctx.Err())
			}
		}

		results, err := e.classifier.Classify(ctx, requests)
		if err == nil {
			return results, nil
		}
		lastErr = err

		e.logger.WithError(err).WithFields(logger.Fields{
			"attempt":     attempt + 1,
			"max_retries": e.config.MaxRetries,
		}).Warn("Classification attempt failed")
	}

	return nil, errors.ClassificationError(errors.CodeClassificationUnavailable,
		fmt.Sprintf("%d attempts exhausted", e.config.MaxRetries), lastErr)
}

// validateMapping rejects responses that do not map one-to-one onto
// the submitted ids.
func validateMapping(requests []ClassificationRequest, results []ClassificationResult) error {
	if len(results) != len(requests) {
		return errors.ClassificationError(errors.CodeMalformedResponse,
			fmt.Sprintf("submitted %d ids, received %d results", len(requests), len(results)), nil)
	}

	submitted := make(map[string]bool, len(requests))
	for _, req := range requests {
		submitted[req.ID] = true
	}

	seen := make(map[string]bool, len(results))
	for _, result := range results {
		if !submitted[result.ID] {
			return errors.ClassificationError(errors.CodeMalformedResponse,
				fmt.Sprintf("result references unknown id %q", result.ID), nil)
		}
		if seen[result.ID] {
			return errors.ClassificationError(errors.CodeMalformedResponse,
				fmt.Sprintf("result repeats id %q", result.ID), nil)
		}
		seen[result.ID] = true
	}

	return nil
}

func (e *Engine) applyAIResult(ctx context.Context, userID string, tx *models.Transaction, result ClassificationResult, stats *Stats) {
	category := NormalizeCategory(result.Category)

	// Low confidence is still a result: file it under Other rather
	// than treating it as a failure.
	if result.Confidence < e.config.LowConfidenceFloor {
		category = CategoryOther
	}

	tx.Category = category
	tx.Subcategory = result.Subcategory
	tx.ConfidenceScore = result.Confidence
	tx.AICategorized = true
	stats.ByAI++

	if result.Confidence > e.config.LearnThreshold && category != CategoryOther {
		rule := learnedRule(userID, tx, result)
		if err := e.rules.UpsertRule(ctx, rule); err != nil {
			e.logger.WithError(err).WithField("pattern", rule.PatternValue).
				Warn("Failed to learn categorization rule")
			return
		}
		stats.RulesLearned++
	}
}
