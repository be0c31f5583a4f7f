package categorize

import (
	"context"
	"regexp"
	"strings"

	"github.com/cathal-killeen/fins/internal/models"
)

// RuleStore is the per-user rule repository. UpsertRule must be atomic
// on (owner, pattern type, pattern value) so that concurrent batches
// cannot lose updates.
type RuleStore interface {
	ListRules(ctx context.Context, userID string) ([]*models.CategorizationRule, error)
	UpsertRule(ctx context.Context, rule *models.CategorizationRule) error
	RecordRuleUse(ctx context.Context, ruleID string) error
}

// selectRule picks the best matching rule for a transaction: matching
// rules are ranked by pattern-type priority first, then confidence.
func selectRule(rules []*models.CategorizationRule, merchant, description string) *models.CategorizationRule {
	var best *models.CategorizationRule

	for _, rule := range rules {
		if !rule.Matches(merchant, description) {
			continue
		}

		if best == nil {
			best = rule
			continue
		}

		bp, rp := best.PatternType.Priority(), rule.PatternType.Priority()
		if rp < bp || (rp == bp && rule.Confidence > best.Confidence) {
			best = rule
		}
	}

	return best
}

// learnedRule builds the rule to upsert from a high-confidence AI
// result: keyed on the exact merchant when one is known, otherwise on
// an escaped description pattern.
func learnedRule(userID string, tx *models.Transaction, result ClassificationResult) *models.CategorizationRule {
	rule := &models.CategorizationRule{
		UserID:      userID,
		Category:    NormalizeCategory(result.Category),
		Subcategory: result.Subcategory,
		Confidence:  result.Confidence,
		UseCount:    1,
	}

	if strings.TrimSpace(tx.Merchant) != "" {
		rule.PatternType = models.PatternMerchantExact
		rule.PatternValue = strings.TrimSpace(tx.Merchant)
		return rule
	}

	rule.PatternType = models.PatternDescriptionPattern
	rule.PatternValue = regexp.QuoteMeta(models.NormalizeDescription(tx.Description))
	return rule
}
