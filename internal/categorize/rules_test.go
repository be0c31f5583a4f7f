package categorize

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cathal-killeen/fins/internal/models"
)

func TestSelectRulePriority(t *testing.T) {
	contains := &models.CategorizationRule{
		ID:           "contains",
		UserID:       "user-1",
		PatternType:  models.PatternMerchantContains,
		PatternValue: "star",
		Category:     "Shopping",
		Confidence:   0.99,
	}
	exact := &models.CategorizationRule{
		ID:           "exact",
		UserID:       "user-1",
		PatternType:  models.PatternMerchantExact,
		PatternValue: "Starbucks",
		Category:     "Food",
		Confidence:   0.85,
	}
	pattern := &models.CategorizationRule{
		ID:           "pattern",
		UserID:       "user-1",
		PatternType:  models.PatternDescriptionPattern,
		PatternValue: "starbucks",
		Category:     "Entertainment",
		Confidence:   0.9,
	}

	got := selectRule([]*models.CategorizationRule{pattern, contains, exact}, "Starbucks", "STARBUCKS STORE #1234")
	if got == nil || got.ID != "exact" {
		t.Fatalf("selectRule() = %v, want the merchant_exact rule", got)
	}

	// Without an exact match, the higher-confidence rule of the best
	// remaining tier wins.
	got = selectRule([]*models.CategorizationRule{pattern, contains}, "Starbucks Reserve", "STARBUCKS STORE #1234")
	if got == nil || got.ID != "contains" {
		t.Fatalf("selectRule() = %v, want the merchant_contains rule", got)
	}

	if got := selectRule(nil, "Starbucks", "anything"); got != nil {
		t.Errorf("selectRule(nil rules) = %v, want nil", got)
	}
}

func TestLearnedRuleKeying(t *testing.T) {
	result := ClassificationResult{ID: "tx-1", Category: "Food", Subcategory: "Coffee Shops", Confidence: 0.95}

	withMerchant := &models.Transaction{
		Merchant:    "Starbucks",
		Description: "STARBUCKS STORE #1234",
		Amount:      decimal.RequireFromString("-5.75"),
	}
	rule := learnedRule("user-1", withMerchant, result)
	if rule.PatternType != models.PatternMerchantExact || rule.PatternValue != "Starbucks" {
		t.Errorf("rule = %s %q, want merchant_exact Starbucks", rule.PatternType, rule.PatternValue)
	}
	if rule.Category != "Food" || rule.Subcategory != "Coffee Shops" {
		t.Errorf("rule category = %s/%s, want Food/Coffee Shops", rule.Category, rule.Subcategory)
	}

	withoutMerchant := &models.Transaction{
		Description: "CHECK #104 (PAYMENT)",
		Amount:      decimal.RequireFromString("-100.00"),
	}
	rule = learnedRule("user-1", withoutMerchant, result)
	if rule.PatternType != models.PatternDescriptionPattern {
		t.Fatalf("rule type = %s, want description_pattern", rule.PatternType)
	}
	if !rule.Matches("", "CHECK #104 (PAYMENT)") {
		t.Errorf("learned pattern %q does not match its own source description", rule.PatternValue)
	}
}
