package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PatternType selects the match predicate of a categorization rule.
// Order of declaration is also the priority order: exact merchant rules
// win over contains rules, which win over description patterns.
type PatternType string

const (
	PatternMerchantExact      PatternType = "merchant_exact"
	PatternMerchantContains   PatternType = "merchant_contains"
	PatternDescriptionPattern PatternType = "description_pattern"
)

// String returns the string representation of PatternType.
func (p PatternType) String() string {
	return string(p)
}

// IsValid checks if the pattern type is one of the known values.
func (p PatternType) IsValid() bool {
	switch p {
	case PatternMerchantExact, PatternMerchantContains, PatternDescriptionPattern:
		return true
	}
	return false
}

// Priority returns the rule-selection priority for this pattern type.
// Lower is stronger.
func (p PatternType) Priority() int {
	switch p {
	case PatternMerchantExact:
		return 0
	case PatternMerchantContains:
		return 1
	case PatternDescriptionPattern:
		return 2
	default:
		return 3
	}
}

// CategorizationRule maps a merchant or description pattern onto a
// category. Unique per (owner, pattern type, pattern value). Rules are
// created and strengthened by the categorization engine when the AI
// result is confident enough.
type CategorizationRule struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	PatternType  PatternType `json:"pattern_type"`
	PatternValue string      `json:"pattern_value"`
	Category     string      `json:"category"`
	Subcategory  string      `json:"subcategory,omitempty"`
	Confidence   float64     `json:"confidence"`
	UseCount     int         `json:"use_count"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Validate performs basic validation on the CategorizationRule.
func (r *CategorizationRule) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("rule owner cannot be empty")
	}

	if !r.PatternType.IsValid() {
		return fmt.Errorf("invalid pattern type: %s", r.PatternType)
	}

	if strings.TrimSpace(r.PatternValue) == "" {
		return fmt.Errorf("rule pattern value cannot be empty")
	}

	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("rule category cannot be empty")
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("rule confidence must be within [0,1], got %f", r.Confidence)
	}

	if r.PatternType == PatternDescriptionPattern {
		if _, err := regexp.Compile(r.PatternValue); err != nil {
			return fmt.Errorf("invalid description pattern %q: %w", r.PatternValue, err)
		}
	}

	return nil
}

// Matches applies the rule's predicate to a transaction's merchant and
// description. Merchant comparison is case-insensitive; description
// patterns are evaluated as case-insensitive regular expressions.
func (r *CategorizationRule) Matches(merchant, description string) bool {
	switch r.PatternType {
	case PatternMerchantExact:
		return merchant != "" &&
			strings.EqualFold(strings.TrimSpace(merchant), strings.TrimSpace(r.PatternValue))
	case PatternMerchantContains:
		return merchant != "" &&
			strings.Contains(strings.ToLower(merchant), strings.ToLower(r.PatternValue))
	case PatternDescriptionPattern:
		re, err := regexp.Compile("(?i)" + r.PatternValue)
		if err != nil {
			return false
		}
		return re.MatchString(description)
	default:
		return false
	}
}

// String returns a string representation of the CategorizationRule.
func (r *CategorizationRule) String() string {
	return fmt.Sprintf("CategorizationRule{%s %q -> %s/%s, confidence %.2f, used %d}",
		r.PatternType, r.PatternValue, r.Category, r.Subcategory, r.Confidence, r.UseCount)
}
