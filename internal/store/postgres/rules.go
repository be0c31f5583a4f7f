package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
)

// ListRules returns the user's categorization rules.
func (s *Store) ListRules(ctx context.Context, userID string) ([]*models.CategorizationRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, pattern_type, pattern_value, category, subcategory, confidence, use_count, created_at, updated_at
		FROM categorization_rules WHERE user_id = $1
		ORDER BY pattern_type, pattern_value`,
		userID,
	)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list rules", err)
	}
	defer rows.Close()

	var rules []*models.CategorizationRule
	for rows.Next() {
		rule := &models.CategorizationRule{}
		var patternType string
		err := rows.Scan(
			&rule.ID, &rule.UserID, &patternType, &rule.PatternValue, &rule.Category,
			&rule.Subcategory, &rule.Confidence, &rule.UseCount, &rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, errors.PersistenceError(errors.CodeQueryFailed, "scan rule", err)
		}
		rule.PatternType = models.PatternType(patternType)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list rules", err)
	}
	return rules, nil
}

// UpsertRule inserts the rule or refreshes the existing one with the
// same (owner, pattern type, pattern value) key. The unique constraint
// makes concurrent upserts converge on one row.
func (s *Store) UpsertRule(ctx context.Context, rule *models.CategorizationRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO categorization_rules (id, user_id, pattern_type, pattern_value, category, subcategory, confidence, use_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (user_id, pattern_type, pattern_value) DO UPDATE SET
			category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory,
			confidence = EXCLUDED.confidence,
			use_count = categorization_rules.use_count + 1,
			updated_at = NOW()
		RETURNING id`,
		rule.ID, rule.UserID, rule.PatternType.String(), rule.PatternValue,
		rule.Category, rule.Subcategory, rule.Confidence, rule.UseCount,
	).Scan(&rule.ID)
	if err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "upsert rule", err)
	}
	return nil
}

// RecordRuleUse bumps the rule's use counter.
func (s *Store) RecordRuleUse(ctx context.Context, ruleID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE categorization_rules SET use_count = use_count + 1, updated_at = NOW() WHERE id = $1`,
		ruleID,
	)
	if err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "record rule use", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.PersistenceError(errors.CodeNotFound, "record use of rule "+ruleID, nil)
	}
	return nil
}
