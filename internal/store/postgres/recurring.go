package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
)

// SaveRecurringGroups upserts the groups in one batch, replacing the
// member list of groups that already exist.
func (s *Store) SaveRecurringGroups(ctx context.Context, groups []*models.RecurringGroup) error {
	if len(groups) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, group := range groups {
		batch.Queue(`
			INSERT INTO recurring_groups (id, user_id, account_id, merchant, amount, period, transaction_ids, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			ON CONFLICT (id) DO UPDATE SET
				merchant = EXCLUDED.merchant,
				amount = EXCLUDED.amount,
				period = EXCLUDED.period,
				transaction_ids = EXCLUDED.transaction_ids`,
			group.ID, group.UserID, group.AccountID, group.Merchant,
			group.Amount, group.Period, group.TransactionIDs,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range groups {
		if _, err := results.Exec(); err != nil {
			return errors.PersistenceError(errors.CodeQueryFailed, "save recurring groups", err)
		}
	}
	return nil
}

// ListRecurringGroups returns the account's groups sorted by merchant.
func (s *Store) ListRecurringGroups(ctx context.Context, accountID string) ([]*models.RecurringGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, account_id, merchant, amount, period, transaction_ids, created_at
		FROM recurring_groups WHERE account_id = $1 ORDER BY merchant`,
		accountID,
	)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list recurring groups", err)
	}
	defer rows.Close()

	var groups []*models.RecurringGroup
	for rows.Next() {
		group := &models.RecurringGroup{}
		err := rows.Scan(
			&group.ID, &group.UserID, &group.AccountID, &group.Merchant,
			&group.Amount, &group.Period, &group.TransactionIDs, &group.CreatedAt,
		)
		if err != nil {
			return nil, errors.PersistenceError(errors.CodeQueryFailed, "scan recurring group", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list recurring groups", err)
	}
	return groups, nil
}
