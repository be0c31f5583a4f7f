package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
)

const transactionColumns = `id, account_id, user_id, date, post_date, amount, currency, description, merchant,
	category, subcategory, tags, is_recurring, recurring_group_id, confidence_score,
	ai_categorized, user_verified, created_at, updated_at`

// SaveTransactions inserts the transactions in one batch.
func (s *Store) SaveTransactions(ctx context.Context, transactions []*models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, tx := range transactions {
		batch.Queue(`
			INSERT INTO transactions (id, account_id, user_id, date, post_date, amount, currency,
				description, merchant, category, subcategory, tags, is_recurring, recurring_group_id,
				confidence_score, ai_categorized, user_verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, '')::uuid, $15, $16, $17, NOW(), NOW())`,
			tx.ID, tx.AccountID, tx.UserID, tx.Date, tx.PostDate, tx.Amount, tx.Currency,
			tx.Description, tx.Merchant, tx.Category, tx.Subcategory, tx.Tags, tx.IsRecurring,
			tx.RecurringGroupID, tx.ConfidenceScore, tx.AICategorized, tx.UserVerified,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range transactions {
		if _, err := results.Exec(); err != nil {
			return errors.PersistenceError(errors.CodeQueryFailed, "insert transactions", err)
		}
	}
	return nil
}

// UpdateTransactions writes back category and recurring fields for
// already persisted transactions.
func (s *Store) UpdateTransactions(ctx context.Context, transactions []*models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, tx := range transactions {
		batch.Queue(`
			UPDATE transactions SET
				category = $2, subcategory = $3, tags = $4,
				is_recurring = $5, recurring_group_id = NULLIF($6, '')::uuid,
				confidence_score = $7, ai_categorized = $8, user_verified = $9,
				updated_at = NOW()
			WHERE id = $1`,
			tx.ID, tx.Category, tx.Subcategory, tx.Tags,
			tx.IsRecurring, tx.RecurringGroupID,
			tx.ConfidenceScore, tx.AICategorized, tx.UserVerified,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, tx := range transactions {
		tag, err := results.Exec()
		if err != nil {
			return errors.PersistenceError(errors.CodeQueryFailed, "update transactions", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.PersistenceError(errors.CodeNotFound, "update transaction "+tx.ID, nil)
		}
	}
	return nil
}

// ListTransactions returns the account's transactions ordered oldest
// first.
func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY date, id`,
		accountID,
	)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list transactions", err)
	}
	return collectTransactions(rows)
}

// ListTransactionsBetween returns the account's transactions dated
// within [from, to], oldest first.
func (s *Store) ListTransactionsBetween(ctx context.Context, accountID string, from, to time.Time) ([]*models.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 AND date >= $2 AND date <= $3 ORDER BY date, id`,
		accountID, from, to,
	)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list transactions in range", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		tx := &models.Transaction{}
		var groupID *string
		err := rows.Scan(
			&tx.ID, &tx.AccountID, &tx.UserID, &tx.Date, &tx.PostDate, &tx.Amount, &tx.Currency,
			&tx.Description, &tx.Merchant, &tx.Category, &tx.Subcategory, &tx.Tags,
			&tx.IsRecurring, &groupID, &tx.ConfidenceScore,
			&tx.AICategorized, &tx.UserVerified, &tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, errors.PersistenceError(errors.CodeQueryFailed, "scan transaction", err)
		}
		if groupID != nil {
			tx.RecurringGroupID = *groupID
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list transactions", err)
	}
	return transactions, nil
}

// WithAccountLock runs fn inside a transaction holding the account's
// advisory lock. Concurrent imports into the same account queue behind
// the lock; the lock releases with the transaction.
func (s *Store) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.PersistenceError(errors.CodeConnectionFailed, "begin account lock transaction", err)
	}
	defer dbTx.Rollback(ctx)

	if _, err := dbTx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, accountID); err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "acquire account lock", err)
	}

	if err := fn(ctx); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "commit account lock transaction", err)
	}
	return nil
}
