package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
	pkgerrors "github.com/pkg/errors"
)

// SaveAccount inserts or updates the account.
func (s *Store) SaveAccount(ctx context.Context, account *models.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, user_id, name, type, institution, last_four, currency, balance, last_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			institution = EXCLUDED.institution,
			last_four = EXCLUDED.last_four,
			currency = EXCLUDED.currency,
			balance = EXCLUDED.balance,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()`,
		account.ID, account.UserID, account.Name, account.Type.String(), account.Institution,
		account.LastFour, account.Currency, account.Balance, account.LastSyncedAt,
	)
	if err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "save account", err)
	}
	return nil
}

// GetAccount fetches one account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, type, institution, last_four, currency, balance, last_synced_at, created_at, updated_at
		FROM accounts WHERE id = $1`,
		accountID,
	)
	account, err := scanAccount(row)
	if err != nil {
		if pkgerrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.PersistenceError(errors.CodeNotFound, "get account "+accountID, err)
		}
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "get account", err)
	}
	return account, nil
}

// ListAccounts returns the user's accounts sorted by name.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, type, institution, last_four, currency, balance, last_synced_at, created_at, updated_at
		FROM accounts WHERE user_id = $1 ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list accounts", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.PersistenceError(errors.CodeQueryFailed, "scan account", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list accounts", err)
	}
	return accounts, nil
}

// TouchAccountSync stamps the account's last synced time.
func (s *Store) TouchAccountSync(ctx context.Context, accountID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET last_synced_at = NOW(), updated_at = NOW() WHERE id = $1`,
		accountID,
	)
	if err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "touch account sync", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.PersistenceError(errors.CodeNotFound, "touch account "+accountID, nil)
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	account := &models.Account{}
	var accountType string
	err := row.Scan(
		&account.ID, &account.UserID, &account.Name, &accountType, &account.Institution,
		&account.LastFour, &account.Currency, &account.Balance, &account.LastSyncedAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Type = models.AccountType(accountType)
	return account, nil
}
