// Package store defines the persistence interfaces of the import
// pipeline. Two implementations exist: memory, used by tests and
// single-shot CLI runs, and postgres for real deployments.
package store

import (
	"context"
	"time"

	"github.com/cathal-killeen/fins/internal/models"
)

// JobStore persists import jobs. SaveJob commits the job's full state
// atomically, so a Status read observes either the previous stage or
// the new one, never a half-written record.
type JobStore interface {
	SaveJob(ctx context.Context, job *models.ImportJob) error
	GetJob(ctx context.Context, jobID string) (*models.ImportJob, error)
	ListJobs(ctx context.Context, userID string) ([]*models.ImportJob, error)

	// ClaimJobStage moves the job from one stage to the next as a
	// single compare-and-swap and returns the updated job. Exactly one
	// of several concurrent claimants wins; the rest get a
	// stage-conflict error carrying the job's actual stage.
	ClaimJobStage(ctx context.Context, jobID string, from, to models.JobStage, message string) (*models.ImportJob, error)
}

// AccountStore persists accounts.
type AccountStore interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]*models.Account, error)
	TouchAccountSync(ctx context.Context, accountID string) error
}

// TransactionStore persists transactions.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []*models.Transaction) error
	UpdateTransactions(ctx context.Context, transactions []*models.Transaction) error
	ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error)

	// ListTransactionsBetween returns the account's transactions dated
	// within [from, to], oldest first. Imports use it to read just the
	// statement window instead of the full history.
	ListTransactionsBetween(ctx context.Context, accountID string, from, to time.Time) ([]*models.Transaction, error)

	// WithAccountLock runs fn while holding an exclusive per-account
	// lock, serializing concurrent imports into the same account.
	WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context) error) error
}

// RuleStore persists categorization rules. UpsertRule is keyed on
// (owner, pattern type, pattern value) and must be atomic under
// concurrent writers.
type RuleStore interface {
	ListRules(ctx context.Context, userID string) ([]*models.CategorizationRule, error)
	UpsertRule(ctx context.Context, rule *models.CategorizationRule) error
	RecordRuleUse(ctx context.Context, ruleID string) error
}

// RecurringStore persists recurring charge groups.
type RecurringStore interface {
	SaveRecurringGroups(ctx context.Context, groups []*models.RecurringGroup) error
	ListRecurringGroups(ctx context.Context, accountID string) ([]*models.RecurringGroup, error)
}

// Store is the full persistence surface the import pipeline needs.
type Store interface {
	JobStore
	AccountStore
	TransactionStore
	RuleStore
	RecurringStore
}
