// Package memory is the in-process store implementation. It backs
// tests and single-shot CLI imports that have no database configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
)

// Store keeps everything in maps guarded by one mutex. Account locks
// are per-account mutexes created on demand.
type Store struct {
	mu           sync.RWMutex
	jobs         map[string]*models.ImportJob
	accounts     map[string]*models.Account
	transactions map[string]*models.Transaction
	rules        map[string]*models.CategorizationRule
	groups       map[string]*models.RecurringGroup

	lockMu       sync.Mutex
	accountLocks map[string]*sync.Mutex
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		jobs:         make(map[string]*models.ImportJob),
		accounts:     make(map[string]*models.Account),
		transactions: make(map[string]*models.Transaction),
		rules:        make(map[string]*models.CategorizationRule),
		groups:       make(map[string]*models.RecurringGroup),
		accountLocks: make(map[string]*sync.Mutex),
	}
}

func copyJob(job *models.ImportJob) *models.ImportJob {
	clone := *job
	clone.RawTransactions = append([]models.RawTransaction(nil), job.RawTransactions...)
	return &clone
}

// SaveJob stores a copy of the job.
func (s *Store) SaveJob(ctx context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(job)
	return nil
}

// GetJob returns a copy of the job or a job-not-found error.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.ConfirmationError(errors.CodeJobNotFound, jobID, "no such import job")
	}
	return copyJob(job), nil
}

// ListJobs returns the user's jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, userID string) ([]*models.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ImportJob
	for _, job := range s.jobs {
		if job.UserID == userID {
			out = append(out, copyJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ClaimJobStage performs the stage compare-and-swap under the store
// mutex, so only one claimant can move the job forward.
func (s *Store) ClaimJobStage(ctx context.Context, jobID string, from, to models.JobStage, message string) (*models.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.ConfirmationError(errors.CodeJobNotFound, jobID, "no such import job")
	}
	if job.Stage != from {
		return nil, errors.ConfirmationError(errors.CodeStageConflict, jobID,
			"job is "+job.Stage.String()+", not "+from.String())
	}

	job.Stage = to
	job.Progress = to.Progress()
	job.Message = message
	job.UpdatedAt = time.Now()
	return copyJob(job), nil
}

// SaveAccount stores a copy of the account, assigning an id when the
// account has none.
func (s *Store) SaveAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	clone := *account
	s.accounts[account.ID] = &clone
	return nil
}

// GetAccount returns a copy of the account.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, errors.PersistenceError(errors.CodeNotFound, "get account "+accountID, nil)
	}
	clone := *account
	return &clone, nil
}

// ListAccounts returns the user's accounts sorted by name.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Account
	for _, account := range s.accounts {
		if account.UserID == userID {
			clone := *account
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TouchAccountSync stamps the account's last synced time.
func (s *Store) TouchAccountSync(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return errors.PersistenceError(errors.CodeNotFound, "touch account "+accountID, nil)
	}
	now := time.Now()
	account.LastSyncedAt = &now
	return nil
}

// SaveTransactions stores copies of the transactions, assigning ids to
// any that have none.
func (s *Store) SaveTransactions(ctx context.Context, transactions []*models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range transactions {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		clone := *tx
		s.transactions[tx.ID] = &clone
	}
	return nil
}

// UpdateTransactions overwrites existing transactions.
func (s *Store) UpdateTransactions(ctx context.Context, transactions []*models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range transactions {
		if _, ok := s.transactions[tx.ID]; !ok {
			return errors.PersistenceError(errors.CodeNotFound, "update transaction "+tx.ID, nil)
		}
		clone := *tx
		s.transactions[tx.ID] = &clone
	}
	return nil
}

// ListTransactions returns the account's transactions ordered oldest
// first.
func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID == accountID {
			clone := *tx
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// ListTransactionsBetween returns the account's transactions dated
// within [from, to], oldest first.
func (s *Store) ListTransactionsBetween(ctx context.Context, accountID string, from, to time.Time) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.transactions {
		if tx.AccountID != accountID || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		clone := *tx
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// WithAccountLock serializes fn against other imports into the same
// account.
func (s *Store) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
	s.lockMu.Lock()
	lock, ok := s.accountLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.accountLocks[accountID] = lock
	}
	s.lockMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

// ListRules returns the user's rules.
func (s *Store) ListRules(ctx context.Context, userID string) ([]*models.CategorizationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CategorizationRule
	for _, rule := range s.rules {
		if rule.UserID == userID {
			clone := *rule
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertRule inserts or strengthens the rule keyed on (owner, pattern
// type, pattern value). A conflict updates category, subcategory, and
// confidence and increments the stored use count. The global mutex
// makes the upsert atomic.
func (s *Store) UpsertRule(ctx context.Context, rule *models.CategorizationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, existing := range s.rules {
		if existing.UserID == rule.UserID &&
			existing.PatternType == rule.PatternType &&
			existing.PatternValue == rule.PatternValue {
			existing.Category = rule.Category
			existing.Subcategory = rule.Subcategory
			existing.Confidence = rule.Confidence
			existing.UseCount++
			existing.UpdatedAt = now
			rule.ID = existing.ID
			return nil
		}
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	clone := *rule
	s.rules[rule.ID] = &clone
	return nil
}

// RecordRuleUse bumps the rule's use counter.
func (s *Store) RecordRuleUse(ctx context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return errors.PersistenceError(errors.CodeNotFound, "record use of rule "+ruleID, nil)
	}
	rule.UseCount++
	rule.UpdatedAt = time.Now()
	return nil
}

// SaveRecurringGroups stores copies of the groups, replacing earlier
// versions with the same id.
func (s *Store) SaveRecurringGroups(ctx context.Context, groups []*models.RecurringGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, group := range groups {
		if group.ID == "" {
			group.ID = uuid.NewString()
		}
		clone := *group
		clone.TransactionIDs = append([]string(nil), group.TransactionIDs...)
		s.groups[group.ID] = &clone
	}
	return nil
}

// ListRecurringGroups returns the account's groups sorted by merchant.
func (s *Store) ListRecurringGroups(ctx context.Context, accountID string) ([]*models.RecurringGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RecurringGroup
	for _, group := range s.groups {
		if group.AccountID == accountID {
			clone := *group
			clone.TransactionIDs = append([]string(nil), group.TransactionIDs...)
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Merchant < out[j].Merchant })
	return out, nil
}
