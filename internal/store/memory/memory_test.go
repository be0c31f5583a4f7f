package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
)

func TestJobRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := &models.ImportJob{
		ID:       "job-1",
		UserID:   "user-1",
		Stage:    models.StageUploaded,
		Progress: 5,
		FileName: "statement.csv",
		FileSize: 1024,
	}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Stage != models.StageUploaded || got.FileName != "statement.csv" {
		t.Errorf("GetJob() = %+v", got)
	}

	// Mutating the returned copy must not change the stored record.
	got.Stage = models.StageFailed
	again, _ := s.GetJob(ctx, "job-1")
	if again.Stage != models.StageUploaded {
		t.Error("stored job mutated through returned copy")
	}

	_, err = s.GetJob(ctx, "missing")
	if !errors.HasCode(err, errors.CodeJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want job_not_found", err)
	}
}

func TestUpsertRuleKeying(t *testing.T) {
	s := New()
	ctx := context.Background()

	rule := &models.CategorizationRule{
		UserID:       "user-1",
		PatternType:  models.PatternMerchantExact,
		PatternValue: "Starbucks",
		Category:     "Food",
		Confidence:   0.9,
		UseCount:     1,
	}
	if err := s.UpsertRule(ctx, rule); err != nil {
		t.Fatalf("UpsertRule() error = %v", err)
	}
	firstID := rule.ID

	update := &models.CategorizationRule{
		UserID:       "user-1",
		PatternType:  models.PatternMerchantExact,
		PatternValue: "Starbucks",
		Category:     "Food",
		Subcategory:  "Coffee Shops",
		Confidence:   0.95,
		UseCount:     2,
	}
	if err := s.UpsertRule(ctx, update); err != nil {
		t.Fatalf("UpsertRule() update error = %v", err)
	}
	if update.ID != firstID {
		t.Errorf("upsert minted a new id %s, want %s", update.ID, firstID)
	}

	rules, _ := s.ListRules(ctx, "user-1")
	if len(rules) != 1 {
		t.Fatalf("ListRules() returned %d rules, want 1", len(rules))
	}
	if rules[0].Subcategory != "Coffee Shops" || rules[0].Confidence != 0.95 {
		t.Errorf("rule not updated: %+v", rules[0])
	}

	if err := s.RecordRuleUse(ctx, firstID); err != nil {
		t.Fatalf("RecordRuleUse() error = %v", err)
	}
	rules, _ = s.ListRules(ctx, "user-1")
	if rules[0].UseCount != 3 {
		t.Errorf("use count = %d, want 3", rules[0].UseCount)
	}
}

func TestUpsertRuleAccumulatesUseCount(t *testing.T) {
	s := New()
	ctx := context.Background()

	rule := &models.CategorizationRule{
		UserID:       "user-1",
		PatternType:  models.PatternMerchantExact,
		PatternValue: "Netflix",
		Category:     "Entertainment",
		Confidence:   0.9,
		UseCount:     1,
	}
	if err := s.UpsertRule(ctx, rule); err != nil {
		t.Fatalf("UpsertRule() error = %v", err)
	}
	if err := s.RecordRuleUse(ctx, rule.ID); err != nil {
		t.Fatalf("RecordRuleUse() error = %v", err)
	}

	// Re-learning the same pattern strengthens the stored count; the
	// incoming count never overwrites accumulated uses.
	again := &models.CategorizationRule{
		UserID:       "user-1",
		PatternType:  models.PatternMerchantExact,
		PatternValue: "Netflix",
		Category:     "Entertainment",
		Confidence:   0.9,
		UseCount:     1,
	}
	if err := s.UpsertRule(ctx, again); err != nil {
		t.Fatalf("UpsertRule() again error = %v", err)
	}

	rules, _ := s.ListRules(ctx, "user-1")
	if len(rules) != 1 {
		t.Fatalf("ListRules() returned %d rules, want 1", len(rules))
	}
	if rules[0].UseCount != 3 {
		t.Errorf("use count after re-upsert = %d, want 3", rules[0].UseCount)
	}
}

func TestClaimJobStage(t *testing.T) {
	s := New()
	ctx := context.Background()

	job := &models.ImportJob{
		ID:       "job-1",
		UserID:   "user-1",
		Stage:    models.StageAwaitingConfirmation,
		Progress: models.StageAwaitingConfirmation.Progress(),
		FileName: "statement.csv",
	}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	claimed, err := s.ClaimJobStage(ctx, "job-1",
		models.StageAwaitingConfirmation, models.StageImporting, "Importing transactions")
	if err != nil {
		t.Fatalf("ClaimJobStage() error = %v", err)
	}
	if claimed.Stage != models.StageImporting {
		t.Errorf("claimed stage = %s, want importing", claimed.Stage)
	}
	if claimed.Progress != models.StageImporting.Progress() {
		t.Errorf("claimed progress = %d, want %d", claimed.Progress, models.StageImporting.Progress())
	}

	// The second claim loses: the job already moved on.
	_, err = s.ClaimJobStage(ctx, "job-1",
		models.StageAwaitingConfirmation, models.StageImporting, "Importing transactions")
	if !errors.HasCode(err, errors.CodeStageConflict) {
		t.Errorf("ClaimJobStage() repeat error = %v, want stage_conflict", err)
	}

	_, err = s.ClaimJobStage(ctx, "missing",
		models.StageAwaitingConfirmation, models.StageImporting, "Importing transactions")
	if !errors.HasCode(err, errors.CodeJobNotFound) {
		t.Errorf("ClaimJobStage(missing) error = %v, want job_not_found", err)
	}
}

func TestWithAccountLockSerializes(t *testing.T) {
	s := New()
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithAccountLock(ctx, "acct-1", func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("observed %d holders inside the account lock, want 1", maxInside)
	}
}

func TestListTransactionsOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	txs := []*models.Transaction{
		{ID: "c", AccountID: "acct-1", UserID: "u", Date: base.AddDate(0, 0, 2), Amount: decimal.New(-1, 0), Currency: "USD", Description: "c"},
		{ID: "a", AccountID: "acct-1", UserID: "u", Date: base, Amount: decimal.New(-1, 0), Currency: "USD", Description: "a"},
		{ID: "b", AccountID: "acct-1", UserID: "u", Date: base.AddDate(0, 0, 1), Amount: decimal.New(-1, 0), Currency: "USD", Description: "b"},
	}
	if err := s.SaveTransactions(ctx, txs); err != nil {
		t.Fatalf("SaveTransactions() error = %v", err)
	}

	got, err := s.ListTransactions(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("ListTransactions() order = %v", []string{got[0].ID, got[1].ID, got[2].ID})
	}
}

func TestListTransactionsBetween(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	txs := []*models.Transaction{
		{ID: "before", AccountID: "acct-1", UserID: "u", Date: base.AddDate(0, 0, -10), Amount: decimal.New(-1, 0), Currency: "USD", Description: "before"},
		{ID: "edge", AccountID: "acct-1", UserID: "u", Date: base, Amount: decimal.New(-1, 0), Currency: "USD", Description: "edge"},
		{ID: "inside", AccountID: "acct-1", UserID: "u", Date: base.AddDate(0, 0, 3), Amount: decimal.New(-1, 0), Currency: "USD", Description: "inside"},
		{ID: "after", AccountID: "acct-1", UserID: "u", Date: base.AddDate(0, 0, 30), Amount: decimal.New(-1, 0), Currency: "USD", Description: "after"},
		{ID: "other", AccountID: "acct-2", UserID: "u", Date: base, Amount: decimal.New(-1, 0), Currency: "USD", Description: "other"},
	}
	if err := s.SaveTransactions(ctx, txs); err != nil {
		t.Fatalf("SaveTransactions() error = %v", err)
	}

	got, err := s.ListTransactionsBetween(ctx, "acct-1", base, base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ListTransactionsBetween() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "edge" || got[1].ID != "inside" {
		ids := make([]string, len(got))
		for i, tx := range got {
			ids[i] = tx.ID
		}
		t.Errorf("ListTransactionsBetween() = %v, want [edge inside]", ids)
	}
}

func TestTouchAccountSync(t *testing.T) {
	s := New()
	ctx := context.Background()

	account := &models.Account{
		ID: "acct-1", UserID: "user-1", Name: "Checking",
		Type: models.AccountTypeChecking, Currency: "USD",
	}
	if err := s.SaveAccount(ctx, account); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	if err := s.TouchAccountSync(ctx, "acct-1"); err != nil {
		t.Fatalf("TouchAccountSync() error = %v", err)
	}
	got, _ := s.GetAccount(ctx, "acct-1")
	if got.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set after touch")
	}

	if err := s.TouchAccountSync(ctx, "missing"); !errors.HasCode(err, errors.CodeNotFound) {
		t.Errorf("TouchAccountSync(missing) error = %v, want not_found", err)
	}
}
