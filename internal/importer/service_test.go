package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/cathal-killeen/fins/internal/categorize"
	"github.com/cathal-killeen/fins/internal/dedup"
	"github.com/cathal-killeen/fins/internal/matcher"
	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/internal/parsers"
	"github.com/cathal-killeen/fins/internal/recurring"
	"github.com/cathal-killeen/fins/internal/store/memory"
	"github.com/cathal-killeen/fins/pkg/errors"
)

const sampleCSV = `Date,Description,Amount
2026-03-01,STARBUCKS STORE #1234,-5.75
2026-03-02,SHELL OIL 5512,-40.00
2026-03-03,PAYROLL ACME CORP,2500.00
2026-03-05,NETFLIX.COM,-9.99
2026-03-07,WHOLE FOODS MARKET,-82.13
`

// fixedClassifier answers every request with one confident result so
// end-to-end runs do not need a live classification endpoint.
type fixedClassifier struct{}

func (fixedClassifier) Classify(ctx context.Context, batch []categorize.ClassificationRequest) ([]categorize.ClassificationResult, error) {
	results := make([]categorize.ClassificationResult, 0, len(batch))
	for _, req := range batch {
		results = append(results, categorize.ClassificationResult{
			ID:         req.ID,
			Category:   "Shopping",
			Confidence: 0.75,
		})
	}
	return results, nil
}

func newTestService(t *testing.T, st *memory.Store) *Service {
	t.Helper()

	parser, err := parsers.NewParser(nil)
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	matchEngine, err := matcher.NewEngine(nil)
	if err != nil {
		t.Fatalf("matcher.NewEngine() error = %v", err)
	}
	dedupEngine, err := dedup.NewEngine(nil)
	if err != nil {
		t.Fatalf("dedup.NewEngine() error = %v", err)
	}
	categorizer, err := categorize.NewEngine(nil, fixedClassifier{}, st)
	if err != nil {
		t.Fatalf("categorize.NewEngine() error = %v", err)
	}
	detector, err := recurring.NewDetector(nil)
	if err != nil {
		t.Fatalf("recurring.NewDetector() error = %v", err)
	}

	service, err := NewService(nil, st, parser, matchEngine, dedupEngine, categorizer, detector)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return service
}

func uploadAndWait(t *testing.T, s *Service, csv string) *models.ImportJob {
	t.Helper()
	result, err := s.Upload(context.Background(), "user-1", "statement.csv", []byte(csv), "text/csv")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	s.Wait()

	job, err := s.Status(context.Background(), result.JobID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return job
}

func TestUploadToAwaitingConfirmation(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)

	job := uploadAndWait(t, s, sampleCSV)
	if job.Stage != models.StageAwaitingConfirmation {
		t.Fatalf("job stage = %s, want %s (error: %s)", job.Stage, models.StageAwaitingConfirmation, job.Error)
	}
	if job.Progress != models.StageAwaitingConfirmation.Progress() {
		t.Errorf("progress = %d, want %d", job.Progress, models.StageAwaitingConfirmation.Progress())
	}
	if job.AccountMatch == nil {
		t.Fatal("job has no account match proposal")
	}
	if !job.AccountMatch.ShouldCreateNew {
		t.Error("with no accounts on file the proposal should be create-new")
	}
}

func TestConfirmCreateNewCompletesImport(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)
	ctx := context.Background()

	job := uploadAndWait(t, s, sampleCSV)

	confirmed, err := s.Confirm(ctx, job.ID, Confirmation{CreateNew: true, NewAccountName: "Everyday Checking"})
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if confirmed.Stage != models.StageImporting {
		t.Errorf("confirmed stage = %s, want importing", confirmed.Stage)
	}
	s.Wait()

	final, err := s.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if final.Stage != models.StageCompleted {
		t.Fatalf("final stage = %s, want completed (error: %s)", final.Stage, final.Error)
	}
	if final.Progress != 100 {
		t.Errorf("final progress = %d, want 100", final.Progress)
	}
	if final.AccountID == "" {
		t.Fatal("completed job has no account id")
	}

	account, err := st.GetAccount(ctx, final.AccountID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Name != "Everyday Checking" {
		t.Errorf("account name = %q, want Everyday Checking", account.Name)
	}
	if account.LastSyncedAt == nil {
		t.Error("account sync time not stamped after import")
	}

	transactions, err := st.ListTransactions(ctx, final.AccountID)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(transactions) != 5 {
		t.Fatalf("imported %d transactions, want 5", len(transactions))
	}
	for _, tx := range transactions {
		if !tx.IsCategorized() {
			t.Errorf("transaction %q not categorized", tx.Description)
		}
	}
}

func TestReimportSkipsDuplicates(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)
	ctx := context.Background()

	first := uploadAndWait(t, s, sampleCSV)
	if _, err := s.Confirm(ctx, first.ID, Confirmation{CreateNew: true, NewAccountName: "Checking"}); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	s.Wait()
	firstFinal, _ := s.Status(ctx, first.ID)

	second := uploadAndWait(t, s, sampleCSV)
	if second.AccountMatch == nil {
		t.Fatal("second upload has no match proposal")
	}
	if _, err := s.Confirm(ctx, second.ID, Confirmation{AccountID: firstFinal.AccountID}); err != nil {
		t.Fatalf("Confirm() second error = %v", err)
	}
	s.Wait()

	secondFinal, _ := s.Status(ctx, second.ID)
	if secondFinal.Stage != models.StageCompleted {
		t.Fatalf("second import stage = %s, want completed (error: %s)", secondFinal.Stage, secondFinal.Error)
	}
	if !strings.Contains(secondFinal.Message, "Imported 0 transactions, skipped 5 duplicates") {
		t.Errorf("second import message = %q", secondFinal.Message)
	}

	transactions, _ := st.ListTransactions(ctx, firstFinal.AccountID)
	if len(transactions) != 5 {
		t.Errorf("account has %d transactions after re-import, want 5", len(transactions))
	}
}

func TestConfirmValidation(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)
	ctx := context.Background()

	job := uploadAndWait(t, s, sampleCSV)

	_, err := s.Confirm(ctx, job.ID, Confirmation{})
	if !errors.HasCode(err, errors.CodeInvalidConfirmation) {
		t.Errorf("Confirm(neither) error = %v, want invalid_confirmation", err)
	}

	_, err = s.Confirm(ctx, job.ID, Confirmation{AccountID: "acct-1", CreateNew: true})
	if !errors.HasCode(err, errors.CodeInvalidConfirmation) {
		t.Errorf("Confirm(both) error = %v, want invalid_confirmation", err)
	}

	_, err = s.Confirm(ctx, job.ID, Confirmation{AccountID: "no-such-account"})
	if !errors.HasCode(err, errors.CodeInvalidConfirmation) {
		t.Errorf("Confirm(unknown account) error = %v, want invalid_confirmation", err)
	}

	_, err = s.Confirm(ctx, "no-such-job", Confirmation{CreateNew: true})
	if !errors.HasCode(err, errors.CodeJobNotFound) {
		t.Errorf("Confirm(unknown job) error = %v, want job_not_found", err)
	}
}

func TestConfirmWrongStage(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)
	ctx := context.Background()

	job := uploadAndWait(t, s, sampleCSV)
	if _, err := s.Confirm(ctx, job.ID, Confirmation{CreateNew: true, NewAccountName: "Checking"}); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	s.Wait()

	_, err := s.Confirm(ctx, job.ID, Confirmation{CreateNew: true, NewAccountName: "Checking"})
	if !errors.HasCode(err, errors.CodeInvalidConfirmation) {
		t.Errorf("Confirm(completed job) error = %v, want invalid_confirmation", err)
	}

	// The rejected confirmation must not have minted a second account.
	accounts, err := st.ListAccounts(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("user has %d accounts after rejected confirmation, want 1", len(accounts))
	}

	final, _ := s.Status(ctx, job.ID)
	if final.Stage != models.StageCompleted {
		t.Errorf("job stage after rejected confirmation = %s, want completed", final.Stage)
	}
}

func TestConfirmFromSecondProcessResumesJob(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	// Upload through one service instance, confirm through a fresh one
	// sharing only the store, as a restarted worker would.
	first := newTestService(t, st)
	job := uploadAndWait(t, first, sampleCSV)
	if job.Stage != models.StageAwaitingConfirmation {
		t.Fatalf("job stage = %s, want awaiting_confirmation (error: %s)", job.Stage, job.Error)
	}
	if len(job.RawTransactions) != 5 {
		t.Fatalf("suspended job carries %d transactions, want 5", len(job.RawTransactions))
	}

	second := newTestService(t, st)
	if _, err := second.Confirm(ctx, job.ID, Confirmation{CreateNew: true, NewAccountName: "Checking"}); err != nil {
		t.Fatalf("Confirm() from second service error = %v", err)
	}
	second.Wait()

	final, err := second.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if final.Stage != models.StageCompleted {
		t.Fatalf("final stage = %s, want completed (error: %s)", final.Stage, final.Error)
	}
	if len(final.RawTransactions) != 0 {
		t.Errorf("completed job still carries %d raw transactions", len(final.RawTransactions))
	}

	transactions, err := st.ListTransactions(ctx, final.AccountID)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(transactions) != 5 {
		t.Errorf("imported %d transactions, want 5", len(transactions))
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)

	huge := make([]byte, MaxFileSize+1)
	_, err := s.Upload(context.Background(), "user-1", "huge.csv", huge, "text/csv")
	if !errors.HasCode(err, errors.CodeFileTooLarge) {
		t.Errorf("Upload(oversized) error = %v, want file_too_large", err)
	}
}

func TestUnparseableUploadFailsJob(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)

	job := uploadAndWait(t, s, "this is not a statement")
	if job.Stage != models.StageFailed {
		t.Fatalf("job stage = %s, want failed", job.Stage)
	}
	if job.Error == "" {
		t.Error("failed job carries no error message")
	}
}

func TestMatchProposesExistingAccount(t *testing.T) {
	st := memory.New()
	s := newTestService(t, st)
	ctx := context.Background()

	account := &models.Account{
		ID: "acct-chase", UserID: "user-1", Name: "Chase Checking",
		Type: models.AccountTypeChecking, Institution: "Chase Bank",
		LastFour: "5678", Currency: "USD",
	}
	if err := st.SaveAccount(ctx, account); err != nil {
		t.Fatalf("SaveAccount() error = %v", err)
	}

	csv := "Chase Bank\nChecking Account Number: ****5678\n\n" + sampleCSV
	job := uploadAndWait(t, s, csv)
	if job.Stage != models.StageAwaitingConfirmation {
		t.Fatalf("job stage = %s (error: %s)", job.Stage, job.Error)
	}
	if job.AccountMatch == nil || job.AccountMatch.ShouldCreateNew {
		t.Fatalf("match = %+v, want proposal for the existing account", job.AccountMatch)
	}
	if job.AccountMatch.SuggestedAccountID != "acct-chase" {
		t.Errorf("suggested account = %s, want acct-chase", job.AccountMatch.SuggestedAccountID)
	}
}
