// Package importer orchestrates the statement import pipeline: upload,
// parse, account match, user confirmation, deduplicated import,
// categorization, and recurring detection. State is carried by an
// ImportJob that moves through a fixed stage progression, with failed
// reachable from every non-terminal stage.
package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cathal-killeen/fins/internal/categorize"
	"github.com/cathal-killeen/fins/internal/dedup"
	"github.com/cathal-killeen/fins/internal/matcher"
	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/internal/parsers"
	"github.com/cathal-killeen/fins/internal/recurring"
	"github.com/cathal-killeen/fins/internal/store"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// MaxFileSize is the upload size ceiling.
const MaxFileSize = 10 << 20

// Config holds the importer's own settings. Component configs are
// owned by the components themselves.
type Config struct {
	MaxFileSize int64 `json:"max_file_size" mapstructure:"max_file_size"`
}

// DefaultConfig returns the standard importer configuration.
func DefaultConfig() *Config {
	return &Config{MaxFileSize: MaxFileSize}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive: %d", c.MaxFileSize)
	}
	return nil
}

// Service coordinates the import pipeline components.
type Service struct {
	config      *Config
	store       store.Store
	parser      *parsers.Parser
	matcher     *matcher.Engine
	dedup       *dedup.Engine
	categorizer *categorize.Engine
	detector    *recurring.Detector
	logger      logger.Logger

	wg sync.WaitGroup
}

// NewService wires the pipeline components together.
func NewService(
	config *Config,
	st store.Store,
	parser *parsers.Parser,
	matchEngine *matcher.Engine,
	dedupEngine *dedup.Engine,
	categorizer *categorize.Engine,
	detector *recurring.Detector,
) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "importer", nil, err)
	}
	if st == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "importer.store", nil, nil)
	}

	return &Service{
		config:      config,
		store:       st,
		parser:      parser,
		matcher:     matchEngine,
		dedup:       dedupEngine,
		categorizer: categorizer,
		detector:    detector,
		logger:      logger.GetGlobalLogger().WithComponent("importer"),
	}, nil
}

// UploadResult acknowledges a received statement file.
type UploadResult struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// Upload accepts a statement file, creates the import job, and starts
// the intake pipeline in the background. The returned result only
// acknowledges receipt; poll Status for progress.
func (s *Service) Upload(ctx context.Context, userID, fileName string, data []byte, mimeType string) (*UploadResult, error) {
	if int64(len(data)) > s.config.MaxFileSize {
		return nil, errors.FileError(errors.CodeFileTooLarge, fileName,
			fmt.Errorf("file is %d bytes, limit is %d", len(data), s.config.MaxFileSize))
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "user_id", nil, nil)
	}

	now := time.Now()
	job := &models.ImportJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Stage:     models.StageUploaded,
		Progress:  models.StageUploaded.Progress(),
		Message:   "File received",
		FileName:  fileName,
		FileSize:  int64(len(data)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runIntake(context.WithoutCancel(ctx), job, data, mimeType)
	}()

	return &UploadResult{JobID: job.ID, FileName: fileName, FileSize: job.FileSize}, nil
}

// Status returns the job's latest committed state. It never blocks on
// pipeline work.
func (s *Service) Status(ctx context.Context, jobID string) (*models.ImportJob, error) {
	return s.store.GetJob(ctx, jobID)
}

// Jobs lists the user's import jobs, newest first.
func (s *Service) Jobs(ctx context.Context, userID string) ([]*models.ImportJob, error) {
	return s.store.ListJobs(ctx, userID)
}

// Wait blocks until all background pipeline work has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// runIntake takes a fresh upload through parsing and account matching,
// leaving the job awaiting the user's confirmation.
func (s *Service) runIntake(ctx context.Context, job *models.ImportJob, data []byte, mimeType string) {
	stage := logger.NewStageLogger(s.logger, job.ID, models.StageParsing.String())

	if err := s.advance(ctx, job, models.StageParsing, "Parsing statement"); err != nil {
		stage.Failed(err)
		return
	}

	metadata, raw, stats, err := s.parser.Parse(job.FileName, data, mimeType)
	if err != nil {
		s.fail(ctx, job, err)
		stage.Failed(err)
		return
	}
	stage.Progress("Parsed statement", stats.RowsParsed, stats.RowsSeen)
	for _, warning := range stats.Warnings {
		stage.Warn(warning, nil)
	}

	job.Metadata = metadata
	if err := s.advance(ctx, job, models.StageMatching, "Matching account"); err != nil {
		stage.Failed(err)
		return
	}

	accounts, err := s.store.ListAccounts(ctx, job.UserID)
	if err != nil {
		s.fail(ctx, job, err)
		stage.Failed(err)
		return
	}
	job.AccountMatch = s.matcher.Match(metadata, accounts)

	// The parsed statement is persisted on the job so a confirmation
	// arriving in another process can resume the import.
	job.RawTransactions = raw

	if err := s.advance(ctx, job, models.StageAwaitingConfirmation, "Awaiting account confirmation"); err != nil {
		stage.Failed(err)
		return
	}
	stage.Done(logger.Fields{"transactions": len(raw)})
}

// Confirmation is the user's answer to an account match proposal.
// Exactly one of AccountID or CreateNew must be set.
type Confirmation struct {
	AccountID      string `json:"account_id,omitempty"`
	CreateNew      bool   `json:"create_new,omitempty"`
	NewAccountName string `json:"new_account_name,omitempty"`
}

// Confirm resolves the account decision and resumes the pipeline. The
// stage transition is a compare-and-swap in the store, so when two
// confirmations race, exactly one resumes the job and the other is
// rejected without side effects. The import itself continues in the
// background; the returned job shows the importing stage.
func (s *Service) Confirm(ctx context.Context, jobID string, conf Confirmation) (*models.ImportJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Stage != models.StageAwaitingConfirmation {
		return nil, errors.ConfirmationError(errors.CodeInvalidConfirmation, jobID,
			fmt.Sprintf("job is %s, confirmation requires %s", job.Stage, models.StageAwaitingConfirmation))
	}

	if (conf.AccountID == "") == !conf.CreateNew {
		return nil, errors.ConfirmationError(errors.CodeInvalidConfirmation, jobID,
			"exactly one of account_id or create_new must be provided")
	}

	// Resolve an existing account before claiming the job, so a bad
	// account id leaves the job awaiting confirmation.
	var account *models.Account
	if conf.AccountID != "" {
		account, err = s.store.GetAccount(ctx, conf.AccountID)
		if err != nil {
			if errors.HasCode(err, errors.CodeNotFound) {
				return nil, errors.ConfirmationError(errors.CodeInvalidConfirmation, jobID,
					"confirmed account does not exist: "+conf.AccountID)
			}
			return nil, err
		}
	}

	job, err = s.store.ClaimJobStage(ctx, jobID,
		models.StageAwaitingConfirmation, models.StageImporting, "Importing transactions")
	if err != nil {
		if errors.HasCode(err, errors.CodeStageConflict) {
			return nil, errors.ConfirmationError(errors.CodeInvalidConfirmation, jobID,
				"job is no longer awaiting confirmation")
		}
		return nil, err
	}

	// Account creation happens only on the winning claim.
	if account == nil {
		account = accountFromMetadata(job, strings.TrimSpace(conf.NewAccountName))
		if err := s.store.SaveAccount(ctx, account); err != nil {
			s.fail(ctx, job, err)
			return nil, err
		}
	}

	job.AccountID = account.ID
	if err := s.store.SaveJob(ctx, job); err != nil {
		s.fail(ctx, job, err)
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runImport(context.WithoutCancel(ctx), job, account)
	}()

	clone := *job
	return &clone, nil
}

func accountFromMetadata(job *models.ImportJob, name string) *models.Account {
	account := &models.Account{
		ID:       uuid.NewString(),
		UserID:   job.UserID,
		Name:     name,
		Type:     models.AccountTypeOther,
		Currency: "USD",
	}

	if meta := job.Metadata; meta != nil {
		account.Institution = meta.Institution
		account.LastFour = meta.LastFour
		if meta.AccountType.IsValid() {
			account.Type = meta.AccountType
		}
		if meta.Currency != "" {
			account.Currency = meta.Currency
		}
	}

	if account.Name == "" {
		if job.AccountMatch != nil && job.AccountMatch.SuggestedAccountName != "" {
			account.Name = job.AccountMatch.SuggestedAccountName
		} else {
			account.Name = matcher.SynthesizeAccountName(job.Metadata)
		}
	}

	return account
}

// runImport performs the deduplicated import, then categorization and
// recurring detection, and completes the job.
func (s *Service) runImport(ctx context.Context, job *models.ImportJob, account *models.Account) {
	stage := logger.NewStageLogger(s.logger, job.ID, models.StageImporting.String())

	raw := job.RawTransactions
	if len(raw) == 0 {
		err := errors.InternalError("resume import", fmt.Errorf("job %s has no persisted transactions", job.ID))
		s.fail(ctx, job, err)
		stage.Failed(err)
		return
	}

	from, to := statementWindow(raw, s.dedup.DateToleranceDays())

	var inserted []*models.Transaction
	var skipped int
	err := s.store.WithAccountLock(ctx, account.ID, func(ctx context.Context) error {
		// Duplicates can only collide inside the statement window, so
		// the existing history is read over that range rather than the
		// whole account.
		existing, err := s.store.ListTransactionsBetween(ctx, account.ID, from, to)
		if err != nil {
			return err
		}

		result := s.dedup.Dedupe(account.ID, raw, existing)
		skipped = len(result.ToSkip)

		now := time.Now()
		for _, candidate := range result.ToInsert {
			inserted = append(inserted, models.FromRaw(candidate, account.ID, job.UserID, uuid.NewString(), now))
		}

		if err := s.store.SaveTransactions(ctx, inserted); err != nil {
			return err
		}
		return s.store.TouchAccountSync(ctx, account.ID)
	})
	if err != nil {
		s.fail(ctx, job, err)
		stage.Failed(err)
		return
	}
	stage.Progress("Imported transactions", len(inserted), len(raw))

	if err := s.advance(ctx, job, models.StageCategorizing, "Categorizing transactions"); err != nil {
		stage.Failed(err)
		return
	}

	s.enrich(ctx, job, account, inserted, stage)

	message := fmt.Sprintf("Imported %d transactions, skipped %d duplicates", len(inserted), skipped)
	job.Message = message
	job.RawTransactions = nil
	if err := s.advance(ctx, job, models.StageCompleted, message); err != nil {
		stage.Failed(err)
		return
	}
	stage.Done(logger.Fields{"imported": len(inserted), "skipped": skipped})
}

// statementWindow returns the statement's date span widened by the
// dedup tolerance on each side.
func statementWindow(raw []models.RawTransaction, toleranceDays int) (time.Time, time.Time) {
	min, max := raw[0].Date, raw[0].Date
	for _, tx := range raw[1:] {
		if tx.Date.Before(min) {
			min = tx.Date
		}
		if tx.Date.After(max) {
			max = tx.Date
		}
	}
	pad := time.Duration(toleranceDays) * 24 * time.Hour
	return min.Add(-pad), max.Add(pad)
}

// enrich runs categorization and recurring detection over the account.
// Both are best effort: their failures degrade the result, never the
// job.
func (s *Service) enrich(ctx context.Context, job *models.ImportJob, account *models.Account, inserted []*models.Transaction, stage *logger.StageLogger) {
	if s.categorizer != nil && len(inserted) > 0 {
		stats, err := s.categorizer.Categorize(ctx, job.UserID, inserted)
		if err != nil {
			stage.Warn("Categorization failed", logger.Fields{"error": err.Error()})
		} else if stats.Uncategorized > 0 {
			stage.Warn("Some transactions left uncategorized", logger.Fields{"count": stats.Uncategorized})
		}
	}

	all, err := s.store.ListTransactions(ctx, account.ID)
	if err != nil {
		stage.Warn("Could not reload transactions for recurring detection", logger.Fields{"error": err.Error()})
		all = inserted
	}

	// Carry categorization onto the freshly reloaded copies before
	// detection so one write-back covers both concerns.
	byID := make(map[string]*models.Transaction, len(inserted))
	for _, tx := range inserted {
		byID[tx.ID] = tx
	}
	for _, tx := range all {
		if src, ok := byID[tx.ID]; ok {
			tx.Category = src.Category
			tx.Subcategory = src.Subcategory
			tx.ConfidenceScore = src.ConfidenceScore
			tx.AICategorized = src.AICategorized
		}
	}

	if s.detector != nil {
		groups := s.detector.Detect(job.UserID, account.ID, all)
		if len(groups) > 0 {
			if err := s.store.SaveRecurringGroups(ctx, groups); err != nil {
				stage.Warn("Could not save recurring groups", logger.Fields{"error": err.Error()})
			}
		}
	}

	if err := s.store.UpdateTransactions(ctx, all); err != nil {
		stage.Warn("Could not write back enrichment", logger.Fields{"error": err.Error()})
	}
}

// advance moves the job to the next stage and commits it. An invalid
// transition is a programming error surfaced as a stage conflict.
func (s *Service) advance(ctx context.Context, job *models.ImportJob, next models.JobStage, message string) error {
	if !job.Stage.CanTransitionTo(next) {
		err := errors.ConfirmationError(errors.CodeStageConflict, job.ID,
			fmt.Sprintf("cannot move from %s to %s", job.Stage, next))
		s.fail(ctx, job, err)
		return err
	}

	job.Stage = next
	job.Progress = next.Progress()
	job.Message = message
	job.UpdatedAt = time.Now()
	if err := s.store.SaveJob(ctx, job); err != nil {
		s.logger.WithError(err).WithJob(job.ID).Error("Failed to persist job stage")
		return err
	}
	return nil
}

// fail parks the job in the failed stage with the error recorded.
// Terminal jobs are left untouched.
func (s *Service) fail(ctx context.Context, job *models.ImportJob, cause error) {
	if job.Stage.IsTerminal() {
		return
	}

	job.RawTransactions = nil
	job.Stage = models.StageFailed
	job.Error = cause.Error()
	job.Message = "Import failed"
	job.UpdatedAt = time.Now()
	if err := s.store.SaveJob(ctx, job); err != nil {
		s.logger.WithError(err).WithJob(job.ID).Error("Failed to persist failed job")
	}
}
