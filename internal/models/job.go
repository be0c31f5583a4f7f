package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// JobStage is the current stage of an import job's state machine.
type JobStage string

const (
	StageUploaded             JobStage = "uploaded"
	StageParsing              JobStage = "parsing"
	StageMatching             JobStage = "matching"
	StageAwaitingConfirmation JobStage = "awaiting_confirmation"
	StageImporting            JobStage = "importing"
	StageCategorizing         JobStage = "categorizing"
	StageCompleted            JobStage = "completed"
	StageFailed               JobStage = "failed"
)

// String returns the string representation of JobStage.
func (s JobStage) String() string {
	return string(s)
}

// IsValid checks if the stage is one of the known values.
func (s JobStage) IsValid() bool {
	switch s {
	case StageUploaded, StageParsing, StageMatching, StageAwaitingConfirmation,
		StageImporting, StageCategorizing, StageCompleted, StageFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the stage ends the job's lifecycle.
func (s JobStage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanTransitionTo reports whether the state machine allows moving from
// this stage to the next one. Failed is reachable from any non-terminal
// stage; all other transitions follow the fixed pipeline order.
func (s JobStage) CanTransitionTo(next JobStage) bool {
	if next == StageFailed {
		return !s.IsTerminal()
	}

	switch s {
	case StageUploaded:
		return next == StageParsing
	case StageParsing:
		return next == StageMatching
	case StageMatching:
		return next == StageAwaitingConfirmation
	case StageAwaitingConfirmation:
		return next == StageImporting
	case StageImporting:
		return next == StageCategorizing
	case StageCategorizing:
		return next == StageCompleted
	default:
		return false
	}
}

// Progress returns the observability checkpoint for the stage, 0-100.
// Checkpoints are monotonically non-decreasing along the pipeline.
func (s JobStage) Progress() int {
	switch s {
	case StageUploaded:
		return 5
	case StageParsing:
		return 20
	case StageMatching:
		return 40
	case StageAwaitingConfirmation:
		return 40
	case StageImporting:
		return 70
	case StageCategorizing:
		return 90
	case StageCompleted:
		return 100
	default:
		return 0
	}
}

// ImportJob tracks one statement upload through the ingestion pipeline.
// Mutated only by the orchestrator; retained for audit after completion.
// RawTransactions carries the parsed statement across the
// awaiting_confirmation suspension so any worker can resume the job;
// it is cleared once the job reaches a terminal stage.
type ImportJob struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	Stage           JobStage           `json:"stage"`
	Progress        int                `json:"progress"`
	Message         string             `json:"message,omitempty"`
	Error           string             `json:"error,omitempty"`
	FileName        string             `json:"file_name"`
	FileSize        int64              `json:"file_size"`
	Metadata        *StatementMetadata `json:"statement_metadata,omitempty"`
	AccountMatch    *AccountMatch      `json:"account_match,omitempty"`
	RawTransactions []RawTransaction   `json:"raw_transactions,omitempty"`
	AccountID       string             `json:"account_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Validate performs basic validation on the ImportJob.
func (j *ImportJob) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("job ID cannot be empty")
	}

	if strings.TrimSpace(j.UserID) == "" {
		return fmt.Errorf("job owner cannot be empty")
	}

	if !j.Stage.IsValid() {
		return fmt.Errorf("invalid job stage: %s", j.Stage)
	}

	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("job progress must be within [0,100], got %d", j.Progress)
	}

	return nil
}

// String returns a string representation of the ImportJob.
func (j *ImportJob) String() string {
	return fmt.Sprintf("ImportJob{ID: %s, Stage: %s, Progress: %d, File: %s}",
		j.ID, j.Stage, j.Progress, j.FileName)
}

// RecurringGroup is a cluster of recurring transactions on one account,
// identified by a shared merchant/amount signature and a regular period.
type RecurringGroup struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	AccountID      string          `json:"account_id"`
	Merchant       string          `json:"merchant"`
	Amount         decimal.Decimal `json:"amount"`
	Period         string          `json:"period"`
	TransactionIDs []string        `json:"transaction_ids"`
	CreatedAt      time.Time       `json:"created_at"`
}

// String returns a string representation of the RecurringGroup.
func (g *RecurringGroup) String() string {
	return fmt.Sprintf("RecurringGroup{ID: %s, Merchant: %s, Amount: %s, Period: %s, Members: %d}",
		g.ID, g.Merchant, g.Amount, g.Period, len(g.TransactionIDs))
}
