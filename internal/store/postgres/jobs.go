package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
	pkgerrors "github.com/pkg/errors"
)

// SaveJob inserts or replaces the job record in one statement, so
// concurrent Status reads never observe a partial stage transition.
func (s *Store) SaveJob(ctx context.Context, job *models.ImportJob) error {
	metadata, err := marshalNullable(job.Metadata)
	if err != nil {
		return errors.InternalError("encode job metadata", err)
	}
	match, err := marshalNullable(job.AccountMatch)
	if err != nil {
		return errors.InternalError("encode job account match", err)
	}
	raw, err := marshalRawTransactions(job.RawTransactions)
	if err != nil {
		return errors.InternalError("encode job raw transactions", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO import_jobs (id, user_id, stage, progress, message, error, file_name, file_size, metadata, account_match, raw_transactions, account_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			progress = EXCLUDED.progress,
			message = EXCLUDED.message,
			error = EXCLUDED.error,
			metadata = EXCLUDED.metadata,
			account_match = EXCLUDED.account_match,
			raw_transactions = EXCLUDED.raw_transactions,
			account_id = EXCLUDED.account_id,
			updated_at = NOW()`,
		job.ID, job.UserID, job.Stage.String(), job.Progress, job.Message, job.Error,
		job.FileName, job.FileSize, metadata, match, raw, job.AccountID,
	)
	if err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "save job", err)
	}
	return nil
}

// ClaimJobStage advances the stage with a conditional update, so
// exactly one of several concurrent claimants wins.
func (s *Store) ClaimJobStage(ctx context.Context, jobID string, from, to models.JobStage, message string) (*models.ImportJob, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE import_jobs
		SET stage = $3, progress = $4, message = $5, updated_at = NOW()
		WHERE id = $1 AND stage = $2
		RETURNING id, user_id, stage, progress, message, error, file_name, file_size, metadata, account_match, raw_transactions, account_id, created_at, updated_at`,
		jobID, from.String(), to.String(), to.Progress(), message,
	)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !pkgerrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "claim job stage", err)
	}

	// No row matched: either the job is gone or another claimant won.
	current, getErr := s.GetJob(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, errors.ConfirmationError(errors.CodeStageConflict, jobID,
		"job is "+current.Stage.String()+", not "+from.String())
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.ImportJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, stage, progress, message, error, file_name, file_size, metadata, account_match, raw_transactions, account_id, created_at, updated_at
		FROM import_jobs WHERE id = $1`,
		jobID,
	)
	job, err := scanJob(row)
	if err != nil {
		if pkgerrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ConfirmationError(errors.CodeJobNotFound, jobID, "no such import job")
		}
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "get job", err)
	}
	return job, nil
}

// ListJobs returns the user's jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, userID string) ([]*models.ImportJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, stage, progress, message, error, file_name, file_size, metadata, account_match, raw_transactions, account_id, created_at, updated_at
		FROM import_jobs WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list jobs", err)
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.PersistenceError(errors.CodeQueryFailed, "scan job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceError(errors.CodeQueryFailed, "list jobs", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*models.ImportJob, error) {
	job := &models.ImportJob{}
	var stage string
	var metadata, match, raw []byte
	err := row.Scan(
		&job.ID, &job.UserID, &stage, &job.Progress, &job.Message, &job.Error,
		&job.FileName, &job.FileSize, &metadata, &match, &raw, &job.AccountID,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Stage = models.JobStage(stage)

	if len(metadata) > 0 {
		job.Metadata = &models.StatementMetadata{}
		if err := json.Unmarshal(metadata, job.Metadata); err != nil {
			return nil, err
		}
	}
	if len(match) > 0 {
		job.AccountMatch = &models.AccountMatch{}
		if err := json.Unmarshal(match, job.AccountMatch); err != nil {
			return nil, err
		}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &job.RawTransactions); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func marshalRawTransactions(raw []models.RawTransaction) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return json.Marshal(raw)
}

func marshalNullable(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case *models.StatementMetadata:
		if val == nil {
			return nil, nil
		}
	case *models.AccountMatch:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
