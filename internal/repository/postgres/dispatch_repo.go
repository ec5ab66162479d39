package postgres

import (
	"context"
	"errors"
	"fmt"

	"cpaas-console/internal/domain/messaging"
	xerrors "cpaas-console/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

// DispatchRepository keeps the history behind the activity feed.
type DispatchRepository struct {
	db *DB
}

func NewDispatchRepository(db *DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// RecordDispatch stores a job and its per-recipient rows atomically.
func (r *DispatchRepository) RecordDispatch(ctx context.Context, job *messaging.DispatchJob, records []messaging.DispatchRecord) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO dispatch_jobs (
				id, operator_id, channel, message_length, total, succeeded,
				failed_recipients, length_exceeded, started_at, finished_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			job.ID, job.OperatorID, string(job.Channel), job.MessageLength, job.Total, job.Succeeded,
			job.FailedRecipients, job.LengthExceeded, job.StartedAt, job.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert dispatch job: %w", err)
		}

		if len(records) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(`
				INSERT INTO dispatch_results (job_id, position, recipient, success, detail)
				VALUES ($1, $2, $3, $4, $5)
			`, rec.JobID, rec.Position, rec.Recipient, rec.Success, rec.Detail)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert dispatch result %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to finish dispatch results batch: %w", err)
		}
		return nil
	})
}

// ListRecent returns the operator's latest jobs, newest first.
func (r *DispatchRepository) ListRecent(ctx context.Context, operatorID string, limit int) ([]*messaging.DispatchJob, error) {
	query := `
		SELECT id, operator_id, channel, message_length, total, succeeded,
		       failed_recipients, length_exceeded, started_at, finished_at
		FROM dispatch_jobs
		WHERE operator_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, operatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatch jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*messaging.DispatchJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dispatch jobs: %w", err)
	}
	return jobs, nil
}

// GetJob returns one job with its per-recipient rows.
func (r *DispatchRepository) GetJob(ctx context.Context, operatorID, jobID string) (*messaging.DispatchJob, []messaging.DispatchRecord, error) {
	row := r.db.Pool().QueryRow(ctx, `
		SELECT id, operator_id, channel, message_length, total, succeeded,
		       failed_recipients, length_exceeded, started_at, finished_at
		FROM dispatch_jobs
		WHERE id = $1 AND operator_id = $2
	`, jobID, operatorID)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("dispatch job %s: %w", jobID, xerrors.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT job_id, position, recipient, success, detail
		FROM dispatch_results
		WHERE job_id = $1
		ORDER BY position
	`, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dispatch results: %w", err)
	}
	defer rows.Close()

	records := []messaging.DispatchRecord{}
	for rows.Next() {
		var rec messaging.DispatchRecord
		if err := rows.Scan(&rec.JobID, &rec.Position, &rec.Recipient, &rec.Success, &rec.Detail); err != nil {
			return nil, nil, fmt.Errorf("failed to scan dispatch result: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate dispatch results: %w", err)
	}
	return job, records, nil
}

func scanJob(row pgx.Row) (*messaging.DispatchJob, error) {
	var (
		job     messaging.DispatchJob
		channel string
	)
	err := row.Scan(
		&job.ID, &job.OperatorID, &channel, &job.MessageLength, &job.Total, &job.Succeeded,
		&job.FailedRecipients, &job.LengthExceeded, &job.StartedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dispatch job: %w", err)
	}
	job.Channel = messaging.Channel(channel)
	return &job, nil
}
