// Package store provides the Postgres-backed JobStore and ActionStore
// the executor core consumes as external collaborators.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowkeep/durableflow/pkg/executor"
	"github.com/google/uuid"
)

// PostgresStore implements executor.JobStore, executor.ResumerStore,
// executor.ActionStore, and the broader job/action CRUD the ingress
// surface needs, against the jobs and actions tables.
type PostgresStore struct {
	DB *sql.DB
}

// New wraps an already-connected *sql.DB.
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// CreateJob inserts a freshly submitted job in SCHEDULED status.
func (s *PostgresStore) CreateJob(ctx context.Context, job *executor.Job) error {
	stepsJSON, err := json.Marshal(job.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	ctxJSON, err := json.Marshal(job.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, workflow_name, status, context, steps, step_retry_counts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '{}'::jsonb, now(), now())`,
		job.ID, job.WorkflowName, job.Status, ctxJSON, stepsJSON)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob loads a job by id, or (nil, nil) if absent.
func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*executor.Job, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, workflow_name, status, context, steps, current_step_id,
		       step_retry_counts, resume_at, error_message, created_at, updated_at
		FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// ListJobs returns every job row.
func (s *PostgresStore) ListJobs(ctx context.Context) ([]*executor.Job, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, workflow_name, status, context, steps, current_step_id,
		       step_retry_counts, resume_at, error_message, created_at, updated_at
		FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*executor.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job row. Reports whether a row existed.
func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PersistContext is the durability checkpoint: context, current step,
// and retry counts, without touching status.
func (s *PostgresStore) PersistContext(ctx context.Context, id uuid.UUID, jobCtx executor.Context) error {
	ctxJSON, err := json.Marshal(jobCtx)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	retriesJSON, err := json.Marshal(jobCtx.StepRetries())
	if err != nil {
		return fmt.Errorf("marshal step retries: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		UPDATE jobs
		SET context = $2, current_step_id = $3, step_retry_counts = $4, updated_at = now()
		WHERE id = $1`,
		id, ctxJSON, jobCtx.CurrentStepID(), retriesJSON)
	if err != nil {
		return fmt.Errorf("persist context: %w", err)
	}
	return nil
}

// UpdateStatus writes status, context, current step, updated_at, and an
// optional error message, called at START, FAIL, and COMPLETED.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status executor.JobStatus, jobCtx executor.Context, errMessage string) error {
	ctxJSON, err := json.Marshal(jobCtx)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	retriesJSON, err := json.Marshal(jobCtx.StepRetries())
	if err != nil {
		return fmt.Errorf("marshal step retries: %w", err)
	}

	var errArg any
	if errMessage != "" {
		errArg = errMessage
	}

	_, err = s.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, context = $3, current_step_id = $4, step_retry_counts = $5,
		    error_message = $6, updated_at = now()
		WHERE id = $1`,
		id, status, ctxJSON, jobCtx.CurrentStepID(), retriesJSON, errArg)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// Pause atomically persists the WAITING transition.
func (s *PostgresStore) Pause(ctx context.Context, id uuid.UUID, jobCtx executor.Context, resumeAt time.Time) error {
	ctxJSON, err := json.Marshal(jobCtx)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	retriesJSON, err := json.Marshal(jobCtx.StepRetries())
	if err != nil {
		return fmt.Errorf("marshal step retries: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'WAITING', resume_at = $2, context = $3, current_step_id = $4,
		    step_retry_counts = $5, updated_at = now()
		WHERE id = $1`,
		id, resumeAt, ctxJSON, jobCtx.CurrentStepID(), retriesJSON)
	if err != nil {
		return fmt.Errorf("pause job: %w", err)
	}
	return nil
}

// MarkFailed fails a job outright without a FlowExecutor run, used by
// the resumer's defensive max-retries gate.
func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, jobCtx executor.Context, message string) error {
	return s.UpdateStatus(ctx, id, executor.StatusFailed, jobCtx, message)
}

// DueJobs returns WAITING jobs whose resume_at has passed, oldest
// resume_at first.
func (s *PostgresStore) DueJobs(ctx context.Context, now time.Time) ([]*executor.Job, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, workflow_name, status, context, steps, current_step_id,
		       step_retry_counts, resume_at, error_message, created_at, updated_at
		FROM jobs
		WHERE status = 'WAITING' AND resume_at <= $1
		ORDER BY resume_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*executor.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimForResume performs the WAITING->RUNNING compare-and-set that
// guarantees a single runner per job even under overlapping resumer
// ticks.
func (s *PostgresStore) ClaimForResume(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET status = 'RUNNING', updated_at = now()
		WHERE id = $1 AND status = 'WAITING'`, id)
	if err != nil {
		return false, fmt.Errorf("claim job for resume: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetAction resolves a named action, or (nil, nil) if absent.
func (s *PostgresStore) GetAction(ctx context.Context, name string) (*executor.Action, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT name, type, config FROM actions WHERE name = $1`, name)

	var a executor.Action
	var configJSON []byte
	if err := row.Scan(&a.Name, &a.Type, &configJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get action: %w", err)
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &a.Config); err != nil {
			return nil, fmt.Errorf("unmarshal action config: %w", err)
		}
	}
	return &a, nil
}

// CreateAction inserts a new named action, failing if one already
// exists.
func (s *PostgresStore) CreateAction(ctx context.Context, a *executor.Action) error {
	existing, err := s.GetAction(ctx, a.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrActionExists
	}
	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO actions (name, type, config) VALUES ($1, $2, $3)`, a.Name, a.Type, configJSON)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// UpdateAction overwrites an existing action's type/config.
func (s *PostgresStore) UpdateAction(ctx context.Context, name string, a *executor.Action) error {
	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE actions SET type = $2, config = $3 WHERE name = $1`, name, a.Type, configJSON)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrActionNotFound
	}
	return nil
}

// DeleteAction removes a named action. Reports whether a row existed.
func (s *PostgresStore) DeleteAction(ctx context.Context, name string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM actions WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete action: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListActions returns every action row.
func (s *PostgresStore) ListActions(ctx context.Context) ([]*executor.Action, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, type, config FROM actions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []*executor.Action
	for rows.Next() {
		var a executor.Action
		var configJSON []byte
		if err := rows.Scan(&a.Name, &a.Type, &configJSON); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &a.Config); err != nil {
				return nil, fmt.Errorf("unmarshal action config: %w", err)
			}
		}
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

// ErrActionExists is returned by CreateAction on a duplicate name.
var ErrActionExists = fmt.Errorf("action already exists")

// ErrActionNotFound is returned by UpdateAction when the name is unknown.
var ErrActionNotFound = fmt.Errorf("action not found")

// rowScanner abstracts over *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*executor.Job, error) {
	var job executor.Job
	var contextJSON, stepsJSON, retryCountsJSON []byte
	var currentStepID, errorMessage sql.NullString
	var resumeAt sql.NullTime

	if err := row.Scan(
		&job.ID, &job.WorkflowName, &job.Status, &contextJSON, &stepsJSON,
		&currentStepID, &retryCountsJSON, &resumeAt, &errorMessage,
		&job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &job.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &job.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if len(retryCountsJSON) > 0 {
		if err := json.Unmarshal(retryCountsJSON, &job.StepRetryCounts); err != nil {
			return nil, fmt.Errorf("unmarshal step retry counts: %w", err)
		}
	}
	job.CurrentStepID = currentStepID.String
	job.ErrorMessage = errorMessage.String
	if resumeAt.Valid {
		job.ResumeAt = &resumeAt.Time
	}

	return &job, nil
}
