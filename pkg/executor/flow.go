package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// JobStore is the persistent store the Flow Executor and Job Resumer
// read and write. Implementations must treat each mutation sequence as
// a single transaction and persist Context whole, never field-merged.
type JobStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	// PersistContext writes context/current-step/retry-counts without
	// changing status, the durability checkpoint after task/choice steps.
	PersistContext(ctx context.Context, id uuid.UUID, jobCtx Context) error
	// UpdateStatus writes status, context, current step, updated_at, and
	// an optional error message. Called at START, FAIL, and COMPLETED.
	UpdateStatus(ctx context.Context, id uuid.UUID, status JobStatus, jobCtx Context, errMessage string) error
	// Pause atomically persists the WAITING transition: status,
	// resume_at, current_step_id, context, and updated_at.
	Pause(ctx context.Context, id uuid.UUID, jobCtx Context, resumeAt time.Time) error
}

// FlowExecutor is the per-job driver that sequences steps, dispatches by
// step type, persists context after each step, and reports terminal
// status.
type FlowExecutor struct {
	JobID   uuid.UUID
	Steps   []Step
	Context Context

	Store   JobStore
	Actions ActionStore
	Invoker *HTTPInvoker
}

// NewFlowExecutor constructs an executor, recovering any prior
// step_retries from the persisted Job row (deep-copied into the fresh
// context) so a resumed run continues the retry ledger rather than
// resetting it, and the persisted current step so a resumed run
// re-enters the step it was parked on.
func NewFlowExecutor(ctx context.Context, store JobStore, actions ActionStore, invoker *HTTPInvoker, jobID uuid.UUID, steps []Step, parameters map[string]any) (*FlowExecutor, error) {
	var stepRetries map[string]int
	var currentStep string
	if job, err := store.GetJob(ctx, jobID); err == nil && job != nil {
		stepRetries = make(map[string]int, len(job.StepRetryCounts))
		for k, v := range job.StepRetryCounts {
			stepRetries[k] = v
		}
		currentStep = job.CurrentStepID
	}

	jobCtx := NewContext(jobID.String(), parameters, stepRetries)
	if currentStep != "" {
		jobCtx.Meta()["current_step"] = currentStep
	}

	return &FlowExecutor{
		JobID:   jobID,
		Steps:   steps,
		Context: jobCtx,
		Store:   store,
		Actions: actions,
		Invoker: invoker,
	}, nil
}

// Run transitions the job to RUNNING, executes steps until completion,
// failure, or a wait-induced pause, and on any uncaught failure
// transitions the job to FAILED with the error message.
func (f *FlowExecutor) Run(ctx context.Context) error {
	log.Printf("[Job %s] Starting job execution", f.JobID)
	if err := f.updateJobStatus(ctx, StatusRunning, ""); err != nil {
		return err
	}

	outcome, err := f.executeSteps(ctx)
	if err != nil {
		log.Printf("[Job %s] Job failed: %v", f.JobID, err)
		if statusErr := f.updateJobStatus(ctx, StatusFailed, err.Error()); statusErr != nil {
			return statusErr
		}
		return err
	}
	log.Printf("[Job %s] execution finished with outcome %q", f.JobID, outcome)
	return nil
}

// executeSteps walks the step list from the persisted current_step (or
// index 0 for a fresh job), dispatching by type and following choice
// jumps, until it pauses, fails, or runs off the end.
func (f *FlowExecutor) executeSteps(ctx context.Context) (string, error) {
	indexMap := make(map[string]int, len(f.Steps))
	for i, s := range f.Steps {
		indexMap[s.ID] = i
	}

	i := 0
	if last := f.Context.CurrentStepID(); last != "" {
		if idx, ok := indexMap[last]; ok {
			i = idx
		}
	}

	for i < len(f.Steps) {
		step := f.Steps[i]
		result, paused, err := f.runStep(ctx, step)
		if err != nil {
			return "", err
		}
		if paused {
			return "paused", nil
		}

		if step.Type == StepChoice {
			nextIdx, ok := indexMap[result]
			if !ok {
				err := &InvalidNextStepError{NextID: result}
				return "", err
			}
			i = nextIdx
			continue
		}
		i++
	}

	return "completed", f.updateJobStatus(ctx, StatusCompleted, "")
}

// runStep records current_step/current_time, then dispatches by step
// type. The bool return reports whether the job paused.
func (f *FlowExecutor) runStep(ctx context.Context, step Step) (result string, paused bool, err error) {
	log.Printf("[Job %s] Running step '%s' of type '%s'", f.JobID, step.ID, step.Type)

	meta := f.Context.Meta()
	meta["current_step"] = step.ID
	meta["current_time"] = time.Now().UTC().Format(time.RFC3339)

	switch step.Type {
	case StepTask:
		action, loadErr := LoadAction(ctx, f.Actions, step.Action)
		if loadErr != nil {
			return "", false, loadErr
		}
		if action.Type != "http" {
			return "", false, &UnsupportedActionTypeError{Type: action.Type}
		}
		cfg, cfgErr := decodeHTTPConfig(action.Config)
		if cfgErr != nil {
			return "", false, cfgErr
		}
		marker, invokeErr := f.Invoker.Invoke(cfg, f.Context)
		if invokeErr != nil {
			return "", false, invokeErr
		}
		if err := f.persistContext(ctx); err != nil {
			return "", false, err
		}
		return marker, false, nil

	case StepWait:
		outcome := RunWait(step, f.Context, time.Now().UTC())
		if outcome.Err != nil {
			if failErr := f.updateJobStatus(ctx, StatusFailed, outcome.Err.Error()); failErr != nil {
				return "", false, failErr
			}
			return "", false, outcome.Err
		}
		if pauseErr := f.Store.Pause(ctx, f.JobID, f.Context, outcome.ResumeAt); pauseErr != nil {
			return "", false, pauseErr
		}
		log.Printf("[Job %s] Paused. Will resume at %s", f.JobID, outcome.ResumeAt.Format(time.RFC3339))
		return "job_paused", true, nil

	case StepChoice:
		next, choiceErr := EvaluateChoice(step, f.Context, f.JobID.String())
		if choiceErr != nil {
			return "", false, choiceErr
		}
		if err := f.persistContext(ctx); err != nil {
			return "", false, err
		}
		return next, false, nil

	default:
		return "", false, &UnsupportedStepTypeError{Type: step.Type}
	}
}

// persistContext writes the current context back to the Job row, the
// durability checkpoint after task and choice steps.
func (f *FlowExecutor) persistContext(ctx context.Context) error {
	if err := f.Store.PersistContext(ctx, f.JobID, f.Context); err != nil {
		return fmt.Errorf("persist context: %w", err)
	}
	log.Printf("[Job %s] Context persisted after step '%s'", f.JobID, f.Context.CurrentStepID())
	return nil
}

func (f *FlowExecutor) updateJobStatus(ctx context.Context, status JobStatus, errMessage string) error {
	if err := f.Store.UpdateStatus(ctx, f.JobID, status, f.Context, errMessage); err != nil {
		return fmt.Errorf("update job status to %s: %w", status, err)
	}
	log.Printf("[Job %s] Status updated to %s", f.JobID, status)
	return nil
}

func decodeHTTPConfig(config map[string]any) (HTTPActionConfig, error) {
	cfg := HTTPActionConfig{}
	if m, ok := config["method"].(string); ok {
		cfg.Method = m
	}
	if u, ok := config["url"].(string); ok {
		cfg.URL = u
	}
	if cfg.Method == "" || cfg.URL == "" {
		return cfg, fmt.Errorf("http action config missing method or url")
	}
	if headers, ok := config["headers"].(map[string]any); ok {
		cfg.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			if s, ok := v.(string); ok {
				cfg.Headers[k] = s
			}
		}
	}
	if body, ok := config["body"].(map[string]any); ok {
		cfg.Body = make(map[string]string, len(body))
		for k, v := range body {
			if s, ok := v.(string); ok {
				cfg.Body[k] = s
			}
		}
	}
	if saveAs, ok := config["save_as"].(string); ok {
		cfg.SaveAs = saveAs
	}
	return cfg, nil
}
