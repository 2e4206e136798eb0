package executor

import (
	"strconv"
	"strings"
	"time"
)

// WaitOutcome is the result of running a wait step.
type WaitOutcome struct {
	// Paused is true when the job should halt and wait for the resumer;
	// false means the step failed the job outright (exceeded retries or
	// invalid duration), with Err set.
	Paused   bool
	ResumeAt time.Time
	Err      error
}

// RunWait implements the durable sleep/retry state machine. Each entry
// into a wait step, including the first, counts as a retry against
// max_retries; the first entry counting toward the ceiling is
// intentional, not an off-by-one.
func RunWait(step Step, ctx Context, now time.Time) WaitOutcome {
	retries := ctx.StepRetries()
	count := ctx.RetryCount(step.ID) + 1
	retries[step.ID] = count

	maxRetries := step.EffectiveMaxRetries()
	if count > maxRetries {
		return WaitOutcome{Err: &MaxRetriesExceededError{StepID: step.ID}}
	}

	durationStr, err := RenderString(step.Duration, ctx)
	if err != nil {
		return WaitOutcome{Err: err}
	}
	if strings.TrimSpace(durationStr) == "" {
		return WaitOutcome{Err: &InvalidDurationError{StepID: step.ID, Reason: "Invalid wait duration"}}
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64)
	if err != nil {
		return WaitOutcome{Err: &InvalidDurationError{StepID: step.ID, Reason: "Wait duration not a number"}}
	}

	resumeAt := now.Add(time.Duration(seconds * float64(time.Second)))
	return WaitOutcome{Paused: true, ResumeAt: resumeAt}
}

// CurrentStep returns the step a job is parked on, per
// context.meta.current_step, the standalone helper the Job Resumer's
// defensive gate uses without needing a full Flow Executor.
func CurrentStep(job *Job) (Step, bool) {
	id := job.Context.CurrentStepID()
	if id == "" {
		return Step{}, false
	}
	return job.StepByID(id)
}

// ExceededMaxRetries reports whether the job's current step is a wait
// step whose retry count has already reached (without needing to
// strictly exceed) its ceiling, a second gate the resumer checks ahead
// of the Wait Controller's own check on the next entry.
func ExceededMaxRetries(job *Job) bool {
	step, ok := CurrentStep(job)
	if !ok || step.Type != StepWait {
		return false
	}
	return job.Context.RetryCount(step.ID) >= step.EffectiveMaxRetries()
}
