package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWaitPausesForLiteralDuration(t *testing.T) {
	step := Step{ID: "sleep", Type: StepWait, Duration: "30"}
	ctx := NewContext("job-1", nil, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	outcome := RunWait(step, ctx, now)
	require.NoError(t, outcome.Err)
	assert.True(t, outcome.Paused)
	assert.Equal(t, now.Add(30*time.Second), outcome.ResumeAt)
	assert.Equal(t, 1, ctx.RetryCount("sleep"))
}

func TestRunWaitPausesForTemplatedDuration(t *testing.T) {
	step := Step{ID: "sleep", Type: StepWait, Duration: "${context.seconds}"}
	ctx := NewContext("job-1", map[string]any{"seconds": float64(5)}, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	outcome := RunWait(step, ctx, now)
	require.NoError(t, outcome.Err)
	assert.Equal(t, now.Add(5*time.Second), outcome.ResumeAt)
}

func TestRunWaitFailsOnEmptyDuration(t *testing.T) {
	step := Step{ID: "sleep", Type: StepWait, Duration: "${context.missing_value}"}
	ctx := NewContext("job-1", nil, nil)

	outcome := RunWait(step, ctx, time.Now().UTC())
	require.Error(t, outcome.Err)
	var invalid *InvalidDurationError
	assert.ErrorAs(t, outcome.Err, &invalid)
}

func TestRunWaitFailsOnNonNumericDuration(t *testing.T) {
	step := Step{ID: "sleep", Type: StepWait, Duration: "soon"}
	ctx := NewContext("job-1", nil, nil)

	outcome := RunWait(step, ctx, time.Now().UTC())
	require.Error(t, outcome.Err)
	var invalid *InvalidDurationError
	assert.ErrorAs(t, outcome.Err, &invalid)
}

func TestRunWaitExceedsMaxRetries(t *testing.T) {
	max := 2
	step := Step{ID: "sleep", Type: StepWait, Duration: "1", MaxRetries: &max}
	ctx := NewContext("job-1", nil, nil)
	now := time.Now().UTC()

	outcome := RunWait(step, ctx, now)
	require.NoError(t, outcome.Err)
	outcome = RunWait(step, ctx, now)
	require.NoError(t, outcome.Err)
	outcome = RunWait(step, ctx, now)
	require.Error(t, outcome.Err)
	var exceeded *MaxRetriesExceededError
	assert.ErrorAs(t, outcome.Err, &exceeded)
}

func TestExceededMaxRetriesGate(t *testing.T) {
	max := 1
	step := Step{ID: "sleep", Type: StepWait, Duration: "1", MaxRetries: &max}
	ctx := NewContext("job-1", nil, map[string]int{"sleep": 1})
	meta := ctx.Meta()
	meta["current_step"] = "sleep"

	job := &Job{Steps: []Step{step}, Context: ctx}
	assert.True(t, ExceededMaxRetries(job))
}
