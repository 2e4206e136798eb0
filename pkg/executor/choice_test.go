package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateChoiceFirstMatchWins(t *testing.T) {
	step := Step{
		ID:   "branch",
		Type: StepChoice,
		Conditions: []Condition{
			{If: "context.score > 100", Next: "high"},
			{If: "context.score > 10", Next: "mid"},
			{Default: "low"},
		},
	}
	ctx := NewContext("job-1", map[string]any{"score": float64(50)}, nil)

	next, err := EvaluateChoice(step, ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "mid", next)
}

func TestEvaluateChoiceFallsBackToDefault(t *testing.T) {
	step := Step{
		ID:   "branch",
		Type: StepChoice,
		Conditions: []Condition{
			{If: "context.score > 100", Next: "high"},
			{Default: "low"},
		},
	}
	ctx := NewContext("job-1", map[string]any{"score": float64(1)}, nil)

	next, err := EvaluateChoice(step, ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "low", next)
}

func TestEvaluateChoiceUnresolvedWithoutDefault(t *testing.T) {
	step := Step{
		ID:   "branch",
		Type: StepChoice,
		Conditions: []Condition{
			{If: "context.score > 100", Next: "high"},
		},
	}
	ctx := NewContext("job-1", map[string]any{"score": float64(1)}, nil)

	_, err := EvaluateChoice(step, ctx, "job-1")
	require.Error(t, err)
	var unresolved *ChoiceUnresolvedError
	assert.ErrorAs(t, err, &unresolved)
}

func TestEvaluateChoiceNoConditionsIsUnresolved(t *testing.T) {
	step := Step{ID: "branch", Type: StepChoice}
	ctx := NewContext("job-1", nil, nil)

	_, err := EvaluateChoice(step, ctx, "job-1")
	require.Error(t, err)
}

func TestEvaluateChoiceSkipsFailingPredicate(t *testing.T) {
	step := Step{
		ID:   "branch",
		Type: StepChoice,
		Conditions: []Condition{
			{If: "context.missing.deeper", Next: "broken"},
			{If: "true", Next: "fallback"},
		},
	}
	ctx := NewContext("job-1", nil, nil)

	next, err := EvaluateChoice(step, ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "fallback", next)
}
