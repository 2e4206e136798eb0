package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStringNoInterpolation(t *testing.T) {
	ctx := NewContext("job-1", map[string]any{"name": "ada"}, nil)
	out, err := RenderString("plain text", ctx)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRenderStringInterpolatesContextValue(t *testing.T) {
	ctx := NewContext("job-1", map[string]any{"name": "ada"}, nil)
	out, err := RenderString("hello ${context.name}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello ada", out)
}

func TestRenderStringInterpolatesOutput(t *testing.T) {
	ctx := NewContext("job-1", nil, nil)
	ctx.Output()["previous"] = map[string]any{"id": float64(42)}
	out, err := RenderString("id=${output.previous.id}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "id=42", out)
}

func TestRenderStringUndefinedExpressionErrors(t *testing.T) {
	ctx := NewContext("job-1", nil, nil)
	_, err := RenderString("${context.missing.deeper}", ctx)
	require.Error(t, err)
	var templateErr *TemplateError
	assert.ErrorAs(t, err, &templateErr)
}

func TestEvalPredicateTruthy(t *testing.T) {
	ctx := NewContext("job-1", map[string]any{"count": float64(3)}, nil)
	matched, err := EvalPredicate("context.count > 2", ctx)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = EvalPredicate("context.count > 10", ctx)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvalPredicateInvalidExpressionErrors(t *testing.T) {
	ctx := NewContext("job-1", nil, nil)
	_, err := EvalPredicate("this is not valid js (((", ctx)
	require.Error(t, err)
}
