package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowkeep/durableflow/internal/store"
	"github.com/flowkeep/durableflow/internal/testutil"
	"github.com/flowkeep/durableflow/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*httptest.Server, *store.PostgresStore) {
	t.Helper()
	ctx := context.Background()
	_, db, cleanup := testutil.SetupPostgresWithMigrations(ctx, t)
	t.Cleanup(cleanup)

	st := store.New(db)
	invoker := executor.NewHTTPInvoker(5 * time.Second)
	srv := NewServer(st, st, invoker)
	return httptest.NewServer(srv.Router()), st
}

// TestCreateJobRunsToCompletion covers the submit-dispatches-and-runs
// path end to end: POST /jobs must not just insert a SCHEDULED row, it
// must spawn a Flow Executor that carries the job through RUNNING to
// COMPLETED against a real action.
func TestCreateJobRunsToCompletion(t *testing.T) {
	ingress, st := setupServer(t)
	defer ingress.Close()

	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer downstream.Close()

	ctx := context.Background()
	require.NoError(t, st.CreateAction(ctx, &executor.Action{
		Name: "notify",
		Type: "http",
		Config: map[string]any{
			"method":  "POST",
			"url":     downstream.URL,
			"save_as": "r",
		},
	}))

	body, err := json.Marshal(map[string]any{
		"workflow_name": "onboarding",
		"parameters":    map[string]any{},
		"steps": []executor.Step{
			{ID: "s1", Type: executor.StepTask, Action: "notify"},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(ingress.URL+"/jobs/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created jobStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Equal(t, executor.StatusScheduled, created.Status)

	assert.Eventually(t, func() bool {
		job, err := st.GetJob(ctx, created.JobID)
		return err == nil && job != nil && job.Status == executor.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond, "job never reached COMPLETED")

	job, err := st.GetJob(ctx, created.JobID)
	require.NoError(t, err)
	result, ok := job.Context.Output()["r"].(map[string]any)
	require.True(t, ok, "output.r should be the decoded JSON object")
	require.Equal(t, true, result["ok"])
}

// TestCreateJobUnknownActionFails verifies a job referencing a missing
// action is dispatched too, and lands in FAILED rather than sitting in
// SCHEDULED forever.
func TestCreateJobUnknownActionFails(t *testing.T) {
	ingress, st := setupServer(t)
	defer ingress.Close()

	body, err := json.Marshal(map[string]any{
		"workflow_name": "broken",
		"parameters":    map[string]any{},
		"steps": []executor.Step{
			{ID: "s1", Type: executor.StepTask, Action: "does-not-exist"},
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(ingress.URL+"/jobs/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created jobStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	ctx := context.Background()
	assert.Eventually(t, func() bool {
		job, err := st.GetJob(ctx, created.JobID)
		return err == nil && job != nil && job.Status == executor.StatusFailed
	}, 5*time.Second, 20*time.Millisecond, "job never reached FAILED")
}
