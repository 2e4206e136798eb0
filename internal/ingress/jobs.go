// Package ingress is the thin HTTP CRUD facade in front of the job
// executor core: it decodes requests, calls the store, and encodes
// responses, but never interprets step semantics itself.
package ingress

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/flowkeep/durableflow/internal/store"
	"github.com/flowkeep/durableflow/pkg/executor"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Server holds the collaborators the HTTP handlers depend on.
type Server struct {
	Store   *store.PostgresStore
	Actions executor.ActionStore
	Invoker *executor.HTTPInvoker
}

// NewServer builds a Server over the given store, action resolver, and
// HTTP invoker; a submitted job is dispatched to a Flow Executor built
// from these three collaborators.
func NewServer(s *store.PostgresStore, actions executor.ActionStore, invoker *executor.HTTPInvoker) *Server {
	return &Server{Store: s, Actions: actions, Invoker: invoker}
}

// Router wires the job and action surfaces.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.createJob)
		r.Get("/", s.listJobs)
		r.Get("/{id}", s.getJob)
		r.Get("/{id}/steps", s.getJobSteps)
		r.Delete("/{id}", s.deleteJob)
		r.Post("/{id}/pause", s.pauseJob)
	})

	r.Route("/actions", func(r chi.Router) {
		r.Post("/", s.createAction)
		r.Get("/", s.listActions)
		r.Get("/{name}", s.getAction)
		r.Put("/{name}", s.updateAction)
		r.Delete("/{name}", s.deleteAction)
	})

	return r
}

type createJobRequest struct {
	WorkflowName string                 `json:"workflow_name"`
	Parameters   map[string]interface{} `json:"parameters"`
	Steps        []executor.Step        `json:"steps"`
}

type jobStatusResponse struct {
	JobID   uuid.UUID          `json:"job_id"`
	Status  executor.JobStatus `json:"status"`
	Context executor.Context   `json:"context"`
}

// createJob handles `POST /jobs`: it materializes the submitted steps
// and parameters into a fresh SCHEDULED row, then spawns a Flow
// Executor to run it. The response reflects the SCHEDULED row; the job
// advances to RUNNING and beyond in the background goroutine, so a
// caller that wants the final state polls GET /jobs/{id}.
func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id := uuid.New()
	job := &executor.Job{
		ID:           id,
		WorkflowName: req.WorkflowName,
		Status:       executor.StatusScheduled,
		Steps:        req.Steps,
		Context:      executor.NewContext(id.String(), req.Parameters, nil),
	}

	if err := s.Store.CreateJob(r.Context(), job); err != nil {
		http.Error(w, "failed to create job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.spawn(job.ID, job.Steps, req.Parameters)

	writeJSON(w, http.StatusCreated, jobStatusResponse{JobID: job.ID, Status: job.Status, Context: job.Context})
}

// spawn builds a Flow Executor for the newly created job and runs it in
// its own goroutine, detached from the request context, so the job
// keeps running past the response write.
func (s *Server) spawn(jobID uuid.UUID, steps []executor.Step, parameters map[string]interface{}) {
	go func() {
		ctx := context.Background()
		flow, err := executor.NewFlowExecutor(ctx, s.Store, s.Actions, s.Invoker, jobID, steps, parameters)
		if err != nil {
			log.Printf("[Job %s] failed to build flow executor: %v", jobID, err)
			return
		}
		if err := flow.Run(ctx); err != nil {
			log.Printf("[Job %s] run ended with error: %v", jobID, err)
		}
	}()
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := s.Store.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, jobStatusResponse{JobID: job.ID, Status: job.Status, Context: job.Context})
}

// getJobSteps handles `GET /jobs/{id}/steps`.
func (s *Server) getJobSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := s.Store.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, job.Steps)
}

// listJobs handles `GET /jobs`.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Store.ListJobs(r.Context())
	if err != nil {
		http.Error(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]jobStatusResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobStatusResponse{JobID: job.ID, Status: job.Status, Context: job.Context})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	existed, err := s.Store.DeleteJob(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to delete job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !existed {
		http.NotFound(w, r)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pauseJob handles `POST /jobs/{id}/pause`: accepted but unimplemented.
// A job only ever enters WAITING through its own wait step.
func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := parseJobID(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "manual pause is not supported; jobs pause only via a wait step",
	})
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return uuid.UUID{}, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
