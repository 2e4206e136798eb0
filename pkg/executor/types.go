// Package executor implements the durable workflow executor: the
// step-typed interpreter that walks a job's step list while maintaining
// a persistent context, plus the Job Resumer that wakes paused jobs.
package executor

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	StatusScheduled JobStatus = "SCHEDULED"
	StatusRunning   JobStatus = "RUNNING"
	StatusWaiting   JobStatus = "WAITING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
)

// IsTerminal reports whether no outbound transition exists from status.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepType discriminates the three step kinds a workflow may contain.
type StepType string

const (
	StepTask   StepType = "task"
	StepWait   StepType = "wait"
	StepChoice StepType = "choice"
)

// DefaultMaxRetries is used for a wait step that omits max_retries.
const DefaultMaxRetries = 5

// Condition is one entry of a choice step's ordered condition list. It is
// either an {if, next} guard or a {default} fallback; exactly one of If or
// Default is populated.
type Condition struct {
	If      string `json:"if,omitempty"`
	Next    string `json:"next,omitempty"`
	Default string `json:"default,omitempty"`
}

// IsDefault reports whether this condition is the unconditional fallback.
func (c Condition) IsDefault() bool {
	return c.If == "" && c.Default != ""
}

// Step is one node in a job's plan. Only the fields relevant to its Type
// are meaningful; unused fields are left zero-valued.
type Step struct {
	ID   string   `json:"id"`
	Type StepType `json:"type"`

	// task
	Action string `json:"action,omitempty"`

	// wait
	Duration   string `json:"duration,omitempty"`
	MaxRetries *int   `json:"max_retries,omitempty"`

	// choice
	Conditions []Condition `json:"conditions,omitempty"`
}

// EffectiveMaxRetries returns the step's configured ceiling, defaulting
// to DefaultMaxRetries when unset.
func (s Step) EffectiveMaxRetries() int {
	if s.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *s.MaxRetries
}

// Action is a named, reusable side-effect definition.
type Action struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// HTTPActionConfig is the config shape for Action.Type == "http".
type HTTPActionConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    map[string]string `json:"body,omitempty"`
	SaveAs  string            `json:"save_as,omitempty"`
}

// Meta is the engine-managed sub-mapping of a job's context.
type Meta struct {
	JobID       string         `json:"job_id"`
	StartTime   string         `json:"start_time"`
	CurrentStep string         `json:"current_step,omitempty"`
	CurrentTime string         `json:"current_time,omitempty"`
	StepRetries map[string]int `json:"step_retries"`
}

// Context is the live, persisted key-value store threaded through a
// job's execution. It is kept as a plain map so it can be handed to the
// goja VM (Template Renderer) without translation, and round-trips
// through JSON storage without loss of shape.
type Context map[string]any

// NewContext builds the initial context for a freshly submitted job.
func NewContext(jobID string, parameters map[string]any, stepRetries map[string]int) Context {
	if parameters == nil {
		parameters = map[string]any{}
	}
	if stepRetries == nil {
		stepRetries = map[string]int{}
	}
	return Context{
		"context": parameters,
		"meta": map[string]any{
			"job_id":       jobID,
			"start_time":   time.Now().UTC().Format(time.RFC3339),
			"step_retries": toAnyMap(stepRetries),
		},
	}
}

func toAnyMap(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Meta returns the engine-managed sub-map, creating it if absent.
func (c Context) Meta() map[string]any {
	m, ok := c["meta"].(map[string]any)
	if !ok {
		m = map[string]any{}
		c["meta"] = m
	}
	return m
}

// StepRetries returns the meta.step_retries sub-map, creating it if absent.
func (c Context) StepRetries() map[string]any {
	meta := c.Meta()
	retries, ok := meta["step_retries"].(map[string]any)
	if !ok {
		retries = map[string]any{}
		meta["step_retries"] = retries
	}
	return retries
}

// RetryCount reads the retry counter for stepID, coercing whatever
// numeric JSON type round-tripped through storage.
func (c Context) RetryCount(stepID string) int {
	v, ok := c.StepRetries()[stepID]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Output returns the context's output sub-map, creating it on first use.
func (c Context) Output() map[string]any {
	out, ok := c["output"].(map[string]any)
	if !ok {
		out = map[string]any{}
		c["output"] = out
	}
	return out
}

// Parameters returns the user-submitted parameter bag.
func (c Context) Parameters() map[string]any {
	p, ok := c["context"].(map[string]any)
	if !ok {
		p = map[string]any{}
		c["context"] = p
	}
	return p
}

// CurrentStepID returns context.meta.current_step, or "" if unset.
func (c Context) CurrentStepID() string {
	id, _ := c.Meta()["current_step"].(string)
	return id
}

// Job is the persistent unit of execution.
type Job struct {
	ID              uuid.UUID      `json:"id"`
	WorkflowName    string         `json:"workflow_name"`
	Status          JobStatus      `json:"status"`
	Steps           []Step         `json:"steps"`
	Context         Context        `json:"context"`
	CurrentStepID   string         `json:"current_step_id,omitempty"`
	StepRetryCounts map[string]int `json:"step_retry_counts,omitempty"`
	ResumeAt        *time.Time     `json:"resume_at,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// StepByID finds a step by its id, mirroring the executor's index_map.
func (j *Job) StepByID(id string) (Step, bool) {
	for _, s := range j.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}
