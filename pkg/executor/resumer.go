package executor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ResumerStore is the subset of JobStore the Job Resumer needs beyond
// the shared JobStore interface: finding due jobs and claiming one for
// exclusive resumption.
type ResumerStore interface {
	JobStore
	// DueJobs returns jobs with status WAITING and resume_at <= now, in
	// selection order.
	DueJobs(ctx context.Context, now time.Time) ([]*Job, error)
	// ClaimForResume performs the WAITING->RUNNING compare-and-set that
	// guarantees a single runner per job even if the resumer's cron
	// entry fires twice concurrently. It reports whether this call won
	// the claim.
	ClaimForResume(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkFailed fails a job outright without going through a
	// FlowExecutor, used by the resumer's defensive max-retries gate.
	MarkFailed(ctx context.Context, id uuid.UUID, jobCtx Context, message string) error
}

// Resumer is the background poller that wakes paused jobs. It runs on
// a cron schedule rather than a bare ticker.
type Resumer struct {
	Store   ResumerStore
	Actions ActionStore
	Invoker *HTTPInvoker

	cronSpec  string
	scheduler *cron.Cron
	mu        sync.Mutex
	running   bool
}

// NewResumer builds a resumer polling on the given cron spec (e.g.
// "@every 2s"); the operator picks the cadence, which should stay at
// or above one second to avoid hammering the store.
func NewResumer(store ResumerStore, actions ActionStore, invoker *HTTPInvoker, cronSpec string) *Resumer {
	if cronSpec == "" {
		cronSpec = "@every 2s"
	}
	return &Resumer{
		Store:     store,
		Actions:   actions,
		Invoker:   invoker,
		cronSpec:  cronSpec,
		scheduler: cron.New(),
	}
}

// Start begins the polling schedule and blocks until ctx is cancelled,
// at which point the scheduler is stopped gracefully.
func (r *Resumer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	if _, err := r.scheduler.AddFunc(r.cronSpec, func() {
		r.resumeDueJobs(ctx)
	}); err != nil {
		return err
	}

	r.scheduler.Start()
	<-ctx.Done()

	stopCtx := r.scheduler.Stop()
	<-stopCtx.Done()

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// ResumeDueJobsOnce runs a single poll tick synchronously, without
// starting the cron scheduler, used by the resume-once CLI command.
func (r *Resumer) ResumeDueJobsOnce(ctx context.Context) {
	r.resumeDueJobs(ctx)
}

// resumeDueJobs is one poll tick: find due jobs, apply the defensive
// retry gate, claim the rest, and re-enter the Flow Executor for each.
func (r *Resumer) resumeDueJobs(ctx context.Context) {
	now := time.Now().UTC()
	due, err := r.Store.DueJobs(ctx, now)
	if err != nil {
		log.Printf("resumer: failed to list due jobs: %v", err)
		return
	}

	for _, job := range due {
		log.Printf("[Job %s] Attempting to resume job...", job.ID)

		if ExceededMaxRetries(job) {
			step, _ := CurrentStep(job)
			message := (&MaxRetriesExceededError{StepID: step.ID}).Error()
			if err := r.Store.MarkFailed(ctx, job.ID, job.Context, message); err != nil {
				log.Printf("[Job %s] failed to mark max-retries failure: %v", job.ID, err)
			} else {
				log.Printf("[Job %s] Failed, max retries exceeded.", job.ID)
			}
			continue
		}

		claimed, err := r.Store.ClaimForResume(ctx, job.ID)
		if err != nil {
			log.Printf("[Job %s] failed to claim for resume: %v", job.ID, err)
			continue
		}
		if !claimed {
			// Another resumer tick already won this job; skip.
			continue
		}

		log.Printf("[Job %s] Resuming...", job.ID)

		flow, err := NewFlowExecutor(ctx, r.Store, r.Actions, r.Invoker, job.ID, job.Steps, job.Context.Parameters())
		if err != nil {
			log.Printf("[Job %s] failed to build flow executor: %v", job.ID, err)
			continue
		}
		if err := flow.Run(ctx); err != nil {
			log.Printf("[Job %s] resumed run ended with error: %v", job.ID, err)
		}
	}
}
