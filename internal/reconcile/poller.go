package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/adbroker/internal/adserver"
	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/workflow"
)

// ErrAlreadyRunning is returned when a job for the resource is already polling.
var ErrAlreadyRunning = errors.New("reconcile: job already running for resource") //nolint:gochecknoglobals // sentinel error

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one bounded retry loop against the ad server.
type Job struct {
	ID          uuid.UUID
	ResourceID  string
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
	StepID      uuid.UUID
	Status      JobStatus
	Attempts    int
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StepUpdater persists poller progress and outcomes on the tracking step.
type StepUpdater interface {
	UpdateStep(ctx context.Context, tenantID, stepID uuid.UUID, in workflow.UpdateStepInput) (*domain.WorkflowStep, error)
}

// StartInput configures one reconciliation job.
type StartInput struct {
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
	ResourceID  string
	StepID      uuid.UUID
	Adapter     adserver.Adapter

	PollInterval time.Duration
	MaxDuration  time.Duration

	// OnResult, when set, runs after the job reaches a terminal state.
	// A nil error means the resource became ready.
	OnResult func(ctx context.Context, err error)
}

// Poller runs one goroutine per in-flight external operation and keeps
// at most one running job per resource id. The registry is the only
// shared state and is held only across insert/remove/snapshot.
type Poller struct {
	steps StepUpdater

	defaultInterval time.Duration
	defaultMax      time.Duration

	mu      sync.Mutex
	running map[string]*Job
}

func New(steps StepUpdater) *Poller {
	return &Poller{
		steps:           steps,
		defaultInterval: 10 * time.Second,
		defaultMax:      2 * time.Minute,
		running:         make(map[string]*Job),
	}
}

// SetDefaults overrides the interval and budget used when StartInput
// leaves them zero.
func (p *Poller) SetDefaults(interval, maxDuration time.Duration) {
	if interval > 0 {
		p.defaultInterval = interval
	}
	if maxDuration > 0 {
		p.defaultMax = maxDuration
	}
}

// Start registers and launches a job for the resource. If one is
// already running the call fails instead of starting a duplicate.
func (p *Poller) Start(ctx context.Context, in StartInput) (uuid.UUID, error) {
	if in.PollInterval <= 0 {
		in.PollInterval = p.defaultInterval
	}
	if in.MaxDuration <= 0 {
		in.MaxDuration = p.defaultMax
	}

	job := &Job{
		ID:          uuid.New(),
		ResourceID:  in.ResourceID,
		TenantID:    in.TenantID,
		PrincipalID: in.PrincipalID,
		StepID:      in.StepID,
		Status:      JobRunning,
		StartedAt:   time.Now().UTC(),
	}

	p.mu.Lock()
	if _, exists := p.running[in.ResourceID]; exists {
		p.mu.Unlock()
		return uuid.Nil, fmt.Errorf("reconcile.Start(%q): %w", in.ResourceID, ErrAlreadyRunning)
	}
	p.running[in.ResourceID] = job
	p.mu.Unlock()

	// The job outlives the request that started it. Only request-scoped
	// values are carried over, never the request's cancellation.
	go p.run(context.WithoutCancel(ctx), job, in)

	return job.ID, nil
}

// Snapshot returns a copy of the running job for the resource, if any.
func (p *Poller) Snapshot(resourceID string) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.running[resourceID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// RunningCount reports how many jobs are currently polling.
func (p *Poller) RunningCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

func (p *Poller) run(ctx context.Context, job *Job, in StartInput) {
	// Deregister on every exit path, panics included, so a crashed
	// poller can never wedge the uniqueness check.
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("resource_id", job.ResourceID).Msg("reconcile.run: poller panicked")
			p.finalize(ctx, job, in, fmt.Sprintf("internal error: %v", r))
		}
		p.mu.Lock()
		delete(p.running, job.ResourceID)
		p.mu.Unlock()
	}()

	for {
		p.mu.Lock()
		job.Attempts++
		attempts := job.Attempts
		p.mu.Unlock()

		err := in.Adapter.Reconcile(ctx, in.ResourceID)

		elapsed := time.Since(job.StartedAt)
		switch {
		case err == nil:
			p.complete(ctx, job, in, attempts, elapsed)
			return

		case errors.Is(err, adserver.ErrNotReady):
			if elapsed+in.PollInterval > in.MaxDuration {
				p.finalize(ctx, job, in, fmt.Sprintf(
					"reconciliation timed out after %d attempts over %s", attempts, elapsed.Round(time.Second)))
				return
			}
			p.persistProgress(ctx, job, in, attempts, elapsed)
			time.Sleep(in.PollInterval)

		default:
			p.finalize(ctx, job, in, fmt.Sprintf("ad server rejected resource: %v", err))
			return
		}
	}
}

func (p *Poller) complete(ctx context.Context, job *Job, in StartInput, attempts int, elapsed time.Duration) {
	now := time.Now().UTC()
	p.mu.Lock()
	job.Status = JobCompleted
	job.CompletedAt = &now
	p.mu.Unlock()

	status := domain.StepCompleted
	_, err := p.steps.UpdateStep(ctx, in.TenantID, in.StepID, workflow.UpdateStepInput{
		Status: &status,
		Response: map[string]any{
			"resource_id": in.ResourceID,
			"attempts":    attempts,
			"elapsed":     elapsed.Round(time.Millisecond).String(),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("resource_id", in.ResourceID).Msg("reconcile.complete: update step")
	}

	log.Info().Str("resource_id", in.ResourceID).Int("attempts", attempts).
		Dur("elapsed", elapsed).Msg("reconcile: resource ready")

	if in.OnResult != nil {
		in.OnResult(ctx, nil)
	}
}

func (p *Poller) finalize(ctx context.Context, job *Job, in StartInput, reason string) {
	now := time.Now().UTC()
	p.mu.Lock()
	if job.Status != JobRunning {
		p.mu.Unlock()
		return
	}
	job.Status = JobFailed
	job.CompletedAt = &now
	job.Error = reason
	p.mu.Unlock()

	status := domain.StepFailed
	_, err := p.steps.UpdateStep(ctx, in.TenantID, in.StepID, workflow.UpdateStepInput{
		Status:       &status,
		ErrorMessage: &reason,
	})
	if err != nil {
		log.Error().Err(err).Str("resource_id", in.ResourceID).Msg("reconcile.finalize: update step")
	}

	log.Warn().Str("resource_id", in.ResourceID).Str("reason", reason).Msg("reconcile: job failed")

	if in.OnResult != nil {
		in.OnResult(ctx, errors.New(reason))
	}
}

// persistProgress writes a snapshot so observers can see the job move
// without waiting for completion. Write failures only cost visibility.
func (p *Poller) persistProgress(ctx context.Context, job *Job, in StartInput, attempts int, elapsed time.Duration) {
	_, err := p.steps.UpdateStep(ctx, in.TenantID, in.StepID, workflow.UpdateStepInput{
		TransactionDetails: map[string]any{
			"job_id":      job.ID.String(),
			"resource_id": in.ResourceID,
			"attempts":    attempts,
			"elapsed":     elapsed.Round(time.Millisecond).String(),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("resource_id", in.ResourceID).Msg("reconcile.persistProgress: update step")
	}
}
