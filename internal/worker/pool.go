// Package worker provides the goroutine pool that claims jobs from the jobs
// table using FOR UPDATE SKIP LOCKED and runs them through the executor.
//
// Each pool goroutine polls independently; a shared recovery goroutine
// requeues jobs whose worker went silent. Cancellation is cooperative: a
// per-job watcher polls the row's status and cancels the execution context
// when an operator cancels the job.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/metrics"
	"github.com/tryinhard1080/wastewise/internal/sanitize"
	"github.com/tryinhard1080/wastewise/internal/skill"
	"github.com/tryinhard1080/wastewise/internal/store"
)

// JobStore is the queue surface the pool drives. *store.Store satisfies it;
// pool tests use an in-memory fake.
type JobStore interface {
	ClaimNextJob(ctx context.Context, workerID string) (*store.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	FailJob(ctx context.Context, id uuid.UUID, errInfo store.ErrorInfo, retryable bool, backoffBase, backoffCap time.Duration) error
	GetJobStatus(ctx context.Context, id uuid.UUID) (store.JobStatus, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, pct int, step string) error
	RequeueStaleJobs(ctx context.Context, threshold time.Duration) (requeued, failed int64, err error)
}

// Executor runs a claimed job and reports the outcome as a Result. It never
// returns an error; the pool's persistence path branches on the Result alone.
type Executor interface {
	Execute(ctx context.Context, job *store.Job, progress skill.ProgressFunc) *skill.Result
}

// Config holds pool tuning parameters (sourced from config.Config).
type Config struct {
	Concurrency    int
	PollInterval   time.Duration
	StaleThreshold time.Duration
	StaleInterval  time.Duration
	BackoffBase    time.Duration
	BackoffCap     time.Duration

	// CancelWatchInterval is how often the per-job watcher re-reads the
	// row's status. Defaults to 2s if zero.
	CancelWatchInterval time.Duration
}

// Pool manages the worker goroutines for one process.
type Pool struct {
	store    JobStore
	exec     Executor
	cfg      Config
	workerID string
	log      *slog.Logger
}

// New creates a Pool. A random workerID is generated at construction time to
// distinguish this process in the worker_id column.
func New(st JobStore, exec Executor, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.CancelWatchInterval <= 0 {
		cfg.CancelWatchInterval = 2 * time.Second
	}
	return &Pool{
		store:    st,
		exec:     exec,
		cfg:      cfg,
		workerID: uuid.New().String(),
		log:      logger,
	}
}

// WorkerID returns the process's queue claimant identity.
func (p *Pool) WorkerID() string { return p.workerID }

// Start launches the worker goroutines plus the stale recovery goroutine,
// then blocks until ctx is cancelled. In-flight jobs run to completion of
// their current execution; jobs left in processing by a hard kill are picked
// up later by the recovery goroutine of a surviving process.
func (p *Pool) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.runWorker(ctx, n)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runStaleRecovery(ctx)
	}()

	wg.Wait()
	p.log.Info("worker pool stopped", "worker_id", p.workerID)
}

// runWorker polls for jobs until ctx is cancelled. Uses time.NewTicker (not
// time.After) to avoid timer leaks.
func (p *Pool) runWorker(ctx context.Context, n int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.log.Info("worker started", "worker_id", p.workerID, "slot", n)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("worker stopping", "slot", n)
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain claims and executes jobs until the queue is empty or ctx is done.
// Claiming again immediately after finishing a job keeps a backlog moving
// without waiting out the poll interval.
func (p *Pool) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := p.store.ClaimNextJob(ctx, p.workerID)
		if err != nil {
			p.log.Error("claim job", "error", err)
			return
		}
		if job == nil {
			return
		}
		metrics.JobsClaimed.WithLabelValues(p.workerID).Inc()
		p.runJob(ctx, job)
	}
}

// runJob executes one claimed job and persists its outcome.
func (p *Pool) runJob(ctx context.Context, job *store.Job) {
	p.log.Info("executing job",
		"job_id", job.ID, "job_type", job.JobType,
		"priority", job.Priority, "attempt", job.RetryCount+1)

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcherDone := make(chan struct{})
	go p.watchCancellation(execCtx, job.ID, cancel, watcherDone)

	progress := func(pct int, step string) {
		if err := p.store.UpdateJobProgress(ctx, job.ID, pct, sanitize.String(step)); err != nil {
			p.log.Warn("update progress", "job_id", job.ID, "error", err)
		}
	}

	res := p.exec.Execute(execCtx, job, progress)
	cancel()
	<-watcherDone

	p.persist(ctx, job, res)
}

// watchCancellation polls the job row until ctx is done, cancelling the
// execution context if an operator flipped the row to cancelled.
func (p *Pool) watchCancellation(ctx context.Context, id uuid.UUID, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.CancelWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := p.store.GetJobStatus(ctx, id)
			if err != nil {
				continue
			}
			if status == store.JobCancelled {
				p.log.Info("job cancelled by operator", "job_id", id)
				cancel()
				return
			}
		}
	}
}

// persist writes the execution outcome back to the job row. Completion and
// failure updates are guarded on status = 'processing' in the store, so a
// result arriving after an operator cancellation is dropped there.
func (p *Pool) persist(ctx context.Context, job *store.Job, res *skill.Result) {
	jt := string(job.JobType)

	if res.Success {
		payload, err := json.Marshal(res)
		if err != nil {
			payload = []byte(fmt.Sprintf(`{"success":true,"marshal_error":%q}`, err.Error()))
		}
		if err := p.store.CompleteJob(ctx, job.ID, payload); err != nil {
			p.log.Error("complete job", "job_id", job.ID, "error", err)
			return
		}
		metrics.JobsProcessed.WithLabelValues(jt, "completed").Inc()
		p.log.Info("job completed", "job_id", job.ID,
			"duration_ms", res.Metadata.DurationMS)
		return
	}

	if res.Error != nil && res.Error.Code == skill.CodeCancelled {
		// The row was already moved to cancelled by CancelJob, or the
		// process is shutting down and the recovery goroutine will
		// requeue it. Either way there is nothing to write.
		metrics.JobsProcessed.WithLabelValues(jt, "cancelled").Inc()
		p.log.Info("job execution cancelled", "job_id", job.ID)
		return
	}

	errInfo := store.ErrorInfo{Code: skill.CodeExecution, Message: "unknown failure"}
	if res.Error != nil {
		errInfo.Code = res.Error.Code
		errInfo.Message = sanitize.String(res.Error.Message)
		if len(res.Error.Details) > 0 {
			if details, err := json.Marshal(res.Error.Details); err == nil {
				errInfo.Details = details
			}
		}
	}

	retryable := skill.RetryableCode(errInfo.Code)
	if err := p.store.FailJob(ctx, job.ID, errInfo, retryable, p.cfg.BackoffBase, p.cfg.BackoffCap); err != nil {
		p.log.Error("fail job", "job_id", job.ID, "error", err)
		return
	}
	outcome := "failed"
	if retryable && job.RetryCount+1 < job.MaxAttempts {
		outcome = "retried"
	}
	metrics.JobsProcessed.WithLabelValues(jt, outcome).Inc()
	p.log.Warn("job failed", "job_id", job.ID,
		"code", errInfo.Code, "retryable", retryable, "attempt", job.RetryCount+1)
}

// runStaleRecovery periodically requeues processing jobs whose worker went
// silent past the stale threshold. Uses time.NewTicker (not time.After) to
// avoid timer leaks.
func (p *Pool) runStaleRecovery(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.StaleInterval)
	defer ticker.Stop()

	p.log.Info("stale recovery started",
		"threshold", p.cfg.StaleThreshold, "check_interval", p.cfg.StaleInterval)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("stale recovery stopping")
			return
		case <-ticker.C:
			requeued, exhausted, err := p.store.RequeueStaleJobs(ctx, p.cfg.StaleThreshold)
			if err != nil {
				p.log.Error("stale job recovery", "error", err)
				continue
			}
			if requeued > 0 || exhausted > 0 {
				metrics.StaleJobsRequeued.Add(float64(requeued))
				p.log.Info("reclaimed stale jobs",
					"requeued", requeued, "exhausted", exhausted)
			}
		}
	}
}
