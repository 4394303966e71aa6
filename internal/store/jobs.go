// ABOUTME: The jobs table: enqueue with priority assignment, SKIP LOCKED claim,
// ABOUTME: complete/fail-with-backoff/cancel transitions, metrics, and the stale reaper.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// JobType is the closed set of asynchronous work the pipeline accepts.
type JobType string

const (
	JobTypeWasteAnalysis      JobType = "waste_analysis"
	JobTypeDocumentExtraction JobType = "document_extraction"
	JobTypeVendorResearch     JobType = "vendor_research"
	JobTypeReportGeneration   JobType = "report_generation"
)

// JobTypes lists every valid job type.
func JobTypes() []JobType {
	return []JobType{JobTypeWasteAnalysis, JobTypeDocumentExtraction, JobTypeVendorResearch, JobTypeReportGeneration}
}

// Valid reports whether t is a member of the closed enum.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeWasteAnalysis, JobTypeDocumentExtraction, JobTypeVendorResearch, JobTypeReportGeneration:
		return true
	}
	return false
}

// ErrInvalidJobType is returned by EnqueueJob for a type outside the closed
// enum. Non-retryable; the API layer maps it to a 400 with code INVALID_JOB_TYPE.
var ErrInvalidJobType = errors.New("invalid job type")

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (st JobStatus) Terminal() bool {
	return st == JobCompleted || st == JobFailed || st == JobCancelled
}

// ErrorInfo is the persisted failure detail for a job. Code drives retry
// eligibility and the user-visible surface; Details carries per-field
// validation errors for operator diagnostics.
type ErrorInfo struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Job is one row of the jobs table.
type Job struct {
	ID           uuid.UUID
	JobType      JobType
	Status       JobStatus
	Priority     int
	PropertyID   uuid.UUID
	RequestedBy  uuid.UUID
	Payload      json.RawMessage
	Result       json.RawMessage
	Error        *ErrorInfo
	ProgressPct  int
	ProgressStep *string
	ProgressAt   *time.Time
	WorkerID     *string
	ClaimedAt    *time.Time
	RetryCount   int
	MaxAttempts  int
	RetryAfter   *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const jobColumns = `id, job_type, status, priority, property_id, requested_by, payload, result,
	error_code, error_message, error_details, progress_pct, progress_step, progress_at,
	worker_id, claimed_at, retry_count, max_attempts, retry_after, started_at, completed_at,
	created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var (
		j          Job
		errCode    *string
		errMessage *string
		errDetails json.RawMessage
	)
	err := row.Scan(&j.ID, &j.JobType, &j.Status, &j.Priority, &j.PropertyID, &j.RequestedBy,
		&j.Payload, &j.Result, &errCode, &errMessage, &errDetails, &j.ProgressPct,
		&j.ProgressStep, &j.ProgressAt, &j.WorkerID, &j.ClaimedAt, &j.RetryCount,
		&j.MaxAttempts, &j.RetryAfter, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if errCode != nil {
		j.Error = &ErrorInfo{Code: *errCode, Details: errDetails}
		if errMessage != nil {
			j.Error.Message = *errMessage
		}
	}
	return &j, nil
}

// EnqueueJob inserts a new pending job, assigning its priority from the
// requesting actor's history inside the same transaction (the priority is
// fixed at creation and never recomputed). Unknown job types are rejected
// with ErrInvalidJobType before touching the database.
func (s *Store) EnqueueJob(ctx context.Context, jobType JobType, propertyID, requestedBy uuid.UUID, payload json.RawMessage, maxAttempts int) (uuid.UUID, error) {
	if !jobType.Valid() {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	if maxAttempts <= 0 {
		maxAttempts = 4
	}

	var id uuid.UUID
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		priority, err := s.assignPriority(ctx, tx, jobType, requestedBy)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO jobs (job_type, status, priority, property_id, requested_by, payload, max_attempts)
			VALUES ($1, 'pending', $2, $3, $4, $5, $6)
			RETURNING id`,
			jobType, priority, propertyID, requestedBy, payload, maxAttempts).Scan(&id)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// ClaimNextJob atomically claims the single most urgent eligible pending job
// for workerID and returns it, or (nil, nil) when none is available.
//
// Eligible means status=pending and retry_after absent or due. Ordering is
// priority ascending then created_at ascending. FOR UPDATE SKIP LOCKED makes
// concurrent claimers bypass rows locked by an in-flight claim instead of
// blocking on them, so two callers can never return the same job and dequeue
// latency stays bounded.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET
			status     = 'processing',
			worker_id  = $1,
			claimed_at = now(),
			started_at = now(),
			progress_at = now(),
			updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			  AND (retry_after IS NULL OR retry_after <= now())
			ORDER BY priority ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns, workerID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

// CompleteJob marks a processing job as completed and stores its result.
// A job cancelled mid-flight stays cancelled: the guard on status means the
// late completion is silently dropped.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status        = 'completed',
			result        = $2,
			progress_pct  = 100,
			progress_step = 'completed',
			completed_at  = now(),
			updated_at    = now()
		WHERE id = $1 AND status = 'processing'`, id, result); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// FailJob records a failure for a processing job. When retryable and the
// attempt budget is not exhausted, the job reverts to pending with
// retry_after = now + min(base·2^retry_count, cap) (jittered) and cleared
// worker fields; otherwise it becomes failed. The retried job keeps its
// original priority.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, errInfo ErrorInfo, retryable bool, backoffBase, backoffCap time.Duration) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var retryCount, maxAttempts int
		err := tx.QueryRow(ctx, `
			SELECT retry_count, max_attempts FROM jobs
			WHERE id = $1 AND status = 'processing'
			FOR UPDATE`, id).Scan(&retryCount, &maxAttempts)
		if errors.Is(err, pgx.ErrNoRows) {
			// Completed or cancelled out from under us; nothing to record.
			return nil
		}
		if err != nil {
			return err
		}

		if retryable && retryCount+1 < maxAttempts {
			delay := backoffDelay(backoffBase, backoffCap, retryCount)
			_, err = tx.Exec(ctx, `
				UPDATE jobs SET
					status        = 'pending',
					retry_count   = retry_count + 1,
					retry_after   = now() + make_interval(secs => $2),
					worker_id     = NULL,
					claimed_at    = NULL,
					error_code    = $3,
					error_message = $4,
					error_details = $5,
					updated_at    = now()
				WHERE id = $1`, id, delay.Seconds(), errInfo.Code, errInfo.Message, errInfo.Details)
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE jobs SET
				status        = 'failed',
				error_code    = $2,
				error_message = $3,
				error_details = $4,
				completed_at  = now(),
				updated_at    = now()
			WHERE id = $1`, id, errInfo.Code, errInfo.Message, errInfo.Details)
		return err
	})
	if err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return nil
}

// backoffDelay computes base·2^retryCount with jitter, capped at maxDelay.
func backoffDelay(base, maxDelay time.Duration, retryCount int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(retryCount)))
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	jitter := 0.5 + rand.Float64() //nolint:gosec // backoff jitter is not security-sensitive
	d = time.Duration(float64(d) * jitter)
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	return d
}

// CancelJob transitions a pending or processing job to cancelled and reports
// whether anything changed. Completed and failed jobs are left alone. A
// running execution observes the transition cooperatively at its next
// checkpoint; nothing is force-terminated.
func (s *Store) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status       = 'cancelled',
			completed_at = now(),
			updated_at   = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`, id)
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetJob returns the job with the given id, or (nil, nil) if it does not exist.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// GetJobStatus returns just the status of a job. Used by the cancellation
// watcher, which polls while a job executes.
func (s *Store) GetJobStatus(ctx context.Context, id uuid.UUID) (JobStatus, error) {
	var st JobStatus
	if err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&st); err != nil {
		return "", fmt.Errorf("get job status %s: %w", id, err)
	}
	return st, nil
}

// UpdateJobProgress records execution progress for a processing job. Progress
// on a job no longer processing (cancelled, reaped) is dropped.
func (s *Store) UpdateJobProgress(ctx context.Context, id uuid.UUID, pct int, step string) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			progress_pct  = $2,
			progress_step = $3,
			progress_at   = now(),
			updated_at    = now()
		WHERE id = $1 AND status = 'processing'`, id, pct, step); err != nil {
		return fmt.Errorf("update job progress %s: %w", id, err)
	}
	return nil
}

// QueueMetrics is a point-in-time snapshot of queue health.
type QueueMetrics struct {
	TotalPending    int64
	TotalProcessing int64
	ByStatus        map[JobStatus]int64
	// ByPriority counts pending jobs per priority level.
	ByPriority map[int]int64
	// ErrorRate1h is failed / (failed + completed) over the trailing hour,
	// 0 when no jobs finished.
	ErrorRate1h float64
	// StuckJobs counts processing jobs with no progress update within the
	// staleness threshold.
	StuckJobs int64
}

// GetQueueMetrics computes queue health counters. Read-only and idempotent:
// calling it never mutates queue state.
func (s *Store) GetQueueMetrics(ctx context.Context, staleThreshold time.Duration) (*QueueMetrics, error) {
	m := &QueueMetrics{
		ByStatus:   make(map[JobStatus]int64),
		ByPriority: make(map[int]int64),
	}

	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue metrics by status: %w", err)
	}
	for rows.Next() {
		var (
			st JobStatus
			n  int64
		)
		if err := rows.Scan(&st, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		m.ByStatus[st] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	m.TotalPending = m.ByStatus[JobPending]
	m.TotalProcessing = m.ByStatus[JobProcessing]

	rows, err = s.pool.Query(ctx, `
		SELECT priority, count(*) FROM jobs WHERE status = 'pending' GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("queue metrics by priority: %w", err)
	}
	for rows.Next() {
		var (
			p int
			n int64
		)
		if err := rows.Scan(&p, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan priority count: %w", err)
		}
		m.ByPriority[p] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var failed1h, finished1h int64
	err = s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'failed'),
			count(*) FILTER (WHERE status IN ('failed', 'completed'))
		FROM jobs WHERE completed_at >= now() - interval '1 hour'`).Scan(&failed1h, &finished1h)
	if err != nil {
		return nil, fmt.Errorf("queue metrics error rate: %w", err)
	}
	if finished1h > 0 {
		m.ErrorRate1h = float64(failed1h) / float64(finished1h)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM jobs
		WHERE status = 'processing'
		  AND coalesce(progress_at, claimed_at) < now() - make_interval(secs => $1)`,
		staleThreshold.Seconds()).Scan(&m.StuckJobs)
	if err != nil {
		return nil, fmt.Errorf("queue metrics stuck jobs: %w", err)
	}

	return m, nil
}

// RequeueStaleJobs is the reaper: processing jobs with no progress update
// within threshold are assumed orphaned by a dead worker. Jobs with attempt
// budget left revert to pending (counting the lost run as an attempt); jobs
// already at their last attempt go to failed. Returns requeued and failed counts.
func (s *Store) RequeueStaleJobs(ctx context.Context, threshold time.Duration) (requeued, failed int64, err error) {
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		secs := threshold.Seconds()
		tag, err := tx.Exec(ctx, `
			UPDATE jobs SET
				status        = 'failed',
				error_code    = 'EXECUTION_ERROR',
				error_message = 'worker lost: no progress within staleness threshold',
				completed_at  = now(),
				updated_at    = now()
			WHERE status = 'processing'
			  AND coalesce(progress_at, claimed_at) < now() - make_interval(secs => $1)
			  AND retry_count + 1 >= max_attempts`, secs)
		if err != nil {
			return err
		}
		failed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `
			UPDATE jobs SET
				status        = 'pending',
				retry_count   = retry_count + 1,
				worker_id     = NULL,
				claimed_at    = NULL,
				error_code    = 'EXECUTION_ERROR',
				error_message = 'worker lost: no progress within staleness threshold',
				updated_at    = now()
			WHERE status = 'processing'
			  AND coalesce(progress_at, claimed_at) < now() - make_interval(secs => $1)`, secs)
		if err != nil {
			return err
		}
		requeued = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return requeued, failed, nil
}

// JobFilter narrows ListJobs. Zero-valued fields are ignored.
type JobFilter struct {
	Status     JobStatus
	JobType    JobType
	PropertyID uuid.UUID
	Limit      int
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]Job, error) {
	q := sq.Select(jobColumns).From("jobs").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.JobType != "" {
		q = q.Where(sq.Eq{"job_type": string(f.JobType)})
	}
	if f.PropertyID != uuid.Nil {
		q = q.Where(sq.Eq{"property_id": f.PropertyID})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list jobs query: %w", err)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
