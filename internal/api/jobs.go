package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/store"
)

// registerJobRoutes wires up the job pipeline endpoints on the huma API.
//
//	POST /properties/{property_id}/jobs — enqueue (rate limited per IP)
//	GET  /jobs/{job_id}                 — status, progress, result, error
//	POST /jobs/{job_id}/cancel          — operator cancellation
//	GET  /queue/metrics                 — queue health snapshot
func registerJobRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID: "enqueue-job",
		Method:      http.MethodPost,
		Path:        "/properties/{property_id}/jobs",
		Summary:     "Enqueue a job",
		Description: "Creates a pending job for the property. Priority is assigned at enqueue from the requester's history and never recomputed.",
		Tags:        []string{"Jobs"},
		Middlewares: huma.Middlewares{srv.enqueueRateLimit(api)},
	}, enqueueJobHandler(srv))

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{job_id}",
		Summary:     "Get job status",
		Description: "Returns the job's status, progress, and its result or error once terminal.",
		Tags:        []string{"Jobs"},
	}, getJobHandler(srv.store))

	huma.Register(api, huma.Operation{
		OperationID: "cancel-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{job_id}/cancel",
		Summary:     "Cancel a job",
		Description: "Cancels a pending or processing job. Running executions stop at their next checkpoint.",
		Tags:        []string{"Jobs"},
	}, cancelJobHandler(srv.store))

	huma.Register(api, huma.Operation{
		OperationID: "queue-metrics",
		Method:      http.MethodGet,
		Path:        "/queue/metrics",
		Summary:     "Queue metrics",
		Description: "Returns job totals by status and priority, the 1-hour error rate, and the stuck-job count.",
		Tags:        []string{"Queue"},
	}, queueMetricsHandler(srv))
}

// enqueueRateLimit applies the per-IP limiter to the enqueue operation.
func (srv *Server) enqueueRateLimit(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !srv.rateLimiter.Allow(clientIP(ctx.RemoteAddr())) {
			ctx.SetHeader("Retry-After", "60")
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(ctx)
	}
}

// ── Request/response types ───────────────────────────────────────────────────

// ProgressResponse is the job's last reported progress.
type ProgressResponse struct {
	Percent     int     `json:"percent"`
	CurrentStep *string `json:"current_step,omitempty"`
}

// ErrorResponse is the user-visible failure surface: code and message only.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobResponse is the API representation of a job row.
type JobResponse struct {
	ID          uuid.UUID        `json:"id"`
	JobType     string           `json:"job_type"`
	Status      string           `json:"status"`
	Priority    int              `json:"priority"`
	PropertyID  uuid.UUID        `json:"property_id"`
	Progress    ProgressResponse `json:"progress"`
	Result      json.RawMessage  `json:"result,omitempty"`
	Error       *ErrorResponse   `json:"error,omitempty"`
	RetryCount  int              `json:"retry_count"`
	CreatedAt   string           `json:"created_at"`            // RFC3339
	StartedAt   *string          `json:"started_at,omitempty"`  // RFC3339
	CompletedAt *string          `json:"completed_at,omitempty"` // RFC3339
}

func jobToResponse(j *store.Job) JobResponse {
	resp := JobResponse{
		ID:         j.ID,
		JobType:    string(j.JobType),
		Status:     string(j.Status),
		Priority:   j.Priority,
		PropertyID: j.PropertyID,
		Progress:   ProgressResponse{Percent: j.ProgressPct, CurrentStep: j.ProgressStep},
		RetryCount: j.RetryCount,
		CreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.Status == store.JobCompleted {
		resp.Result = j.Result
	}
	if j.Error != nil {
		resp.Error = &ErrorResponse{Code: j.Error.Code, Message: j.Error.Message}
	}
	if j.StartedAt != nil {
		s := j.StartedAt.UTC().Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// ── POST /properties/{property_id}/jobs ──────────────────────────────────────

// EnqueueJobInput is the enqueue request.
type EnqueueJobInput struct {
	PropertyID uuid.UUID `path:"property_id" doc:"Property the job runs against"`
	Body       struct {
		JobType     string          `json:"job_type" enum:"waste_analysis,document_extraction,vendor_research,report_generation" doc:"One of the closed set of job types"`
		RequestedBy uuid.UUID       `json:"requested_by" doc:"Actor requesting the job"`
		Payload     json.RawMessage `json:"payload,omitempty" doc:"Opaque job parameters passed through to the skill"`
	}
}

// EnqueueJobOutput is the enqueue response.
type EnqueueJobOutput struct {
	Status int
	Body   struct {
		JobID  uuid.UUID `json:"job_id"`
		Status string    `json:"status"`
	}
}

func enqueueJobHandler(srv *Server) func(context.Context, *EnqueueJobInput) (*EnqueueJobOutput, error) {
	return func(ctx context.Context, input *EnqueueJobInput) (*EnqueueJobOutput, error) {
		jt := store.JobType(input.Body.JobType)
		if !jt.Valid() {
			return nil, huma.Error400BadRequest("INVALID_JOB_TYPE: unknown job type " + input.Body.JobType)
		}
		if input.Body.RequestedBy == uuid.Nil {
			return nil, huma.Error400BadRequest("requested_by is required")
		}

		prop, err := srv.store.GetProperty(ctx, input.PropertyID)
		if err != nil {
			return nil, huma.Error500InternalServerError("load property", err)
		}
		if prop == nil {
			return nil, huma.Error404NotFound("property not found")
		}

		id, err := srv.store.EnqueueJob(ctx, jt, input.PropertyID, input.Body.RequestedBy,
			input.Body.Payload, srv.cfg.JobMaxAttempts)
		if err != nil {
			if errors.Is(err, store.ErrInvalidJobType) {
				return nil, huma.Error400BadRequest("INVALID_JOB_TYPE: " + err.Error())
			}
			return nil, huma.Error500InternalServerError("enqueue job", err)
		}

		out := &EnqueueJobOutput{Status: http.StatusAccepted}
		out.Body.JobID = id
		out.Body.Status = string(store.JobPending)
		return out, nil
	}
}

// ── GET /jobs/{job_id} ───────────────────────────────────────────────────────

// GetJobInput identifies the job to fetch.
type GetJobInput struct {
	JobID uuid.UUID `path:"job_id"`
}

// GetJobOutput is the job detail response.
type GetJobOutput struct {
	Body JobResponse
}

func getJobHandler(s *store.Store) func(context.Context, *GetJobInput) (*GetJobOutput, error) {
	return func(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
		job, err := s.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, huma.Error500InternalServerError("load job", err)
		}
		if job == nil {
			return nil, huma.Error404NotFound("job not found")
		}
		return &GetJobOutput{Body: jobToResponse(job)}, nil
	}
}

// ── POST /jobs/{job_id}/cancel ───────────────────────────────────────────────

// CancelJobInput identifies the job to cancel.
type CancelJobInput struct {
	JobID uuid.UUID `path:"job_id"`
}

// CancelJobOutput reports the post-cancel status.
type CancelJobOutput struct {
	Body struct {
		JobID  uuid.UUID `json:"job_id"`
		Status string    `json:"status"`
	}
}

func cancelJobHandler(s *store.Store) func(context.Context, *CancelJobInput) (*CancelJobOutput, error) {
	return func(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
		job, err := s.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, huma.Error500InternalServerError("load job", err)
		}
		if job == nil {
			return nil, huma.Error404NotFound("job not found")
		}

		cancelled, err := s.CancelJob(ctx, input.JobID)
		if err != nil {
			return nil, huma.Error500InternalServerError("cancel job", err)
		}
		if !cancelled {
			return nil, huma.Error409Conflict("job already " + string(job.Status))
		}

		out := &CancelJobOutput{}
		out.Body.JobID = input.JobID
		out.Body.Status = string(store.JobCancelled)
		return out, nil
	}
}

// ── GET /queue/metrics ───────────────────────────────────────────────────────

// QueueMetricsOutput is the queue health response.
type QueueMetricsOutput struct {
	Body QueueMetricsBody
}

// QueueMetricsBody mirrors store.QueueMetrics with JSON names.
type QueueMetricsBody struct {
	TotalPending    int64            `json:"total_pending"`
	TotalProcessing int64            `json:"total_processing"`
	ByStatus        map[string]int64 `json:"by_status"`
	ByPriority      map[int]int64    `json:"by_priority"`
	ErrorRate       float64          `json:"error_rate_1h"`
	StuckJobs       int64            `json:"stuck_jobs"`
}

func queueMetricsHandler(srv *Server) func(context.Context, *struct{}) (*QueueMetricsOutput, error) {
	return func(ctx context.Context, _ *struct{}) (*QueueMetricsOutput, error) {
		m, err := srv.store.GetQueueMetrics(ctx, srv.cfg.WorkerStaleThreshold)
		if err != nil {
			return nil, huma.Error500InternalServerError("queue metrics", err)
		}

		byStatus := make(map[string]int64, len(m.ByStatus))
		for k, v := range m.ByStatus {
			byStatus[string(k)] = v
		}
		return &QueueMetricsOutput{Body: QueueMetricsBody{
			TotalPending:    m.TotalPending,
			TotalProcessing: m.TotalProcessing,
			ByStatus:        byStatus,
			ByPriority:      m.ByPriority,
			ErrorRate:       m.ErrorRate1h,
			StuckJobs:       m.StuckJobs,
		}}, nil
	}
}
