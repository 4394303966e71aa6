// Package metrics registers the Prometheus collectors for job processing.
// Everything lives on the default registry so the /metrics endpoint picks it
// up without extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts finished job executions by type and outcome
	// (completed, failed, retried, cancelled).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wastewise_jobs_processed_total",
		Help: "Finished job executions by job type and outcome.",
	}, []string{"job_type", "outcome"})

	// JobDuration tracks wall-clock execution time per job type.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wastewise_job_duration_seconds",
		Help:    "Job execution duration by job type.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"job_type"})

	// JobsClaimed counts successful queue claims per worker.
	JobsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wastewise_jobs_claimed_total",
		Help: "Jobs claimed from the queue by worker ID.",
	}, []string{"worker_id"})

	// StaleJobsRequeued counts jobs recovered by the stale reaper.
	StaleJobsRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wastewise_stale_jobs_requeued_total",
		Help: "Processing jobs requeued after their worker went silent.",
	})

	// ExtractionTokens counts model tokens spent on document extraction.
	ExtractionTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wastewise_extraction_tokens_total",
		Help: "Gemini tokens consumed by document extraction, by direction.",
	}, []string{"direction"})
)
