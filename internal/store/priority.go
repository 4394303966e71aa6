// ABOUTME: Priority assignment policy: a pure function of job type and actor
// ABOUTME: history, evaluated once inside the enqueue transaction.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Priority levels. Lower number = more urgent.
const (
	PriorityExpedited = 1
	PriorityNormal    = 5
	PriorityLow       = 10
)

// PriorityFor maps a job type to its queue priority. An actor's first-ever
// waste analysis is expedited so new accounts see results quickly; everything
// else runs at its type's standing level. The mapping is total over the
// closed enum; anything else is a programming error surfaced at enqueue time.
func PriorityFor(jobType JobType, firstAnalysis bool) (int, error) {
	switch jobType {
	case JobTypeWasteAnalysis:
		if firstAnalysis {
			return PriorityExpedited, nil
		}
		return PriorityNormal, nil
	case JobTypeDocumentExtraction, JobTypeVendorResearch:
		return PriorityNormal, nil
	case JobTypeReportGeneration:
		return PriorityLow, nil
	}
	return 0, fmt.Errorf("%w: no priority mapping for %q", ErrInvalidJobType, jobType)
}

// assignPriority computes the priority for a new job, reading the actor's
// history inside the enqueue transaction so the first-analysis check and the
// insert see the same snapshot.
func (s *Store) assignPriority(ctx context.Context, tx pgx.Tx, jobType JobType, requestedBy uuid.UUID) (int, error) {
	firstAnalysis := false
	if jobType == JobTypeWasteAnalysis {
		var prior int64
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM jobs
			WHERE requested_by = $1 AND job_type = $2`,
			requestedBy, JobTypeWasteAnalysis).Scan(&prior)
		if err != nil {
			return 0, fmt.Errorf("count actor history: %w", err)
		}
		firstAnalysis = prior == 0
	}
	return PriorityFor(jobType, firstAnalysis)
}
