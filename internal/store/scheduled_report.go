// ABOUTME: Store methods for scheduled report definitions consumed by the
// ABOUTME: cron scheduler, which turns them into report_generation jobs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScheduledReport is a recurring report definition for one property.
type ScheduledReport struct {
	ID          uuid.UUID
	PropertyID  uuid.UUID
	RequestedBy uuid.UUID
	CronSpec    string
	Enabled     bool
	CreatedAt   time.Time
}

// CreateScheduledReport registers a recurring report and returns its id.
func (s *Store) CreateScheduledReport(ctx context.Context, propertyID, requestedBy uuid.UUID, cronSpec string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scheduled_reports (property_id, requested_by, cron_spec)
		VALUES ($1, $2, $3) RETURNING id`,
		propertyID, requestedBy, cronSpec).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create scheduled report: %w", err)
	}
	return id, nil
}

// ListScheduledReports returns all enabled report schedules.
func (s *Store) ListScheduledReports(ctx context.Context) ([]ScheduledReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, requested_by, cron_spec, enabled, created_at
		FROM scheduled_reports WHERE enabled ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled reports: %w", err)
	}
	defer rows.Close()

	var out []ScheduledReport
	for rows.Next() {
		var r ScheduledReport
		if err := rows.Scan(&r.ID, &r.PropertyID, &r.RequestedBy, &r.CronSpec, &r.Enabled, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
