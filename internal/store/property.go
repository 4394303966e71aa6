// ABOUTME: Store methods for properties and their dependent waste-service
// ABOUTME: collections: haul records, invoices, and uploaded documents.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Property is a managed multifamily property under waste analysis.
type Property struct {
	ID           uuid.UUID
	Name         string
	Units        int
	PropertyType string
	OccupancyPct float64
	Status       string
	HasCompactor bool
	HasValet     bool
	Location     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HaulRecord is one compactor pull: when it happened, what it weighed, and
// what the haul cost.
type HaulRecord struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	HauledAt   time.Time
	Tons       float64
	HaulFee    float64
	CreatedAt  time.Time
}

// Invoice is one month of billed waste charges for a property.
type Invoice struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	InvoiceNumber string
	Period        time.Time
	Disposal      float64
	PickupFees    float64
	Rental        float64
	Contamination float64
	Bulk          float64
	Other         float64
	CreatedAt     time.Time
}

// Document is an uploaded property document (invoice PDF, contract, haul log
// spreadsheet) awaiting or holding structured extraction output.
type Document struct {
	ID          uuid.UUID
	PropertyID  uuid.UUID
	Name        string
	StoragePath string
	ContentType string
	Extracted   json.RawMessage
	CreatedAt   time.Time
}

// CreatePropertyParams holds the fields for creating a property.
type CreatePropertyParams struct {
	Name         string
	Units        int
	PropertyType string
	OccupancyPct float64
	Status       string
	HasCompactor bool
	HasValet     bool
	Location     *string
}

// CreateProperty inserts a new property and returns it.
func (s *Store) CreateProperty(ctx context.Context, p CreatePropertyParams) (*Property, error) {
	if p.PropertyType == "" {
		p.PropertyType = "garden"
	}
	if p.Status == "" {
		p.Status = "stabilized"
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO properties (name, units, property_type, occupancy_pct, status, has_compactor, has_valet, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, name, units, property_type, occupancy_pct, status, has_compactor, has_valet, location, created_at, updated_at`,
		p.Name, p.Units, p.PropertyType, p.OccupancyPct, p.Status, p.HasCompactor, p.HasValet, p.Location)
	return scanProperty(row)
}

// GetProperty returns the property with the given id, or (nil, nil) if it
// does not exist.
func (s *Store) GetProperty(ctx context.Context, id uuid.UUID) (*Property, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, units, property_type, occupancy_pct, status, has_compactor, has_valet, location, created_at, updated_at
		FROM properties WHERE id = $1`, id)
	prop, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return prop, err
}

func scanProperty(row pgx.Row) (*Property, error) {
	var p Property
	err := row.Scan(&p.ID, &p.Name, &p.Units, &p.PropertyType, &p.OccupancyPct, &p.Status,
		&p.HasCompactor, &p.HasValet, &p.Location, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddHaulRecord inserts one haul for the property and returns its id.
func (s *Store) AddHaulRecord(ctx context.Context, propertyID uuid.UUID, hauledAt time.Time, tons, haulFee float64) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO haul_records (property_id, hauled_at, tons, haul_fee)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		propertyID, hauledAt, tons, haulFee).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add haul record: %w", err)
	}
	return id, nil
}

// ListHaulRecords returns the property's hauls ordered oldest first.
func (s *Store) ListHaulRecords(ctx context.Context, propertyID uuid.UUID) ([]HaulRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, hauled_at, tons, haul_fee, created_at
		FROM haul_records WHERE property_id = $1 ORDER BY hauled_at, created_at`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list haul records: %w", err)
	}
	defer rows.Close()

	var out []HaulRecord
	for rows.Next() {
		var h HaulRecord
		if err := rows.Scan(&h.ID, &h.PropertyID, &h.HauledAt, &h.Tons, &h.HaulFee, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan haul record: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AddInvoice inserts one invoice for the property and returns its id.
func (s *Store) AddInvoice(ctx context.Context, inv Invoice) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (property_id, invoice_number, period, disposal, pickup_fees, rental, contamination, bulk, other)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		inv.PropertyID, inv.InvoiceNumber, inv.Period, inv.Disposal, inv.PickupFees,
		inv.Rental, inv.Contamination, inv.Bulk, inv.Other).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add invoice: %w", err)
	}
	return id, nil
}

// ListInvoices returns the property's invoices ordered by billing period.
func (s *Store) ListInvoices(ctx context.Context, propertyID uuid.UUID) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, invoice_number, period, disposal, pickup_fees, rental, contamination, bulk, other, created_at
		FROM invoices WHERE property_id = $1 ORDER BY period`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.PropertyID, &inv.InvoiceNumber, &inv.Period, &inv.Disposal,
			&inv.PickupFees, &inv.Rental, &inv.Contamination, &inv.Bulk, &inv.Other, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// AddDocument registers an uploaded document for the property and returns its id.
func (s *Store) AddDocument(ctx context.Context, propertyID uuid.UUID, name, storagePath, contentType string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO property_documents (property_id, name, storage_path, content_type)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		propertyID, name, storagePath, contentType).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

// ListDocuments returns the property's documents, oldest first.
func (s *Store) ListDocuments(ctx context.Context, propertyID uuid.UUID) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, property_id, name, storage_path, content_type, extracted, created_at
		FROM property_documents WHERE property_id = $1 ORDER BY created_at`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.PropertyID, &d.Name, &d.StoragePath, &d.ContentType, &d.Extracted, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDocumentExtracted stores the structured extraction output for a document.
func (s *Store) SetDocumentExtracted(ctx context.Context, id uuid.UUID, extracted json.RawMessage) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE property_documents SET extracted = $2 WHERE id = $1`, id, extracted); err != nil {
		return fmt.Errorf("set document extracted: %w", err)
	}
	return nil
}
