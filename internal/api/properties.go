package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tryinhard1080/wastewise/internal/sanitize"
	"github.com/tryinhard1080/wastewise/internal/store"
)

// registerPropertyRoutes wires up the property data-entry endpoints. These
// feed the collections the skills analyze; file upload itself happens out of
// band, documents are registered here by storage path.
func registerPropertyRoutes(api huma.API, s *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-property",
		Method:      http.MethodPost,
		Path:        "/properties",
		Summary:     "Create a property",
		Tags:        []string{"Properties"},
	}, createPropertyHandler(s))

	huma.Register(api, huma.Operation{
		OperationID: "get-property",
		Method:      http.MethodGet,
		Path:        "/properties/{property_id}",
		Summary:     "Get a property",
		Tags:        []string{"Properties"},
	}, getPropertyHandler(s))

	huma.Register(api, huma.Operation{
		OperationID: "add-haul-record",
		Method:      http.MethodPost,
		Path:        "/properties/{property_id}/hauls",
		Summary:     "Record a compactor haul",
		Tags:        []string{"Properties"},
	}, addHaulHandler(s))

	huma.Register(api, huma.Operation{
		OperationID: "add-invoice",
		Method:      http.MethodPost,
		Path:        "/properties/{property_id}/invoices",
		Summary:     "Record a monthly invoice",
		Tags:        []string{"Properties"},
	}, addInvoiceHandler(s))

	huma.Register(api, huma.Operation{
		OperationID: "register-document",
		Method:      http.MethodPost,
		Path:        "/properties/{property_id}/documents",
		Summary:     "Register an uploaded document",
		Tags:        []string{"Properties"},
	}, registerDocumentHandler(s))

	huma.Register(api, huma.Operation{
		OperationID: "create-report-schedule",
		Method:      http.MethodPost,
		Path:        "/properties/{property_id}/schedules",
		Summary:     "Schedule recurring reports",
		Description: "Registers a cron schedule that enqueues report_generation jobs. Workers pick up schedule changes on restart.",
		Tags:        []string{"Properties"},
	}, createScheduleHandler(s))
}

// requireProperty loads the property or translates its absence into a 404.
func requireProperty(ctx context.Context, s *store.Store, id uuid.UUID) (*store.Property, error) {
	prop, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("load property", err)
	}
	if prop == nil {
		return nil, huma.Error404NotFound("property not found")
	}
	return prop, nil
}

// PropertyResponse is the API representation of a property row.
type PropertyResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Units        int       `json:"units"`
	PropertyType string    `json:"property_type"`
	OccupancyPct float64   `json:"occupancy_pct"`
	Status       string    `json:"status"`
	HasCompactor bool      `json:"has_compactor"`
	HasValet     bool      `json:"has_valet"`
	Location     *string   `json:"location,omitempty"`
	CreatedAt    string    `json:"created_at"` // RFC3339
}

func propertyToResponse(p *store.Property) PropertyResponse {
	return PropertyResponse{
		ID:           p.ID,
		Name:         p.Name,
		Units:        p.Units,
		PropertyType: p.PropertyType,
		OccupancyPct: p.OccupancyPct,
		Status:       p.Status,
		HasCompactor: p.HasCompactor,
		HasValet:     p.HasValet,
		Location:     p.Location,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreatePropertyInput is the create request.
type CreatePropertyInput struct {
	Body struct {
		Name         string  `json:"name" minLength:"1" maxLength:"200"`
		Units        int     `json:"units" minimum:"1"`
		PropertyType string  `json:"property_type,omitempty" enum:"garden,midrise,highrise" doc:"Defaults to garden"`
		OccupancyPct float64 `json:"occupancy_pct,omitempty" minimum:"0" maximum:"100"`
		Status       string  `json:"status,omitempty" enum:"lease-up,stabilized,rehab" doc:"Defaults to stabilized"`
		HasCompactor bool    `json:"has_compactor,omitempty"`
		HasValet     bool    `json:"has_valet,omitempty"`
		Location     *string `json:"location,omitempty" maxLength:"200"`
	}
}

// CreatePropertyOutput is the create response.
type CreatePropertyOutput struct {
	Status int
	Body   PropertyResponse
}

func createPropertyHandler(s *store.Store) func(context.Context, *CreatePropertyInput) (*CreatePropertyOutput, error) {
	return func(ctx context.Context, input *CreatePropertyInput) (*CreatePropertyOutput, error) {
		params := store.CreatePropertyParams{
			Name:         sanitize.String(input.Body.Name),
			Units:        input.Body.Units,
			PropertyType: input.Body.PropertyType,
			OccupancyPct: input.Body.OccupancyPct,
			Status:       input.Body.Status,
			HasCompactor: input.Body.HasCompactor,
			HasValet:     input.Body.HasValet,
		}
		if input.Body.Location != nil {
			loc := sanitize.String(*input.Body.Location)
			params.Location = &loc
		}
		prop, err := s.CreateProperty(ctx, params)
		if err != nil {
			return nil, huma.Error500InternalServerError("create property", err)
		}
		return &CreatePropertyOutput{Status: http.StatusCreated, Body: propertyToResponse(prop)}, nil
	}
}

// GetPropertyInput identifies the property to fetch.
type GetPropertyInput struct {
	PropertyID uuid.UUID `path:"property_id"`
}

// GetPropertyOutput is the property detail response.
type GetPropertyOutput struct {
	Body PropertyResponse
}

func getPropertyHandler(s *store.Store) func(context.Context, *GetPropertyInput) (*GetPropertyOutput, error) {
	return func(ctx context.Context, input *GetPropertyInput) (*GetPropertyOutput, error) {
		prop, err := requireProperty(ctx, s, input.PropertyID)
		if err != nil {
			return nil, err
		}
		return &GetPropertyOutput{Body: propertyToResponse(prop)}, nil
	}
}

// AddHaulInput records one compactor haul.
type AddHaulInput struct {
	PropertyID uuid.UUID `path:"property_id"`
	Body       struct {
		HauledAt time.Time `json:"hauled_at"`
		Tons     float64   `json:"tons" minimum:"0"`
		HaulFee  float64   `json:"haul_fee" minimum:"0"`
	}
}

// AddHaulOutput returns the new haul id.
type AddHaulOutput struct {
	Status int
	Body   struct {
		ID uuid.UUID `json:"id"`
	}
}

func addHaulHandler(s *store.Store) func(context.Context, *AddHaulInput) (*AddHaulOutput, error) {
	return func(ctx context.Context, input *AddHaulInput) (*AddHaulOutput, error) {
		if _, err := requireProperty(ctx, s, input.PropertyID); err != nil {
			return nil, err
		}
		id, err := s.AddHaulRecord(ctx, input.PropertyID, input.Body.HauledAt, input.Body.Tons, input.Body.HaulFee)
		if err != nil {
			return nil, huma.Error500InternalServerError("add haul record", err)
		}
		out := &AddHaulOutput{Status: http.StatusCreated}
		out.Body.ID = id
		return out, nil
	}
}

// AddInvoiceInput records one monthly invoice.
type AddInvoiceInput struct {
	PropertyID uuid.UUID `path:"property_id"`
	Body       struct {
		InvoiceNumber string    `json:"invoice_number" maxLength:"100"`
		Period        time.Time `json:"period" doc:"Billing period (any day within the month)"`
		Disposal      float64   `json:"disposal,omitempty" minimum:"0"`
		PickupFees    float64   `json:"pickup_fees,omitempty" minimum:"0"`
		Rental        float64   `json:"rental,omitempty" minimum:"0"`
		Contamination float64   `json:"contamination,omitempty" minimum:"0"`
		Bulk          float64   `json:"bulk,omitempty" minimum:"0"`
		Other         float64   `json:"other,omitempty" minimum:"0"`
	}
}

// AddInvoiceOutput returns the new invoice id.
type AddInvoiceOutput struct {
	Status int
	Body   struct {
		ID uuid.UUID `json:"id"`
	}
}

func addInvoiceHandler(s *store.Store) func(context.Context, *AddInvoiceInput) (*AddInvoiceOutput, error) {
	return func(ctx context.Context, input *AddInvoiceInput) (*AddInvoiceOutput, error) {
		if _, err := requireProperty(ctx, s, input.PropertyID); err != nil {
			return nil, err
		}
		id, err := s.AddInvoice(ctx, store.Invoice{
			PropertyID:    input.PropertyID,
			InvoiceNumber: sanitize.String(input.Body.InvoiceNumber),
			Period:        input.Body.Period,
			Disposal:      input.Body.Disposal,
			PickupFees:    input.Body.PickupFees,
			Rental:        input.Body.Rental,
			Contamination: input.Body.Contamination,
			Bulk:          input.Body.Bulk,
			Other:         input.Body.Other,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("add invoice", err)
		}
		out := &AddInvoiceOutput{Status: http.StatusCreated}
		out.Body.ID = id
		return out, nil
	}
}

// RegisterDocumentInput registers an already-uploaded document by path.
type RegisterDocumentInput struct {
	PropertyID uuid.UUID `path:"property_id"`
	Body       struct {
		Name        string `json:"name" minLength:"1" maxLength:"200"`
		StoragePath string `json:"storage_path" minLength:"1" maxLength:"500"`
		ContentType string `json:"content_type,omitempty" maxLength:"100"`
	}
}

// RegisterDocumentOutput returns the new document id.
type RegisterDocumentOutput struct {
	Status int
	Body   struct {
		ID uuid.UUID `json:"id"`
	}
}

func registerDocumentHandler(s *store.Store) func(context.Context, *RegisterDocumentInput) (*RegisterDocumentOutput, error) {
	return func(ctx context.Context, input *RegisterDocumentInput) (*RegisterDocumentOutput, error) {
		if _, err := requireProperty(ctx, s, input.PropertyID); err != nil {
			return nil, err
		}
		id, err := s.AddDocument(ctx, input.PropertyID,
			sanitize.String(input.Body.Name), input.Body.StoragePath, input.Body.ContentType)
		if err != nil {
			return nil, huma.Error500InternalServerError("register document", err)
		}
		out := &RegisterDocumentOutput{Status: http.StatusCreated}
		out.Body.ID = id
		return out, nil
	}
}

// CreateScheduleInput registers a recurring report schedule.
type CreateScheduleInput struct {
	PropertyID uuid.UUID `path:"property_id"`
	Body       struct {
		CronSpec    string    `json:"cron_spec" minLength:"1" maxLength:"100" doc:"Standard 5-field cron expression"`
		RequestedBy uuid.UUID `json:"requested_by"`
	}
}

// CreateScheduleOutput returns the new schedule id.
type CreateScheduleOutput struct {
	Status int
	Body   struct {
		ID uuid.UUID `json:"id"`
	}
}

func createScheduleHandler(s *store.Store) func(context.Context, *CreateScheduleInput) (*CreateScheduleOutput, error) {
	return func(ctx context.Context, input *CreateScheduleInput) (*CreateScheduleOutput, error) {
		if _, err := requireProperty(ctx, s, input.PropertyID); err != nil {
			return nil, err
		}
		if input.Body.RequestedBy == uuid.Nil {
			return nil, huma.Error400BadRequest("requested_by is required")
		}
		id, err := s.CreateScheduledReport(ctx, input.PropertyID, input.Body.RequestedBy, input.Body.CronSpec)
		if err != nil {
			return nil, huma.Error500InternalServerError("create schedule", err)
		}
		out := &CreateScheduleOutput{Status: http.StatusCreated}
		out.Body.ID = id
		return out, nil
	}
}
