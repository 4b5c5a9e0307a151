package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/slotgrid/slotgrid/internal/app"
	"github.com/slotgrid/slotgrid/internal/domain"
)

// SlotResponse is the API representation of a slot.
type SlotResponse struct {
	ID           string `json:"id" doc:"Unique identifier"`
	AccountID    string `json:"account_id" doc:"Owning account ID"`
	AccountLabel string `json:"account_label" doc:"Owning account label"`
	Position     int    `json:"position" doc:"Position within the account (1-8)"`
	DisplayName  string `json:"display_name" doc:"Profile name shown to the customer"`
	Credential   string `json:"credential" doc:"Current access credential"`
	State        string `json:"state" doc:"Lifecycle state"`
	CustomerID   string `json:"customer_id,omitempty" doc:"Holding customer, empty when unassigned"`
	AssignedBy   string `json:"assigned_by,omitempty" doc:"Operator who performed the assignment"`
	AssignedAt   string `json:"assigned_at,omitempty" doc:"Assignment timestamp (ISO 8601)"`
	ActivatesAt  string `json:"activates_at,omitempty" doc:"Subscription start date (YYYY-MM-DD)"`
	ExpiresAt    string `json:"expires_at,omitempty" doc:"Subscription end date (YYYY-MM-DD)"`
	Note         string `json:"note,omitempty" doc:"Free-form operator note"`
	PlanTag      string `json:"plan_tag,omitempty" doc:"Commercial plan label"`
	HasAddOn     bool   `json:"has_addon" doc:"Whether the assignment includes the add-on"`
	CreatedAt    string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt    string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toSlotResponse(s domain.Slot) SlotResponse {
	resp := SlotResponse{
		ID:           s.ID,
		AccountID:    s.AccountID,
		AccountLabel: s.AccountLabel,
		Position:     s.Position,
		DisplayName:  s.DisplayName,
		Credential:   s.Credential,
		State:        string(s.State),
		CustomerID:   s.CustomerID,
		AssignedBy:   s.AssignedBy,
		ActivatesAt:  s.ActivatesAt,
		ExpiresAt:    s.ExpiresAt,
		Note:         s.Note,
		PlanTag:      s.PlanTag,
		HasAddOn:     s.HasAddOn,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if !s.AssignedAt.IsZero() {
		resp.AssignedAt = s.AssignedAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}

// AssignmentRequest is the shared body shape for assignment operations.
type AssignmentRequest struct {
	CustomerID  string `json:"customer_id" minLength:"1" maxLength:"100" doc:"Customer receiving the slot"`
	AssignedBy  string `json:"assigned_by,omitempty" maxLength:"100" doc:"Operator performing the assignment"`
	ActivatesAt string `json:"activates_at,omitempty" pattern:"^[0-9]{4}-[0-9]{2}-[0-9]{2}$" doc:"Subscription start date (YYYY-MM-DD, defaults to today)"`
	ExpiresAt   string `json:"expires_at,omitempty" pattern:"^[0-9]{4}-[0-9]{2}-[0-9]{2}$" doc:"Subscription end date (YYYY-MM-DD)"`
	Note        string `json:"note,omitempty" maxLength:"500" doc:"Free-form operator note"`
	PlanTag     string `json:"plan_tag,omitempty" maxLength:"100" doc:"Commercial plan label"`
	HasAddOn    bool   `json:"has_addon,omitempty" doc:"Whether the assignment includes the add-on"`
}

func (r AssignmentRequest) toParams() app.AssignParams {
	return app.AssignParams{
		CustomerID:  r.CustomerID,
		AssignedBy:  r.AssignedBy,
		ActivatesAt: r.ActivatesAt,
		ExpiresAt:   r.ExpiresAt,
		Note:        r.Note,
		PlanTag:     r.PlanTag,
		HasAddOn:    r.HasAddOn,
	}
}

// --- Assign Slot ---

type AssignSlotInput struct {
	Body AssignmentRequest
}

type AssignSlotOutput struct {
	Body SlotResponse
}

// --- Assign Slots (batch) ---

type AssignSlotsInput struct {
	Body struct {
		AssignmentRequest
		Quantity int `json:"quantity" minimum:"1" maximum:"50" doc:"Number of slots to assign"`
	}
}

type AssignSlotsOutput struct {
	Body []SlotResponse
}

// --- Release Customer Slots ---

type ReleaseSlotsInput struct {
	CustomerID string `path:"customerId" doc:"Customer ID"`
}

type ReleaseSlotsOutput struct {
	Body struct {
		Released int `json:"released" doc:"Number of slots reclaimed"`
	}
}

// --- Free Slot Count ---

type FreeCountOutput struct {
	Body struct {
		Count int `json:"count" doc:"Number of slots eligible for assignment"`
	}
}

// --- Get Slot ---

type GetSlotInput struct {
	ID string `path:"id" doc:"Slot ID"`
}

type GetSlotOutput struct {
	Body SlotResponse
}

// --- List Slots ---

type ListSlotsInput struct {
	State      string `query:"state" required:"false" enum:"free,assigned,inactive,suspended,reclaimed" doc:"Filter by state"`
	CustomerID string `query:"customer_id" required:"false" doc:"Filter by holding customer"`
	Limit      int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset     int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListSlotsOutput struct {
	Body []SlotResponse
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Slot ID"`
	Body struct {
		Event string `json:"event" doc:"Lifecycle event to trigger" enum:"suspend,reactivate,deactivate,restore"`
	}
}

type TransitionOutput struct {
	Body SlotResponse
}

// Register adds all slot API routes to the Huma API.
func Register(api huma.API, svc *app.SlotService) {
	huma.Register(api, huma.Operation{
		OperationID: "assign-slot",
		Method:      http.MethodPost,
		Path:        "/api/v1/slots/assignments",
		Summary:     "Assign a slot to a customer",
		Tags:        []string{"Slots"},
	}, func(ctx context.Context, input *AssignSlotInput) (*AssignSlotOutput, error) {
		slot, err := svc.AssignSlot(ctx, input.Body.toParams())
		if err != nil {
			return nil, toHumaError(err)
		}
		return &AssignSlotOutput{Body: toSlotResponse(slot)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-slots",
		Method:      http.MethodPost,
		Path:        "/api/v1/slots/assignments/batch",
		Summary:     "Assign multiple slots to a customer",
		Tags:        []string{"Slots"},
	}, func(ctx context.Context, input *AssignSlotsInput) (*AssignSlotsOutput, error) {
		slots, err := svc.AssignSlots(ctx, input.Body.toParams(), input.Body.Quantity)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]SlotResponse, len(slots))
		for i, s := range slots {
			resp[i] = toSlotResponse(s)
		}
		return &AssignSlotsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "release-customer-slots",
		Method:      http.MethodDelete,
		Path:        "/api/v1/customers/{customerId}/slots",
		Summary:     "Reclaim every slot held by a customer",
		Tags:        []string{"Slots"},
	}, func(ctx context.Context, input *ReleaseSlotsInput) (*ReleaseSlotsOutput, error) {
		released, err := svc.ReleaseSlotsForCustomer(ctx, input.CustomerID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ReleaseSlotsOutput{}
		out.Body.Released = released
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "free-slot-count",
		Method:      http.MethodGet,
		Path:        "/api/v1/slots/free-count",
		Summary:     "Count slots eligible for assignment",
		Tags:        []string{"Slots"},
	}, func(ctx context.Context, _ *struct{}) (*FreeCountOutput, error) {
		count, err := svc.FreeSlotCount(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &FreeCountOutput{}
		out.Body.Count = count
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-slot",
		Method:      http.MethodGet,
		Path:        "/api/v1/slots/{id}",
		Summary:     "Get a slot by ID",
		Tags:        []string{"Slots"},
	}, func(ctx context.Context, input *GetSlotInput) (*GetSlotOutput, error) {
		slot, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetSlotOutput{Body: toSlotResponse(slot)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-slots",
		Method:      http.MethodGet,
		Path:        "/api/v1/slots",
		Summary:     "List slots",
		Tags:        []string{"Slots"},
	}, func(ctx context.Context, input *ListSlotsInput) (*ListSlotsOutput, error) {
		filter := domain.ListFilter{
			CustomerID: input.CustomerID,
			Limit:      input.Limit,
			Offset:     input.Offset,
		}
		if input.State != "" {
			s := domain.State(input.State)
			filter.State = &s
		}

		slots, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]SlotResponse, len(slots))
		for i, s := range slots {
			resp[i] = toSlotResponse(s)
		}
		return &ListSlotsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-slot",
		Method:      http.MethodPost,
		Path:        "/api/v1/slots/{id}/events",
		Summary:     "Trigger a lifecycle event",
		Tags:        []string{"Slots"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		slot, err := svc.Transition(ctx, input.ID, domain.Event(input.Body.Event))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOutput{Body: toSlotResponse(slot)}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrSlotNotFound) {
		return huma.Error404NotFound("slot not found")
	}

	if errors.Is(err, domain.ErrPoolUnavailable) {
		return huma.Error503ServiceUnavailable("slot pool is unavailable")
	}

	var allocErr *domain.AllocationError
	if errors.As(err, &allocErr) {
		return huma.Error503ServiceUnavailable(allocErr.Error())
	}

	var labelErr *domain.LabelConflictError
	if errors.As(err, &labelErr) {
		return huma.Error409Conflict(labelErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
