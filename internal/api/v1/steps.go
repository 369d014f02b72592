package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/server/middleware"
	"github.com/gosuda/adbroker/internal/workflow"
)

type ObjectRefBody struct {
	ObjectType string `json:"object_type" minLength:"1" maxLength:"64" doc:"Business object type, e.g. media_buy"`
	ObjectID   string `json:"object_id" minLength:"1" maxLength:"255" doc:"Business object ID"`
	Action     string `json:"action" minLength:"1" maxLength:"64" doc:"What the step does to the object, e.g. create"`
}

type CreateStepInput struct {
	Body struct {
		ContextID uuid.UUID       `json:"context_id" doc:"Parent context ID"`
		StepType  string          `json:"step_type" enum:"tool_call,approval,notification" doc:"Step type"`
		Owner     string          `json:"owner" enum:"principal,publisher,system" doc:"Who must act next"`
		Status    string          `json:"status,omitempty" enum:"pending,requires_approval" doc:"Initial status (defaults to pending)"`
		Operation string          `json:"operation,omitempty" maxLength:"128" doc:"Originating operation name"`
		Request   map[string]any  `json:"request,omitempty" doc:"Operation request payload"`
		Assignee  string          `json:"assignee,omitempty" maxLength:"255" doc:"Specific assignee"`
		Objects   []ObjectRefBody `json:"objects,omitempty" doc:"Business objects this step acts on"`
		Comment   string          `json:"comment,omitempty" maxLength:"2000" doc:"Initial comment"`
	}
}

type CreateStepOutput struct {
	Body *domain.WorkflowStep
}

type GetStepInput struct {
	ID uuid.UUID `path:"id" doc:"Step ID"`
}

type GetStepOutput struct {
	Body *domain.WorkflowStep
}

type UpdateStepInput struct {
	ID   uuid.UUID `path:"id" doc:"Step ID"`
	Body struct {
		Status             *string        `json:"status,omitempty" enum:"in_progress,requires_approval,completed,failed" doc:"Target status"`
		Response           map[string]any `json:"response,omitempty" doc:"Operation response payload"`
		ErrorMessage       *string        `json:"error_message,omitempty" maxLength:"2000" doc:"Failure reason"`
		TransactionDetails map[string]any `json:"transaction_details,omitempty" doc:"Execution bookkeeping"`
		Comment            string         `json:"comment,omitempty" maxLength:"2000" doc:"Comment to append"`
		CommentUser        string         `json:"comment_user,omitempty" maxLength:"255" doc:"Comment author"`
	}
}

type UpdateStepOutput struct {
	Body *domain.WorkflowStep
}

type ListPendingStepsInput struct {
	Owner    string `query:"owner" maxLength:"32" doc:"Filter by step owner (principal, publisher or system)"`
	Assignee string `query:"assignee" maxLength:"255" doc:"Filter by assignee"`
}

type ListPendingStepsOutput struct {
	Body []*domain.WorkflowStep
}

type ListContextStepsInput struct {
	ContextID uuid.UUID `path:"id" doc:"Context ID"`
}

type ListContextStepsOutput struct {
	Body []*domain.WorkflowStep
}

type LinkObjectInput struct {
	ID   uuid.UUID `path:"id" doc:"Step ID"`
	Body ObjectRefBody
}

type LinkObjectOutput struct {
	Body *domain.ObjectMapping
}

type ObjectLifecycleInput struct {
	ObjectType string `path:"objectType" doc:"Business object type"`
	ObjectID   string `path:"objectID" doc:"Business object ID"`
}

type ObjectLifecycleOutput struct {
	Body []*domain.LifecycleEntry
}

func RegisterStepRoutes(api huma.API, store DataStore, orch Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "create-step",
		Method:      http.MethodPost,
		Path:        "/steps",
		Summary:     "Open a workflow step",
		Tags:        []string{"Steps"},
	}, func(ctx context.Context, input *CreateStepInput) (*CreateStepOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		if _, err := store.Contexts().GetByID(ctx, tenantID, input.Body.ContextID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("context not found")
			}
			return nil, huma.Error500InternalServerError("failed to validate context", err)
		}

		in := workflow.CreateStepInput{
			ContextID: input.Body.ContextID,
			TenantID:  tenantID,
			StepType:  domain.StepType(input.Body.StepType),
			Owner:     domain.StepOwner(input.Body.Owner),
			Status:    domain.StepStatus(input.Body.Status),
			Operation: input.Body.Operation,
			Request:   input.Body.Request,
			Assignee:  input.Body.Assignee,
		}
		for _, ref := range input.Body.Objects {
			in.ObjectMappings = append(in.ObjectMappings, workflow.ObjectRef{
				ObjectType: ref.ObjectType,
				ObjectID:   ref.ObjectID,
				Action:     ref.Action,
			})
		}
		if input.Body.Comment != "" {
			in.InitialComment = &domain.StepComment{User: "system", Text: input.Body.Comment}
		}

		step, err := orch.CreateStep(ctx, in)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create step", err)
		}

		return &CreateStepOutput{Body: step}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-step",
		Method:      http.MethodGet,
		Path:        "/steps/{id}",
		Summary:     "Get a workflow step by ID",
		Tags:        []string{"Steps"},
	}, func(ctx context.Context, input *GetStepInput) (*GetStepOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		step, err := store.WorkflowSteps().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("step not found")
			}
			return nil, huma.Error500InternalServerError("failed to get step", err)
		}

		return &GetStepOutput{Body: step}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-step",
		Method:      http.MethodPatch,
		Path:        "/steps/{id}",
		Summary:     "Update a workflow step",
		Description: "Applies a partial update. Status transitions are validated; terminal steps reject further transitions.",
		Tags:        []string{"Steps"},
	}, func(ctx context.Context, input *UpdateStepInput) (*UpdateStepOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		in := workflow.UpdateStepInput{
			Response:           input.Body.Response,
			ErrorMessage:       input.Body.ErrorMessage,
			TransactionDetails: input.Body.TransactionDetails,
		}
		if input.Body.Status != nil {
			status := domain.StepStatus(*input.Body.Status)
			in.Status = &status
		}
		if input.Body.Comment != "" {
			user := input.Body.CommentUser
			if user == "" {
				user = "system"
			}
			in.Comment = &domain.StepComment{User: user, Text: input.Body.Comment}
		}

		step, err := orch.UpdateStep(ctx, tenantID, input.ID, in)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("step not found")
			}
			if errors.Is(err, domain.ErrInvalidTransition) {
				return nil, huma.Error400BadRequest(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to update step", err)
		}

		return &UpdateStepOutput{Body: step}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pending-steps",
		Method:      http.MethodGet,
		Path:        "/steps",
		Summary:     "List steps awaiting action",
		Description: "Returns steps in pending or requires_approval status, the tenant's work queue.",
		Tags:        []string{"Steps"},
	}, func(ctx context.Context, input *ListPendingStepsInput) (*ListPendingStepsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		steps, err := orch.PendingSteps(ctx, tenantID, domain.PendingStepFilter{
			Owner:    domain.StepOwner(input.Owner),
			Assignee: input.Assignee,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list pending steps", err)
		}

		return &ListPendingStepsOutput{Body: steps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-context-steps",
		Method:      http.MethodGet,
		Path:        "/contexts/{id}/steps",
		Summary:     "List all steps in a context",
		Tags:        []string{"Steps"},
	}, func(ctx context.Context, input *ListContextStepsInput) (*ListContextStepsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		steps, err := store.WorkflowSteps().ListByContext(ctx, tenantID, input.ContextID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list steps", err)
		}

		return &ListContextStepsOutput{Body: steps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "link-step-object",
		Method:      http.MethodPost,
		Path:        "/steps/{id}/objects",
		Summary:     "Link a business object to a step",
		Tags:        []string{"Steps"},
	}, func(ctx context.Context, input *LinkObjectInput) (*LinkObjectOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		m, err := orch.LinkObject(ctx, tenantID, input.ID, workflow.ObjectRef{
			ObjectType: input.Body.ObjectType,
			ObjectID:   input.Body.ObjectID,
			Action:     input.Body.Action,
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("step not found")
			}
			return nil, huma.Error500InternalServerError("failed to link object", err)
		}

		return &LinkObjectOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-object-lifecycle",
		Method:      http.MethodGet,
		Path:        "/objects/{objectType}/{objectID}/lifecycle",
		Summary:     "Get the workflow audit trail of a business object",
		Tags:        []string{"Objects"},
	}, func(ctx context.Context, input *ObjectLifecycleInput) (*ObjectLifecycleOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		entries, err := orch.ObjectLifecycle(ctx, tenantID, input.ObjectType, input.ObjectID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load object lifecycle", err)
		}

		return &ObjectLifecycleOutput{Body: entries}, nil
	})
}
