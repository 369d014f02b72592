package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/server/middleware"
	"github.com/gosuda/adbroker/internal/workflow"
)

type CreateContextInput struct {
	Body struct {
		Message string `json:"message,omitempty" maxLength:"10000" doc:"Optional opening message"`
	}
}

type CreateContextOutput struct {
	Body *domain.Context
}

type GetContextInput struct {
	ID uuid.UUID `path:"id" doc:"Context ID"`
}

type GetContextOutput struct {
	Body *domain.Context
}

type ListContextsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListContextsOutput struct {
	Body []*domain.Context
}

type AddMessageInput struct {
	ID   uuid.UUID `path:"id" doc:"Context ID"`
	Body struct {
		Role    string `json:"role" enum:"user,agent,system" doc:"Message author role"`
		Content string `json:"content" minLength:"1" maxLength:"10000" doc:"Message content"`
	}
}

type AddMessageOutput struct {
	Body *domain.Context
}

type GetContextStatusInput struct {
	ID uuid.UUID `path:"id" doc:"Context ID"`
}

type GetContextStatusOutput struct {
	Body *workflow.ContextStatus
}

func RegisterContextRoutes(api huma.API, store DataStore, orch Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "create-context",
		Method:      http.MethodPost,
		Path:        "/contexts",
		Summary:     "Open a new workflow context",
		Tags:        []string{"Contexts"},
	}, func(ctx context.Context, input *CreateContextInput) (*CreateContextOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		principalID, ok := middleware.PrincipalIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing principal context")
		}

		var history []domain.ConversationEntry
		if input.Body.Message != "" {
			history = []domain.ConversationEntry{{
				Role:      "user",
				Content:   input.Body.Message,
				CreatedAt: time.Now().UTC(),
			}}
		}

		c, err := orch.CreateContext(ctx, tenantID, principalID, history)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create context", err)
		}

		return &CreateContextOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-context",
		Method:      http.MethodGet,
		Path:        "/contexts/{id}",
		Summary:     "Get a context with its conversation history",
		Tags:        []string{"Contexts"},
	}, func(ctx context.Context, input *GetContextInput) (*GetContextOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		c, err := store.Contexts().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("context not found")
			}
			return nil, huma.Error500InternalServerError("failed to get context", err)
		}

		return &GetContextOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contexts",
		Method:      http.MethodGet,
		Path:        "/contexts",
		Summary:     "List the caller's contexts",
		Tags:        []string{"Contexts"},
	}, func(ctx context.Context, input *ListContextsInput) (*ListContextsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		principalID, ok := middleware.PrincipalIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing principal context")
		}

		contexts, err := store.Contexts().ListByPrincipal(ctx, tenantID, principalID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list contexts", err)
		}

		return &ListContextsOutput{Body: contexts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-context-message",
		Method:      http.MethodPost,
		Path:        "/contexts/{id}/messages",
		Summary:     "Append a message to a context's history",
		Tags:        []string{"Contexts"},
	}, func(ctx context.Context, input *AddMessageInput) (*AddMessageOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		err := orch.AddMessage(ctx, tenantID, input.ID, input.Body.Role, input.Body.Content)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("context not found")
			}
			return nil, huma.Error500InternalServerError("failed to append message", err)
		}

		c, err := store.Contexts().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to reload context", err)
		}

		return &AddMessageOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-context-status",
		Method:      http.MethodGet,
		Path:        "/contexts/{id}/status",
		Summary:     "Get the aggregate workflow status of a context",
		Tags:        []string{"Contexts"},
	}, func(ctx context.Context, input *GetContextStatusInput) (*GetContextStatusOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		status, err := orch.GetContextStatus(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("context not found")
			}
			return nil, huma.Error500InternalServerError("failed to compute context status", err)
		}

		return &GetContextStatusOutput{Body: status}, nil
	})
}
