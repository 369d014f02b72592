package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/adbroker/internal/adserver"
	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/reconcile"
	"github.com/gosuda/adbroker/internal/server/middleware"
	"github.com/gosuda/adbroker/internal/workflow"
)

type CreateMediaBuyInput struct {
	Body struct {
		ContextID    uuid.UUID `json:"context_id" doc:"Workflow context this buy belongs to"`
		OrderName    string    `json:"order_name" minLength:"1" maxLength:"255" doc:"Order name shown in the ad server"`
		BudgetMicros int64     `json:"budget_micros" minimum:"1" doc:"Total budget in micros"`
		Currency     string    `json:"currency" minLength:"3" maxLength:"3" doc:"ISO 4217 currency code"`
		FlightStart  time.Time `json:"flight_start" doc:"Flight start"`
		FlightEnd    time.Time `json:"flight_end" doc:"Flight end"`
	}
}

type CreateMediaBuyOutput struct {
	Body struct {
		MediaBuy *domain.MediaBuy `json:"media_buy"`
		StepID   uuid.UUID        `json:"step_id" doc:"Workflow step tracking activation"`
	}
}

type GetMediaBuyInput struct {
	ID uuid.UUID `path:"id" doc:"Media buy ID"`
}

type GetMediaBuyOutput struct {
	Body *domain.MediaBuy
}

type ListMediaBuysInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListMediaBuysOutput struct {
	Body []*domain.MediaBuy
}

type TransitionMediaBuyInput struct {
	ID   uuid.UUID `path:"id" doc:"Media buy ID"`
	Body struct {
		Status string `json:"status" enum:"active,paused" doc:"Target status"`
	}
}

type TransitionMediaBuyOutput struct {
	Body *domain.MediaBuy
}

type GetActivationInput struct {
	ID uuid.UUID `path:"id" doc:"Media buy ID"`
}

type GetActivationOutput struct {
	Body *reconcile.Job
}

func RegisterMediaBuyRoutes(api huma.API, store DataStore, orch Orchestrator, poller Reconciler, adapters AdapterProvider) {
	huma.Register(api, huma.Operation{
		OperationID: "create-media-buy",
		Method:      http.MethodPost,
		Path:        "/media-buys",
		Summary:     "Create a media buy and submit it to the ad server",
		Description: "Places the order with the tenant's ad server, opens a workflow step tracking activation and starts polling until the ad server approves or rejects the order.",
		Tags:        []string{"MediaBuys"},
	}, func(ctx context.Context, input *CreateMediaBuyInput) (*CreateMediaBuyOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		principalID, ok := middleware.PrincipalIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing principal context")
		}

		if !input.Body.FlightEnd.After(input.Body.FlightStart) {
			return nil, huma.Error400BadRequest("flight_end must be after flight_start")
		}

		if _, err := store.Contexts().GetByID(ctx, tenantID, input.Body.ContextID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("context not found")
			}
			return nil, huma.Error500InternalServerError("failed to validate context", err)
		}

		tenant, err := store.Tenants().GetByID(ctx, tenantID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load tenant", err)
		}
		principal, err := store.Principals().GetByID(ctx, tenantID, principalID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load principal", err)
		}

		adapter, err := adapters.Create(tenant.AdServerType, tenant.Settings)
		if err != nil {
			if errors.Is(err, adserver.ErrUnknownAdServer) {
				return nil, huma.Error409Conflict("tenant has no usable ad server configured")
			}
			return nil, huma.Error500InternalServerError("failed to build ad server adapter", err)
		}

		now := time.Now().UTC()
		buy := &domain.MediaBuy{
			ID:           uuid.New(),
			TenantID:     tenantID,
			PrincipalID:  principalID,
			ContextID:    input.Body.ContextID,
			OrderName:    input.Body.OrderName,
			BudgetMicros: input.Body.BudgetMicros,
			Currency:     input.Body.Currency,
			FlightStart:  input.Body.FlightStart,
			FlightEnd:    input.Body.FlightEnd,
			Status:       domain.MediaBuyStatusPendingActivation,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.MediaBuys().Create(ctx, buy); err != nil {
			return nil, huma.Error500InternalServerError("failed to create media buy", err)
		}

		step, err := orch.CreateStep(ctx, workflow.CreateStepInput{
			ContextID: input.Body.ContextID,
			TenantID:  tenantID,
			StepType:  domain.StepTypeToolCall,
			Owner:     domain.OwnerSystem,
			Operation: "create_media_buy",
			Request: map[string]any{
				"media_buy_id":  buy.ID.String(),
				"order_name":    buy.OrderName,
				"budget_micros": buy.BudgetMicros,
				"currency":      buy.Currency,
			},
			ObjectMappings: []workflow.ObjectRef{{
				ObjectType: "media_buy",
				ObjectID:   buy.ID.String(),
				Action:     "create",
			}},
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to open workflow step", err)
		}

		orderID, err := adapter.CreateOrder(ctx, adserver.OrderRequest{
			OrderName:    buy.OrderName,
			AdvertiserID: principal.AdvertiserID,
			BudgetMicros: buy.BudgetMicros,
			Currency:     buy.Currency,
		})
		if err != nil {
			failed := domain.StepFailed
			msg := err.Error()
			if _, uerr := orch.UpdateStep(ctx, tenantID, step.ID, workflow.UpdateStepInput{
				Status:       &failed,
				ErrorMessage: &msg,
			}); uerr != nil {
				log.Error().Err(uerr).Str("step_id", step.ID.String()).Msg("mediabuys: fail step after order rejection")
			}
			if serr := store.MediaBuys().UpdateStatus(ctx, tenantID, buy.ID, domain.MediaBuyStatusFailed); serr != nil {
				log.Error().Err(serr).Str("media_buy_id", buy.ID.String()).Msg("mediabuys: mark media buy failed")
			}
			return nil, huma.Error502BadGateway("ad server rejected the order", err)
		}

		if err := store.MediaBuys().SetAdServerOrderID(ctx, tenantID, buy.ID, orderID); err != nil {
			return nil, huma.Error500InternalServerError("failed to record ad server order id", err)
		}
		buy.AdServerOrderID = orderID

		inProgress := domain.StepInProgress
		if _, err := orch.UpdateStep(ctx, tenantID, step.ID, workflow.UpdateStepInput{
			Status:   &inProgress,
			Response: map[string]any{"ad_server_order_id": orderID},
		}); err != nil {
			return nil, huma.Error500InternalServerError("failed to advance workflow step", err)
		}

		if _, err := poller.Start(ctx, reconcile.StartInput{
			TenantID:    tenantID,
			PrincipalID: principalID,
			ResourceID:  orderID,
			StepID:      step.ID,
			Adapter:     adapter,
			OnResult: func(jobCtx context.Context, jobErr error) {
				status := domain.MediaBuyStatusActive
				if jobErr != nil {
					status = domain.MediaBuyStatusFailed
				}
				if err := store.MediaBuys().UpdateStatus(jobCtx, tenantID, buy.ID, status); err != nil {
					log.Error().Err(err).Str("media_buy_id", buy.ID.String()).Msg("mediabuys: update status after activation")
				}
			},
		}); err != nil {
			if errors.Is(err, reconcile.ErrAlreadyRunning) {
				return nil, huma.Error409Conflict("activation already being tracked for this order")
			}
			return nil, huma.Error500InternalServerError("failed to start activation polling", err)
		}

		out := &CreateMediaBuyOutput{}
		out.Body.MediaBuy = buy
		out.Body.StepID = step.ID
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-media-buy",
		Method:      http.MethodGet,
		Path:        "/media-buys/{id}",
		Summary:     "Get a media buy by ID",
		Tags:        []string{"MediaBuys"},
	}, func(ctx context.Context, input *GetMediaBuyInput) (*GetMediaBuyOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		buy, err := store.MediaBuys().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("media buy not found")
			}
			return nil, huma.Error500InternalServerError("failed to get media buy", err)
		}

		return &GetMediaBuyOutput{Body: buy}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-media-buys",
		Method:      http.MethodGet,
		Path:        "/media-buys",
		Summary:     "List the caller's media buys",
		Tags:        []string{"MediaBuys"},
	}, func(ctx context.Context, input *ListMediaBuysInput) (*ListMediaBuysOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		principalID, ok := middleware.PrincipalIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing principal context")
		}

		buys, err := store.MediaBuys().ListByPrincipal(ctx, tenantID, principalID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list media buys", err)
		}

		return &ListMediaBuysOutput{Body: buys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-media-buy-status",
		Method:      http.MethodPatch,
		Path:        "/media-buys/{id}/status",
		Summary:     "Pause or resume an active media buy",
		Tags:        []string{"MediaBuys"},
	}, func(ctx context.Context, input *TransitionMediaBuyInput) (*TransitionMediaBuyOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		buy, err := store.MediaBuys().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("media buy not found")
			}
			return nil, huma.Error500InternalServerError("failed to get media buy", err)
		}

		target := domain.MediaBuyStatus(input.Body.Status)
		switch {
		case buy.Status == domain.MediaBuyStatusActive && target == domain.MediaBuyStatusPaused:
		case buy.Status == domain.MediaBuyStatusPaused && target == domain.MediaBuyStatusActive:
		default:
			return nil, huma.Error400BadRequest("invalid status transition from " + string(buy.Status) + " to " + string(target))
		}

		if err := store.MediaBuys().UpdateStatus(ctx, tenantID, input.ID, target); err != nil {
			return nil, huma.Error500InternalServerError("failed to update media buy status", err)
		}

		buy.Status = target
		buy.UpdatedAt = time.Now().UTC()
		return &TransitionMediaBuyOutput{Body: buy}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-media-buy-activation",
		Method:      http.MethodGet,
		Path:        "/media-buys/{id}/activation",
		Summary:     "Get the in-flight activation job for a media buy",
		Tags:        []string{"MediaBuys"},
	}, func(ctx context.Context, input *GetActivationInput) (*GetActivationOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		buy, err := store.MediaBuys().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("media buy not found")
			}
			return nil, huma.Error500InternalServerError("failed to get media buy", err)
		}

		job, ok := poller.Snapshot(buy.AdServerOrderID)
		if !ok {
			return nil, huma.Error404NotFound("no activation job running for this media buy")
		}

		return &GetActivationOutput{Body: &job}, nil
	})
}
