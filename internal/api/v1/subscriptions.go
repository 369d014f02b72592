package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/server/middleware"
)

type CreateSubscriptionInput struct {
	Body struct {
		URL        string `json:"url" minLength:"1" maxLength:"2048" format:"uri" doc:"Webhook endpoint URL"`
		AuthType   string `json:"auth_type,omitempty" enum:"none,bearer,signed" doc:"Webhook auth scheme (defaults to none)"`
		AuthToken  string `json:"auth_token,omitempty" maxLength:"512" doc:"Bearer token or signing secret"`
		ObjectType string `json:"object_type,omitempty" maxLength:"64" doc:"Restrict to one object type (empty = all)"`
	}
}

type CreateSubscriptionOutput struct {
	Body *domain.PushSubscription
}

type ListSubscriptionsOutput struct {
	Body []*domain.PushSubscription
}

type DeleteSubscriptionInput struct {
	ID uuid.UUID `path:"id" doc:"Subscription ID"`
}

type ListDeliveriesInput struct {
	ObjectType string `path:"objectType" doc:"Business object type"`
	ObjectID   string `path:"objectID" doc:"Business object ID"`
	Limit      int    `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Max results"`
}

type ListDeliveriesOutput struct {
	Body []*domain.DeliveryLogEntry
}

func RegisterSubscriptionRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-subscription",
		Method:      http.MethodPost,
		Path:        "/subscriptions",
		Summary:     "Register a webhook subscription",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *CreateSubscriptionInput) (*CreateSubscriptionOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		principalID, ok := middleware.PrincipalIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing principal context")
		}

		if !strings.HasPrefix(input.Body.URL, "https://") && !strings.HasPrefix(input.Body.URL, "http://") {
			return nil, huma.Error400BadRequest("url must be http or https")
		}

		authType := domain.WebhookAuthType(input.Body.AuthType)
		if authType == "" {
			authType = domain.WebhookAuthNone
		}
		if authType != domain.WebhookAuthNone && input.Body.AuthToken == "" {
			return nil, huma.Error400BadRequest("auth_token is required for auth_type " + string(authType))
		}

		sub := &domain.PushSubscription{
			ID:          uuid.New(),
			TenantID:    tenantID,
			PrincipalID: principalID,
			URL:         input.Body.URL,
			AuthType:    authType,
			AuthToken:   input.Body.AuthToken,
			ObjectType:  input.Body.ObjectType,
			Active:      true,
			CreatedAt:   time.Now().UTC(),
		}

		if err := store.PushSubscriptions().Create(ctx, sub); err != nil {
			return nil, huma.Error500InternalServerError("failed to create subscription", err)
		}

		return &CreateSubscriptionOutput{Body: sub}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subscriptions",
		Method:      http.MethodGet,
		Path:        "/subscriptions",
		Summary:     "List the caller's webhook subscriptions",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, _ *struct{}) (*ListSubscriptionsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		principalID, ok := middleware.PrincipalIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing principal context")
		}

		subs, err := store.PushSubscriptions().ListByPrincipal(ctx, tenantID, principalID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list subscriptions", err)
		}

		return &ListSubscriptionsOutput{Body: subs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-subscription",
		Method:      http.MethodDelete,
		Path:        "/subscriptions/{id}",
		Summary:     "Delete a webhook subscription",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *DeleteSubscriptionInput) (*struct{}, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		if err := store.PushSubscriptions().Delete(ctx, tenantID, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("subscription not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete subscription", err)
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-object-deliveries",
		Method:      http.MethodGet,
		Path:        "/objects/{objectType}/{objectID}/deliveries",
		Summary:     "List webhook delivery history for a business object",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *ListDeliveriesInput) (*ListDeliveriesOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		entries, err := store.DeliveryLogs().ListByObject(ctx, tenantID, input.ObjectType, input.ObjectID, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list deliveries", err)
		}

		return &ListDeliveriesOutput{Body: entries}, nil
	})
}
