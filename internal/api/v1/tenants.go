package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/domain"
)

type CreateTenantInput struct {
	Body struct {
		Name         string         `json:"name" minLength:"1" maxLength:"255" doc:"Tenant name"`
		Slug         string         `json:"slug" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-safe slug (lowercase alphanumeric with hyphens)"`
		AdServerType string         `json:"ad_server_type" enum:"gam,kevel,triton,mock" doc:"Which ad server this tenant sells on"`
		Settings     map[string]any `json:"settings,omitempty" doc:"Ad server connection settings"`
	}
}

type CreateTenantOutput struct {
	Body *domain.Tenant
}

type GetTenantInput struct {
	ID uuid.UUID `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body *domain.Tenant
}

type ListTenantsOutput struct {
	Body []*domain.Tenant
}

type CreatePrincipalInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
	Body     struct {
		Name         string `json:"name" minLength:"1" maxLength:"255" doc:"Principal name"`
		AdvertiserID string `json:"advertiser_id,omitempty" maxLength:"255" doc:"The buyer's advertiser id in the tenant's ad server"`
	}
}

type CreatePrincipalOutput struct {
	Body *domain.Principal
}

type ListPrincipalsInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
}

type ListPrincipalsOutput struct {
	Body []*domain.Principal
}

type CreateAPIKeyInput struct {
	TenantID    uuid.UUID `path:"tenantID" doc:"Tenant ID"`
	PrincipalID uuid.UUID `path:"principalID" doc:"Principal ID"`
	Body        struct {
		Name      string     `json:"name" minLength:"1" maxLength:"255" doc:"Key label"`
		ExpiresAt *time.Time `json:"expires_at,omitempty" doc:"Optional expiry"`
	}
}

type CreateAPIKeyOutput struct {
	Body struct {
		Key    string         `json:"key" doc:"Raw API key, shown only once"`
		APIKey *domain.APIKey `json:"api_key"`
	}
}

// RegisterAdminRoutes wires tenant and principal provisioning. These
// routes are mounted on the admin surface, not the buyer-facing API.
func RegisterAdminRoutes(api huma.API, store DataStore, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/tenants",
		Summary:     "Provision a new tenant",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		now := time.Now().UTC()
		t := &domain.Tenant{
			ID:           uuid.New(),
			Name:         input.Body.Name,
			Slug:         input.Body.Slug,
			AdServerType: input.Body.AdServerType,
			Settings:     input.Body.Settings,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := store.Tenants().Create(ctx, t); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("slug already in use")
			}
			return nil, huma.Error500InternalServerError("failed to create tenant", err)
		}

		return &CreateTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		t, err := store.Tenants().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tenant not found")
			}
			return nil, huma.Error500InternalServerError("failed to get tenant", err)
		}

		return &GetTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List all tenants",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, _ *struct{}) (*ListTenantsOutput, error) {
		tenants, err := store.Tenants().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tenants", err)
		}

		return &ListTenantsOutput{Body: tenants}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-principal",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenantID}/principals",
		Summary:     "Provision a buyer principal for a tenant",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *CreatePrincipalInput) (*CreatePrincipalOutput, error) {
		if _, err := store.Tenants().GetByID(ctx, input.TenantID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tenant not found")
			}
			return nil, huma.Error500InternalServerError("failed to look up tenant", err)
		}

		now := time.Now().UTC()
		p := &domain.Principal{
			ID:           uuid.New(),
			TenantID:     input.TenantID,
			Name:         input.Body.Name,
			AdvertiserID: input.Body.AdvertiserID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := store.Principals().Create(ctx, p); err != nil {
			return nil, huma.Error500InternalServerError("failed to create principal", err)
		}

		return &CreatePrincipalOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-principals",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenantID}/principals",
		Summary:     "List a tenant's principals",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *ListPrincipalsInput) (*ListPrincipalsOutput, error) {
		principals, err := store.Principals().List(ctx, input.TenantID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list principals", err)
		}

		return &ListPrincipalsOutput{Body: principals}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-api-key",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenantID}/principals/{principalID}/keys",
		Summary:     "Issue an API key for a principal",
		Description: "The raw key appears once in the response and is never retrievable again.",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *CreateAPIKeyInput) (*CreateAPIKeyOutput, error) {
		if _, err := store.Principals().GetByID(ctx, input.TenantID, input.PrincipalID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("principal not found")
			}
			return nil, huma.Error500InternalServerError("failed to look up principal", err)
		}

		raw, key, err := authSvc.GenerateAPIKey(ctx, input.TenantID, input.PrincipalID, input.Body.Name, input.Body.ExpiresAt)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to generate API key", err)
		}

		key.KeyHash = ""

		out := &CreateAPIKeyOutput{}
		out.Body.Key = raw
		out.Body.APIKey = key
		return out, nil
	})
}
