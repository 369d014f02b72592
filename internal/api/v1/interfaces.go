package v1

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/adserver"
	"github.com/gosuda/adbroker/internal/auth"
	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/reconcile"
	"github.com/gosuda/adbroker/internal/workflow"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tenants() domain.TenantRepository
	Principals() domain.PrincipalRepository
	Contexts() domain.ContextRepository
	WorkflowSteps() domain.WorkflowStepRepository
	ObjectMappings() domain.ObjectMappingRepository
	PushSubscriptions() domain.PushSubscriptionRepository
	DeliveryLogs() domain.DeliveryLogRepository
	MediaBuys() domain.MediaBuyRepository
}

// Orchestrator abstracts workflow operations for handler testing.
// *workflow.Orchestrator satisfies this interface.
type Orchestrator interface {
	CreateContext(ctx context.Context, tenantID, principalID uuid.UUID, initialHistory []domain.ConversationEntry) (*domain.Context, error)
	AddMessage(ctx context.Context, tenantID, contextID uuid.UUID, role, content string) error
	CreateStep(ctx context.Context, in workflow.CreateStepInput) (*domain.WorkflowStep, error)
	UpdateStep(ctx context.Context, tenantID, stepID uuid.UUID, in workflow.UpdateStepInput) (*domain.WorkflowStep, error)
	PendingSteps(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error)
	ObjectLifecycle(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error)
	LinkObject(ctx context.Context, tenantID, stepID uuid.UUID, ref workflow.ObjectRef) (*domain.ObjectMapping, error)
	GetContextStatus(ctx context.Context, tenantID, contextID uuid.UUID) (*workflow.ContextStatus, error)
}

// AuthService abstracts credential operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	IssueTokens(tenantID, principalID uuid.UUID) (*auth.TokenPair, error)
	Refresh(refreshToken string) (*auth.TokenPair, error)
	GenerateAPIKey(ctx context.Context, tenantID, principalID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error)
	ValidateAPIKey(ctx context.Context, rawKey string) (*domain.Principal, *domain.APIKey, error)
}

// Reconciler abstracts the poller for handler testing.
// *reconcile.Poller satisfies this interface.
type Reconciler interface {
	Start(ctx context.Context, in reconcile.StartInput) (uuid.UUID, error)
	Snapshot(resourceID string) (reconcile.Job, bool)
}

// AdapterProvider builds ad server adapters from tenant settings.
// *adserver.Registry satisfies this interface.
type AdapterProvider interface {
	Create(adServerType string, settings map[string]any) (adserver.Adapter, error)
}
