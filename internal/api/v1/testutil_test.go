package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/adserver"
	"github.com/gosuda/adbroker/internal/auth"
	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/reconcile"
	"github.com/gosuda/adbroker/internal/server/middleware"
	"github.com/gosuda/adbroker/internal/workflow"
)

// ---------------------------------------------------------------------------
// Context helpers: inject tenant/principal into context for DoCtx
// ---------------------------------------------------------------------------

func tenantCtx(tenantID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyTenantID, tenantID)
	return ctx
}

func principalCtx(tenantID, principalID uuid.UUID) context.Context {
	ctx := tenantCtx(tenantID)
	ctx = context.WithValue(ctx, middleware.ContextKeyPrincipalID, principalID)
	return ctx
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tenants       domain.TenantRepository
	principals    domain.PrincipalRepository
	contexts      domain.ContextRepository
	steps         domain.WorkflowStepRepository
	mappings      domain.ObjectMappingRepository
	subscriptions domain.PushSubscriptionRepository
	deliveryLogs  domain.DeliveryLogRepository
	mediaBuys     domain.MediaBuyRepository
}

func (m *mockDataStore) Tenants() domain.TenantRepository                 { return m.tenants }
func (m *mockDataStore) Principals() domain.PrincipalRepository           { return m.principals }
func (m *mockDataStore) Contexts() domain.ContextRepository               { return m.contexts }
func (m *mockDataStore) WorkflowSteps() domain.WorkflowStepRepository     { return m.steps }
func (m *mockDataStore) ObjectMappings() domain.ObjectMappingRepository   { return m.mappings }
func (m *mockDataStore) PushSubscriptions() domain.PushSubscriptionRepository {
	return m.subscriptions
}
func (m *mockDataStore) DeliveryLogs() domain.DeliveryLogRepository { return m.deliveryLogs }
func (m *mockDataStore) MediaBuys() domain.MediaBuyRepository       { return m.mediaBuys }

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createFunc    func(ctx context.Context, t *domain.Tenant) error
	getByIDFunc   func(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	getBySlugFunc func(ctx context.Context, slug string) (*domain.Tenant, error)
	updateFunc    func(ctx context.Context, t *domain.Tenant) error
	listFunc      func(ctx context.Context) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	return m.createFunc(ctx, t)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTenantRepo) List(ctx context.Context) ([]*domain.Tenant, error) {
	return m.listFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock PrincipalRepository
// ---------------------------------------------------------------------------

type mockPrincipalRepo struct {
	createFunc              func(ctx context.Context, p *domain.Principal) error
	getByIDFunc             func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Principal, error)
	listFunc                func(ctx context.Context, tenantID uuid.UUID) ([]*domain.Principal, error)
	createAPIKeyFunc        func(ctx context.Context, k *domain.APIKey) error
	getAPIKeyByPrefixFunc   func(ctx context.Context, tenantID uuid.UUID, prefix string) (*domain.APIKey, error)
	updateAPIKeyLastUsedFun func(ctx context.Context, id uuid.UUID) error
}

func (m *mockPrincipalRepo) Create(ctx context.Context, p *domain.Principal) error {
	return m.createFunc(ctx, p)
}

func (m *mockPrincipalRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Principal, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockPrincipalRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Principal, error) {
	return m.listFunc(ctx, tenantID)
}

func (m *mockPrincipalRepo) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	return m.createAPIKeyFunc(ctx, k)
}

func (m *mockPrincipalRepo) GetAPIKeyByPrefix(ctx context.Context, tenantID uuid.UUID, prefix string) (*domain.APIKey, error) {
	return m.getAPIKeyByPrefixFunc(ctx, tenantID, prefix)
}

func (m *mockPrincipalRepo) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	return m.updateAPIKeyLastUsedFun(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock ContextRepository
// ---------------------------------------------------------------------------

type mockContextRepo struct {
	createFunc          func(ctx context.Context, c *domain.Context) error
	getByIDFunc         func(ctx context.Context, tenantID, id uuid.UUID) (*domain.Context, error)
	appendMessageFunc   func(ctx context.Context, tenantID, id uuid.UUID, entry domain.ConversationEntry) error
	listByPrincipalFunc func(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*domain.Context, error)
}

func (m *mockContextRepo) Create(ctx context.Context, c *domain.Context) error {
	return m.createFunc(ctx, c)
}

func (m *mockContextRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Context, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockContextRepo) AppendMessage(ctx context.Context, tenantID, id uuid.UUID, entry domain.ConversationEntry) error {
	return m.appendMessageFunc(ctx, tenantID, id, entry)
}

func (m *mockContextRepo) ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*domain.Context, error) {
	return m.listByPrincipalFunc(ctx, tenantID, principalID, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock WorkflowStepRepository
// ---------------------------------------------------------------------------

type mockStepRepo struct {
	createWithMappingsFunc func(ctx context.Context, s *domain.WorkflowStep, mappings []*domain.ObjectMapping) error
	getByIDFunc            func(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowStep, error)
	updateFunc             func(ctx context.Context, s *domain.WorkflowStep) error
	appendCommentFunc      func(ctx context.Context, tenantID, id uuid.UUID, c domain.StepComment) error
	listPendingFunc        func(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error)
	listByContextFunc      func(ctx context.Context, tenantID, contextID uuid.UUID) ([]*domain.WorkflowStep, error)
}

func (m *mockStepRepo) CreateWithMappings(ctx context.Context, s *domain.WorkflowStep, mappings []*domain.ObjectMapping) error {
	return m.createWithMappingsFunc(ctx, s, mappings)
}

func (m *mockStepRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowStep, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockStepRepo) Update(ctx context.Context, s *domain.WorkflowStep) error {
	return m.updateFunc(ctx, s)
}

func (m *mockStepRepo) AppendComment(ctx context.Context, tenantID, id uuid.UUID, c domain.StepComment) error {
	return m.appendCommentFunc(ctx, tenantID, id, c)
}

func (m *mockStepRepo) ListPending(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error) {
	return m.listPendingFunc(ctx, tenantID, filter)
}

func (m *mockStepRepo) ListByContext(ctx context.Context, tenantID, contextID uuid.UUID) ([]*domain.WorkflowStep, error) {
	return m.listByContextFunc(ctx, tenantID, contextID)
}

// ---------------------------------------------------------------------------
// Mock PushSubscriptionRepository
// ---------------------------------------------------------------------------

type mockSubscriptionRepo struct {
	createFunc          func(ctx context.Context, s *domain.PushSubscription) error
	deleteFunc          func(ctx context.Context, tenantID, id uuid.UUID) error
	listByPrincipalFunc func(ctx context.Context, tenantID, principalID uuid.UUID) ([]*domain.PushSubscription, error)
	listForObjectFunc   func(ctx context.Context, tenantID, principalID uuid.UUID, objectType string) ([]*domain.PushSubscription, error)
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, s *domain.PushSubscription) error {
	return m.createFunc(ctx, s)
}

func (m *mockSubscriptionRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.deleteFunc(ctx, tenantID, id)
}

func (m *mockSubscriptionRepo) ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) ([]*domain.PushSubscription, error) {
	return m.listByPrincipalFunc(ctx, tenantID, principalID)
}

func (m *mockSubscriptionRepo) ListForObject(ctx context.Context, tenantID, principalID uuid.UUID, objectType string) ([]*domain.PushSubscription, error) {
	return m.listForObjectFunc(ctx, tenantID, principalID, objectType)
}

// ---------------------------------------------------------------------------
// Mock DeliveryLogRepository
// ---------------------------------------------------------------------------

type mockDeliveryLogRepo struct {
	upsertFunc       func(ctx context.Context, e *domain.DeliveryLogEntry) error
	listByObjectFunc func(ctx context.Context, tenantID uuid.UUID, objectType, objectID string, limit int) ([]*domain.DeliveryLogEntry, error)
	nextSequenceFunc func(ctx context.Context, tenantID uuid.UUID, objectType, objectID, notificationType string) (int64, error)
}

func (m *mockDeliveryLogRepo) Upsert(ctx context.Context, e *domain.DeliveryLogEntry) error {
	return m.upsertFunc(ctx, e)
}

func (m *mockDeliveryLogRepo) ListByObject(ctx context.Context, tenantID uuid.UUID, objectType, objectID string, limit int) ([]*domain.DeliveryLogEntry, error) {
	return m.listByObjectFunc(ctx, tenantID, objectType, objectID, limit)
}

func (m *mockDeliveryLogRepo) NextSequence(ctx context.Context, tenantID uuid.UUID, objectType, objectID, notificationType string) (int64, error) {
	return m.nextSequenceFunc(ctx, tenantID, objectType, objectID, notificationType)
}

// ---------------------------------------------------------------------------
// Mock MediaBuyRepository
// ---------------------------------------------------------------------------

type mockMediaBuyRepo struct {
	createFunc            func(ctx context.Context, b *domain.MediaBuy) error
	getByIDFunc           func(ctx context.Context, tenantID, id uuid.UUID) (*domain.MediaBuy, error)
	updateStatusFunc      func(ctx context.Context, tenantID, id uuid.UUID, status domain.MediaBuyStatus) error
	setAdServerOrderIDFun func(ctx context.Context, tenantID, id uuid.UUID, orderID string) error
	listByPrincipalFunc   func(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*domain.MediaBuy, error)
}

func (m *mockMediaBuyRepo) Create(ctx context.Context, b *domain.MediaBuy) error {
	return m.createFunc(ctx, b)
}

func (m *mockMediaBuyRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.MediaBuy, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockMediaBuyRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.MediaBuyStatus) error {
	return m.updateStatusFunc(ctx, tenantID, id, status)
}

func (m *mockMediaBuyRepo) SetAdServerOrderID(ctx context.Context, tenantID, id uuid.UUID, orderID string) error {
	return m.setAdServerOrderIDFun(ctx, tenantID, id, orderID)
}

func (m *mockMediaBuyRepo) ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*domain.MediaBuy, error) {
	return m.listByPrincipalFunc(ctx, tenantID, principalID, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock ObjectMappingRepository
// ---------------------------------------------------------------------------

type mockMappingRepo struct {
	createFunc     func(ctx context.Context, m *domain.ObjectMapping) error
	lifecycleFunc  func(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error)
	listByStepFunc func(ctx context.Context, tenantID, stepID uuid.UUID) ([]*domain.ObjectMapping, error)
}

func (m *mockMappingRepo) Create(ctx context.Context, mapping *domain.ObjectMapping) error {
	return m.createFunc(ctx, mapping)
}

func (m *mockMappingRepo) Lifecycle(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error) {
	return m.lifecycleFunc(ctx, tenantID, objectType, objectID)
}

func (m *mockMappingRepo) ListByStep(ctx context.Context, tenantID, stepID uuid.UUID) ([]*domain.ObjectMapping, error) {
	return m.listByStepFunc(ctx, tenantID, stepID)
}

// ---------------------------------------------------------------------------
// Mock Orchestrator
// ---------------------------------------------------------------------------

type mockOrchestrator struct {
	createContextFunc    func(ctx context.Context, tenantID, principalID uuid.UUID, initialHistory []domain.ConversationEntry) (*domain.Context, error)
	addMessageFunc       func(ctx context.Context, tenantID, contextID uuid.UUID, role, content string) error
	createStepFunc       func(ctx context.Context, in workflow.CreateStepInput) (*domain.WorkflowStep, error)
	updateStepFunc       func(ctx context.Context, tenantID, stepID uuid.UUID, in workflow.UpdateStepInput) (*domain.WorkflowStep, error)
	pendingStepsFunc     func(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error)
	objectLifecycleFunc  func(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error)
	linkObjectFunc       func(ctx context.Context, tenantID, stepID uuid.UUID, ref workflow.ObjectRef) (*domain.ObjectMapping, error)
	getContextStatusFunc func(ctx context.Context, tenantID, contextID uuid.UUID) (*workflow.ContextStatus, error)
}

func (m *mockOrchestrator) CreateContext(ctx context.Context, tenantID, principalID uuid.UUID, initialHistory []domain.ConversationEntry) (*domain.Context, error) {
	return m.createContextFunc(ctx, tenantID, principalID, initialHistory)
}

func (m *mockOrchestrator) AddMessage(ctx context.Context, tenantID, contextID uuid.UUID, role, content string) error {
	return m.addMessageFunc(ctx, tenantID, contextID, role, content)
}

func (m *mockOrchestrator) CreateStep(ctx context.Context, in workflow.CreateStepInput) (*domain.WorkflowStep, error) {
	return m.createStepFunc(ctx, in)
}

func (m *mockOrchestrator) UpdateStep(ctx context.Context, tenantID, stepID uuid.UUID, in workflow.UpdateStepInput) (*domain.WorkflowStep, error) {
	return m.updateStepFunc(ctx, tenantID, stepID, in)
}

func (m *mockOrchestrator) PendingSteps(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error) {
	return m.pendingStepsFunc(ctx, tenantID, filter)
}

func (m *mockOrchestrator) ObjectLifecycle(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error) {
	return m.objectLifecycleFunc(ctx, tenantID, objectType, objectID)
}

func (m *mockOrchestrator) LinkObject(ctx context.Context, tenantID, stepID uuid.UUID, ref workflow.ObjectRef) (*domain.ObjectMapping, error) {
	return m.linkObjectFunc(ctx, tenantID, stepID, ref)
}

func (m *mockOrchestrator) GetContextStatus(ctx context.Context, tenantID, contextID uuid.UUID) (*workflow.ContextStatus, error) {
	return m.getContextStatusFunc(ctx, tenantID, contextID)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	issueTokensFunc    func(tenantID, principalID uuid.UUID) (*auth.TokenPair, error)
	refreshFunc        func(refreshToken string) (*auth.TokenPair, error)
	generateAPIKeyFunc func(ctx context.Context, tenantID, principalID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error)
	validateAPIKeyFunc func(ctx context.Context, rawKey string) (*domain.Principal, *domain.APIKey, error)
}

func (m *mockAuthService) IssueTokens(tenantID, principalID uuid.UUID) (*auth.TokenPair, error) {
	return m.issueTokensFunc(tenantID, principalID)
}

func (m *mockAuthService) Refresh(refreshToken string) (*auth.TokenPair, error) {
	return m.refreshFunc(refreshToken)
}

func (m *mockAuthService) GenerateAPIKey(ctx context.Context, tenantID, principalID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	return m.generateAPIKeyFunc(ctx, tenantID, principalID, name, expiresAt)
}

func (m *mockAuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*domain.Principal, *domain.APIKey, error) {
	return m.validateAPIKeyFunc(ctx, rawKey)
}

// ---------------------------------------------------------------------------
// Mock Reconciler
// ---------------------------------------------------------------------------

type mockReconciler struct {
	startFunc    func(ctx context.Context, in reconcile.StartInput) (uuid.UUID, error)
	snapshotFunc func(resourceID string) (reconcile.Job, bool)
}

func (m *mockReconciler) Start(ctx context.Context, in reconcile.StartInput) (uuid.UUID, error) {
	return m.startFunc(ctx, in)
}

func (m *mockReconciler) Snapshot(resourceID string) (reconcile.Job, bool) {
	return m.snapshotFunc(resourceID)
}

// ---------------------------------------------------------------------------
// Mock AdapterProvider + Adapter
// ---------------------------------------------------------------------------

type mockAdapterProvider struct {
	createFunc func(adServerType string, settings map[string]any) (adserver.Adapter, error)
}

func (m *mockAdapterProvider) Create(adServerType string, settings map[string]any) (adserver.Adapter, error) {
	return m.createFunc(adServerType, settings)
}

type stubAdapter struct {
	createOrderFunc func(ctx context.Context, req adserver.OrderRequest) (string, error)
	reconcileFunc   func(ctx context.Context, resourceID string) error
}

func (s *stubAdapter) CreateOrder(ctx context.Context, req adserver.OrderRequest) (string, error) {
	return s.createOrderFunc(ctx, req)
}

func (s *stubAdapter) Reconcile(ctx context.Context, resourceID string) error {
	if s.reconcileFunc != nil {
		return s.reconcileFunc(ctx, resourceID)
	}
	return nil
}
