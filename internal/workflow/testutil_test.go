package workflow_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/webhook"
)

// ---------------------------------------------------------------------------
// Mock Store
// ---------------------------------------------------------------------------

type mockStore struct {
	contexts      domain.ContextRepository
	steps         domain.WorkflowStepRepository
	mappings      domain.ObjectMappingRepository
	subscriptions domain.PushSubscriptionRepository
	deliveryLogs  domain.DeliveryLogRepository
}

func (m *mockStore) Contexts() domain.ContextRepository                 { return m.contexts }
func (m *mockStore) WorkflowSteps() domain.WorkflowStepRepository       { return m.steps }
func (m *mockStore) ObjectMappings() domain.ObjectMappingRepository     { return m.mappings }
func (m *mockStore) PushSubscriptions() domain.PushSubscriptionRepository {
	return m.subscriptions
}
func (m *mockStore) DeliveryLogs() domain.DeliveryLogRepository { return m.deliveryLogs }

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
	createWithMappingsFunc func(ctx context.Context, step *domain.WorkflowStep, mappings []*domain.ObjectMapping) error
	getByIDFunc            func(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowStep, error)
	updateFunc             func(ctx context.Context, step *domain.WorkflowStep) error
	appendCommentFunc      func(ctx context.Context, tenantID, id uuid.UUID, comment domain.StepComment) error
	listPendingFunc        func(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error)
	listByContextFunc      func(ctx context.Context, tenantID, contextID uuid.UUID) ([]*domain.WorkflowStep, error)
}

func (m *mockStepRepo) CreateWithMappings(ctx context.Context, step *domain.WorkflowStep, mappings []*domain.ObjectMapping) error {
	return m.createWithMappingsFunc(ctx, step, mappings)
}

func (m *mockStepRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WorkflowStep, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockStepRepo) Update(ctx context.Context, step *domain.WorkflowStep) error {
	return m.updateFunc(ctx, step)
}

func (m *mockStepRepo) AppendComment(ctx context.Context, tenantID, id uuid.UUID, comment domain.StepComment) error {
	return m.appendCommentFunc(ctx, tenantID, id, comment)
}

func (m *mockStepRepo) ListPending(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error) {
	return m.listPendingFunc(ctx, tenantID, filter)
}

func (m *mockStepRepo) ListByContext(ctx context.Context, tenantID, contextID uuid.UUID) ([]*domain.WorkflowStep, error) {
	return m.listByContextFunc(ctx, tenantID, contextID)
}

// ---------------------------------------------------------------------------
// Mock ObjectMappingRepository
// ---------------------------------------------------------------------------

type mockMappingRepo struct {
	createFunc     func(ctx context.Context, m *domain.ObjectMapping) error
	lifecycleFunc  func(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error)
	listByStepFunc func(ctx context.Context, tenantID, stepID uuid.UUID) ([]*domain.ObjectMapping, error)
}

func (m *mockMappingRepo) Create(ctx context.Context, om *domain.ObjectMapping) error {
	return m.createFunc(ctx, om)
}

func (m *mockMappingRepo) Lifecycle(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error) {
	return m.lifecycleFunc(ctx, tenantID, objectType, objectID)
}

func (m *mockMappingRepo) ListByStep(ctx context.Context, tenantID, stepID uuid.UUID) ([]*domain.ObjectMapping, error) {
	return m.listByStepFunc(ctx, tenantID, stepID)
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
// Mock Dispatcher and EventPublisher
// ---------------------------------------------------------------------------

type dispatchedDelivery struct {
	dest webhook.Destination
	n    *webhook.Notification
	meta webhook.Metadata
}

type mockDispatcher struct {
	mu         sync.Mutex
	dispatched []dispatchedDelivery
}

func (m *mockDispatcher) Dispatch(_ context.Context, dest webhook.Destination, n *webhook.Notification, meta webhook.Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, dispatchedDelivery{dest: dest, n: n, meta: meta})
}

func (m *mockDispatcher) all() []dispatchedDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dispatchedDelivery, len(m.dispatched))
	copy(out, m.dispatched)
	return out
}

type mockPublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
	m.payloads = append(m.payloads, payload)
	return m.err
}
