package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/adbroker/internal/domain"
	storeredis "github.com/gosuda/adbroker/internal/store/redis"
	"github.com/gosuda/adbroker/internal/webhook"
)

// Store bundles the repositories the orchestrator mutates.
type Store interface {
	Contexts() domain.ContextRepository
	WorkflowSteps() domain.WorkflowStepRepository
	ObjectMappings() domain.ObjectMappingRepository
	PushSubscriptions() domain.PushSubscriptionRepository
	DeliveryLogs() domain.DeliveryLogRepository
}

// Dispatcher schedules webhook deliveries without blocking the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, dest webhook.Destination, n *webhook.Notification, meta webhook.Metadata)
}

// EventPublisher pushes step events to live subscribers (WebSocket hub
// via Redis). Publish failures are logged, never surfaced.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// OpsNotifier pings the publisher's operations channel when a step
// needs a human decision.
type OpsNotifier interface {
	StepRequiresApproval(ctx context.Context, step *domain.WorkflowStep) error
}

// Orchestrator owns Context and WorkflowStep records and fires
// notifications on step status transitions. Store failures propagate;
// notification side effects are best-effort.
type Orchestrator struct {
	store      Store
	dispatcher Dispatcher
	pubsub     EventPublisher
	ops        OpsNotifier
}

// SetOpsNotifier enables approval pings. Without one, approval steps
// are only visible through the pending-steps queue.
func (o *Orchestrator) SetOpsNotifier(n OpsNotifier) {
	o.ops = n
}

func New(store Store, dispatcher Dispatcher, pubsub EventPublisher) *Orchestrator {
	return &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		pubsub:     pubsub,
	}
}

// CreateContext opens a conversation container for the principal.
func (o *Orchestrator) CreateContext(ctx context.Context, tenantID, principalID uuid.UUID, initialHistory []domain.ConversationEntry) (*domain.Context, error) {
	now := time.Now().UTC()
	c := &domain.Context{
		ID:             uuid.New(),
		TenantID:       tenantID,
		PrincipalID:    principalID,
		History:        initialHistory,
		LastActivityAt: now,
		CreatedAt:      now,
	}

	if err := o.store.Contexts().Create(ctx, c); err != nil {
		return nil, fmt.Errorf("workflow.CreateContext: %w", err)
	}

	return c, nil
}

// AddMessage appends one conversation entry and bumps the activity time.
func (o *Orchestrator) AddMessage(ctx context.Context, tenantID, contextID uuid.UUID, role, content string) error {
	entry := domain.ConversationEntry{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	if err := o.store.Contexts().AppendMessage(ctx, tenantID, contextID, entry); err != nil {
		return fmt.Errorf("workflow.AddMessage: %w", err)
	}

	return nil
}

// ObjectRef names a business object a step acts on.
type ObjectRef struct {
	ObjectType string
	ObjectID   string
	Action     string
}

// CreateStepInput carries everything needed to open a workflow step.
type CreateStepInput struct {
	ContextID      uuid.UUID
	TenantID       uuid.UUID
	StepType       domain.StepType
	Owner          domain.StepOwner
	Status         domain.StepStatus
	Operation      string
	Request        map[string]any
	Assignee       string
	ObjectMappings []ObjectRef
	InitialComment *domain.StepComment
}

// CreateStep inserts the step and its object mappings atomically.
func (o *Orchestrator) CreateStep(ctx context.Context, in CreateStepInput) (*domain.WorkflowStep, error) {
	now := time.Now().UTC()
	if in.Status == "" {
		in.Status = domain.StepPending
	}

	step := &domain.WorkflowStep{
		ID:        uuid.New(),
		ContextID: in.ContextID,
		TenantID:  in.TenantID,
		StepType:  in.StepType,
		Owner:     in.Owner,
		Status:    in.Status,
		Operation: in.Operation,
		Request:   in.Request,
		Assignee:  in.Assignee,
		CreatedAt: now,
	}
	if in.InitialComment != nil {
		comment := *in.InitialComment
		comment.CreatedAt = now
		step.Comments = []domain.StepComment{comment}
	}

	mappings := make([]*domain.ObjectMapping, 0, len(in.ObjectMappings))
	for _, ref := range in.ObjectMappings {
		mappings = append(mappings, &domain.ObjectMapping{
			ID:         uuid.New(),
			TenantID:   in.TenantID,
			ObjectType: ref.ObjectType,
			ObjectID:   ref.ObjectID,
			StepID:     step.ID,
			Action:     ref.Action,
			CreatedAt:  now,
		})
	}

	if err := o.store.WorkflowSteps().CreateWithMappings(ctx, step, mappings); err != nil {
		return nil, fmt.Errorf("workflow.CreateStep: %w", err)
	}

	if step.Status == domain.StepRequiresApproval {
		o.pingOps(ctx, step)
	}

	return step, nil
}

// UpdateStepInput applies a partial update. Nil fields are left alone.
type UpdateStepInput struct {
	Status             *domain.StepStatus
	Response           map[string]any
	ErrorMessage       *string
	TransactionDetails map[string]any
	Comment            *domain.StepComment
}

// UpdateStep mutates the step and, when the status changed, notifies
// every subscriber interested in an object mapped to the step. Delivery
// failures never fail or roll back the update.
func (o *Orchestrator) UpdateStep(ctx context.Context, tenantID, stepID uuid.UUID, in UpdateStepInput) (*domain.WorkflowStep, error) {
	step, err := o.store.WorkflowSteps().GetByID(ctx, tenantID, stepID)
	if err != nil {
		return nil, fmt.Errorf("workflow.UpdateStep: %w", err)
	}

	statusChanged := false
	if in.Status != nil && *in.Status != step.Status {
		if !domain.ValidTransition(step.Status, *in.Status) {
			return nil, fmt.Errorf("workflow.UpdateStep: %s -> %s: %w", step.Status, *in.Status, domain.ErrInvalidTransition)
		}
		step.Status = *in.Status
		statusChanged = true

		if step.Status.IsTerminal() && step.CompletedAt == nil {
			now := time.Now().UTC()
			step.CompletedAt = &now
		}
	}
	if in.Response != nil {
		step.Response = in.Response
	}
	if in.ErrorMessage != nil {
		step.ErrorMessage = *in.ErrorMessage
	}
	if in.TransactionDetails != nil {
		step.TransactionDetails = in.TransactionDetails
	}

	if err := o.store.WorkflowSteps().Update(ctx, step); err != nil {
		return nil, fmt.Errorf("workflow.UpdateStep: %w", err)
	}

	if in.Comment != nil {
		comment := *in.Comment
		if comment.CreatedAt.IsZero() {
			comment.CreatedAt = time.Now().UTC()
		}
		if err := o.store.WorkflowSteps().AppendComment(ctx, tenantID, stepID, comment); err != nil {
			return nil, fmt.Errorf("workflow.UpdateStep: append comment: %w", err)
		}
		step.Comments = append(step.Comments, comment)
	}

	if statusChanged {
		if step.Status == domain.StepRequiresApproval {
			o.pingOps(ctx, step)
		}
		o.notifyStatusChange(ctx, step)
	}

	return step, nil
}

func (o *Orchestrator) pingOps(ctx context.Context, step *domain.WorkflowStep) {
	if o.ops == nil {
		return
	}
	if err := o.ops.StepRequiresApproval(ctx, step); err != nil {
		log.Error().Err(err).Str("step_id", step.ID.String()).Msg("workflow.pingOps: notify")
	}
}

// PendingSteps returns the work queue for the given owner/assignee view.
func (o *Orchestrator) PendingSteps(ctx context.Context, tenantID uuid.UUID, filter domain.PendingStepFilter) ([]*domain.WorkflowStep, error) {
	steps, err := o.store.WorkflowSteps().ListPending(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("workflow.PendingSteps: %w", err)
	}

	return steps, nil
}

// ObjectLifecycle returns every step that acted on the object, oldest first.
func (o *Orchestrator) ObjectLifecycle(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error) {
	entries, err := o.store.ObjectMappings().Lifecycle(ctx, tenantID, objectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("workflow.ObjectLifecycle: %w", err)
	}

	return entries, nil
}

// LinkObject retroactively associates an object with an existing step.
func (o *Orchestrator) LinkObject(ctx context.Context, tenantID, stepID uuid.UUID, ref ObjectRef) (*domain.ObjectMapping, error) {
	if _, err := o.store.WorkflowSteps().GetByID(ctx, tenantID, stepID); err != nil {
		return nil, fmt.Errorf("workflow.LinkObject: %w", err)
	}

	m := &domain.ObjectMapping{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ObjectType: ref.ObjectType,
		ObjectID:   ref.ObjectID,
		StepID:     stepID,
		Action:     ref.Action,
		CreatedAt:  time.Now().UTC(),
	}

	if err := o.store.ObjectMappings().Create(ctx, m); err != nil {
		return nil, fmt.Errorf("workflow.LinkObject: %w", err)
	}

	return m, nil
}

// Aggregate status values derived from a context's steps.
const (
	StatusHasFailures      = "has_failures"
	StatusAwaitingApproval = "awaiting_approval"
	StatusPendingSteps     = "pending_steps"
	StatusAllCompleted     = "all_completed"
)

// ContextStatus is the derived aggregate view of one context.
type ContextStatus struct {
	Status     string                    `json:"status"`
	Counts     map[domain.StepStatus]int `json:"counts"`
	TotalSteps int                       `json:"total_steps"`
}

// GetContextStatus recomputes the aggregate from the current step set.
// It is never stored, so it cannot drift.
func (o *Orchestrator) GetContextStatus(ctx context.Context, tenantID, contextID uuid.UUID) (*ContextStatus, error) {
	if _, err := o.store.Contexts().GetByID(ctx, tenantID, contextID); err != nil {
		return nil, fmt.Errorf("workflow.GetContextStatus: %w", err)
	}

	steps, err := o.store.WorkflowSteps().ListByContext(ctx, tenantID, contextID)
	if err != nil {
		return nil, fmt.Errorf("workflow.GetContextStatus: %w", err)
	}

	counts := make(map[domain.StepStatus]int)
	for _, step := range steps {
		counts[step.Status]++
	}

	status := StatusAllCompleted
	switch {
	case counts[domain.StepFailed] > 0:
		status = StatusHasFailures
	case counts[domain.StepRequiresApproval] > 0:
		status = StatusAwaitingApproval
	case counts[domain.StepPending] > 0 || counts[domain.StepInProgress] > 0:
		status = StatusPendingSteps
	}

	return &ContextStatus{
		Status:     status,
		Counts:     counts,
		TotalSteps: len(steps),
	}, nil
}

// notifyStatusChange fans the new status out to webhook subscribers and
// the live event channel. Everything here is best-effort.
func (o *Orchestrator) notifyStatusChange(ctx context.Context, step *domain.WorkflowStep) {
	wfCtx, err := o.store.Contexts().GetByID(ctx, step.TenantID, step.ContextID)
	if err != nil {
		log.Error().Err(err).Str("step_id", step.ID.String()).Msg("workflow.notifyStatusChange: load context")
		return
	}

	mappings, err := o.store.ObjectMappings().ListByStep(ctx, step.TenantID, step.ID)
	if err != nil {
		log.Error().Err(err).Str("step_id", step.ID.String()).Msg("workflow.notifyStatusChange: list mappings")
		return
	}

	notificationType := "status_change"
	for _, m := range mappings {
		subs, err := o.store.PushSubscriptions().ListForObject(ctx, step.TenantID, wfCtx.PrincipalID, m.ObjectType)
		if err != nil {
			log.Error().Err(err).Str("object_id", m.ObjectID).Msg("workflow.notifyStatusChange: list subscriptions")
			continue
		}
		if len(subs) == 0 {
			continue
		}

		seq, err := o.store.DeliveryLogs().NextSequence(ctx, step.TenantID, m.ObjectType, m.ObjectID, notificationType)
		if err != nil {
			log.Error().Err(err).Str("object_id", m.ObjectID).Msg("workflow.notifyStatusChange: next sequence")
			continue
		}

		n := o.buildNotification(step, m, seq)
		for _, sub := range subs {
			o.dispatcher.Dispatch(ctx, webhook.Destination{
				URL:       sub.URL,
				AuthType:  sub.AuthType,
				AuthToken: sub.AuthToken,
			}, n, webhook.Metadata{
				TenantID:         step.TenantID,
				PrincipalID:      wfCtx.PrincipalID,
				ObjectType:       m.ObjectType,
				ObjectID:         m.ObjectID,
				NotificationType: notificationType,
			})
		}
	}

	o.publishStepEvent(ctx, step)
}

// buildNotification picks the wire shape. Approval steps carry the full
// step snapshot so the receiver can act on it; everything else gets the
// compact status event.
func (o *Orchestrator) buildNotification(step *domain.WorkflowStep, m *domain.ObjectMapping, seq int64) *webhook.Notification {
	if step.StepType == domain.StepTypeApproval {
		return &webhook.Notification{
			Kind:     webhook.KindTask,
			TaskID:   step.ID.String(),
			Sequence: seq,
			Task: map[string]any{
				"task_id":     step.ID.String(),
				"sequence":    seq,
				"context_id":  step.ContextID.String(),
				"step_type":   string(step.StepType),
				"owner":       string(step.Owner),
				"status":      string(step.Status),
				"operation":   step.Operation,
				"request":     step.Request,
				"response":    step.Response,
				"assignee":    step.Assignee,
				"error":       step.ErrorMessage,
				"object_type": m.ObjectType,
				"object_id":   m.ObjectID,
			},
		}
	}

	return &webhook.Notification{
		Kind:     webhook.KindEvent,
		TaskID:   step.ID.String(),
		Sequence: seq,
		Event: &webhook.StatusEvent{
			TaskID:     step.ID.String(),
			Sequence:   seq,
			ObjectType: m.ObjectType,
			ObjectID:   m.ObjectID,
			Status:     string(step.Status),
			Timestamp:  time.Now().UTC(),
		},
	}
}

func (o *Orchestrator) publishStepEvent(ctx context.Context, step *domain.WorkflowStep) {
	if o.pubsub == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"type":       "step_status",
		"step_id":    step.ID.String(),
		"context_id": step.ContextID.String(),
		"status":     string(step.Status),
		"owner":      string(step.Owner),
	})
	if err != nil {
		log.Error().Err(err).Str("step_id", step.ID.String()).Msg("workflow.publishStepEvent: marshal")
		return
	}

	channel := storeredis.WorkflowChannel(step.TenantID, step.ContextID)
	if err := o.pubsub.Publish(ctx, channel, payload); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("workflow.publishStepEvent: publish")
	}
}
