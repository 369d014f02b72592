package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepPending          StepStatus = "pending"
	StepInProgress       StepStatus = "in_progress"
	StepRequiresApproval StepStatus = "requires_approval"
	StepCompleted        StepStatus = "completed"
	StepFailed           StepStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

// ValidTransition checks if a step state transition is allowed.
// Allowed: pending->in_progress->completed, pending->requires_approval->
// completed|failed, and any non-terminal state -> failed.
func ValidTransition(from, to StepStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StepFailed {
		return true
	}
	switch from {
	case StepPending:
		return to == StepInProgress || to == StepRequiresApproval
	case StepInProgress:
		return to == StepCompleted
	case StepRequiresApproval:
		return to == StepCompleted
	default:
		return false
	}
}

var ErrInvalidTransition = errors.New("step: invalid state transition")

// StepOwner is whoever must act next on a step.
type StepOwner string

const (
	OwnerPrincipal StepOwner = "principal"
	OwnerPublisher StepOwner = "publisher"
	OwnerSystem    StepOwner = "system"
)

type StepType string

const (
	StepTypeToolCall     StepType = "tool_call"
	StepTypeApproval     StepType = "approval"
	StepTypeNotification StepType = "notification"
)

// StepComment is one entry in a step's append-only collaboration log.
type StepComment struct {
	User      string    `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowStep is one unit of trackable work inside a context. Steps are
// mutated only through the workflow orchestrator and never deleted.
type WorkflowStep struct {
	ID                 uuid.UUID
	ContextID          uuid.UUID
	TenantID           uuid.UUID
	StepType           StepType
	Owner              StepOwner
	Status             StepStatus
	Operation          string // originating tool/operation name, if any
	Request            map[string]any
	Response           map[string]any
	Assignee           string
	ErrorMessage       string
	TransactionDetails map[string]any
	Comments           []StepComment
	CreatedAt          time.Time
	CompletedAt        *time.Time
}

// ObjectMapping links a business object to a step that acted on it. Mappings
// are append-only: one row per (step, action) over the object's lifetime.
type ObjectMapping struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ObjectType string // "media_buy", "creative", ...
	ObjectID   string
	StepID     uuid.UUID
	Action     string // "create", "approve", "update", ...
	CreatedAt  time.Time
}

// LifecycleEntry is one row of an object's audit trail: the mapping joined
// with the step that produced it, ordered by mapping creation time.
type LifecycleEntry struct {
	Action       string
	StepID       uuid.UUID
	StepType     StepType
	Status       StepStatus
	Owner        StepOwner
	Assignee     string
	ErrorMessage string
	Comments     []StepComment
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// PendingStepFilter narrows the work-queue query. Zero values match all.
type PendingStepFilter struct {
	Owner    StepOwner
	Assignee string
}

type WorkflowStepRepository interface {
	// CreateWithMappings inserts the step and its object mappings in one
	// transaction; either all rows land or none do.
	CreateWithMappings(ctx context.Context, s *WorkflowStep, mappings []*ObjectMapping) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*WorkflowStep, error)
	// Update persists status, payloads, error, transaction details and
	// completed_at. Comments are excluded; use AppendComment.
	Update(ctx context.Context, s *WorkflowStep) error
	// AppendComment appends to the comment log without touching other fields.
	AppendComment(ctx context.Context, tenantID, id uuid.UUID, c StepComment) error
	ListPending(ctx context.Context, tenantID uuid.UUID, filter PendingStepFilter) ([]*WorkflowStep, error)
	ListByContext(ctx context.Context, tenantID, contextID uuid.UUID) ([]*WorkflowStep, error)
}

type ObjectMappingRepository interface {
	Create(ctx context.Context, m *ObjectMapping) error
	// Lifecycle joins mappings to steps for one object, in creation order.
	Lifecycle(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*LifecycleEntry, error)
	ListByStep(ctx context.Context, tenantID, stepID uuid.UUID) ([]*ObjectMapping, error)
}
