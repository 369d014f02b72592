package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConversationEntry is one message in a context's history. History is
// append-only; entries are never edited or removed.
type ConversationEntry struct {
	Role      string    `json:"role"` // "user", "agent", "system"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Context is a tenant+principal-scoped conversation container that groups
// related asynchronous workflow steps. A context has no terminal state; it is
// retired only by retention policy.
type Context struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	PrincipalID    uuid.UUID
	History        []ConversationEntry
	LastActivityAt time.Time
	CreatedAt      time.Time
}

type ContextRepository interface {
	Create(ctx context.Context, c *Context) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Context, error)
	// AppendMessage appends an entry to the history and bumps last_activity_at.
	AppendMessage(ctx context.Context, tenantID, id uuid.UUID, entry ConversationEntry) error
	ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*Context, error)
}
