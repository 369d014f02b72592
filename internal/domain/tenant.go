package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is one publisher running a sales agent instance.
type Tenant struct {
	ID           uuid.UUID
	Name         string
	Slug         string
	AdServerType string // "gam", "kevel", "triton", "mock"
	Settings     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
}
