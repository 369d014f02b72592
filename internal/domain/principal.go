package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Principal is an authenticated buyer identity within a tenant. Every
// workflow context and media buy is owned by exactly one principal.
type Principal struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	AdvertiserID string // the buyer's id in the tenant's ad server, if mapped
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// APIKey is a long-lived credential a principal uses to call the agent.
// Only the argon2id hash is stored; the raw key is shown once at issuance.
type APIKey struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
	Name        string
	KeyHash     string
	Prefix      string
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Principal, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*Principal, error)

	CreateAPIKey(ctx context.Context, k *APIKey) error
	// GetAPIKeyByPrefix looks up a key by its public prefix. tenantID may be
	// uuid.Nil to search across tenants (pre-auth there is no tenant context).
	GetAPIKeyByPrefix(ctx context.Context, tenantID uuid.UUID, prefix string) (*APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}
