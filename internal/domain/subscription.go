package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type WebhookAuthType string

const (
	WebhookAuthNone   WebhookAuthType = "none"
	WebhookAuthBearer WebhookAuthType = "bearer"
	WebhookAuthSigned WebhookAuthType = "signed" // HMAC-SHA256 over timestamp + body
)

// PushSubscription is a destination a principal registered to receive
// step-status notifications for its objects.
type PushSubscription struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
	URL         string
	AuthType    WebhookAuthType
	// AuthToken is the bearer token or signing secret, depending on AuthType.
	AuthToken  string
	ObjectType string // empty means all object types
	Active     bool
	CreatedAt  time.Time
}

type PushSubscriptionRepository interface {
	Create(ctx context.Context, s *PushSubscription) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) ([]*PushSubscription, error)
	// ListForObject returns active subscriptions matching the object type
	// (including subscriptions with no object-type filter).
	ListForObject(ctx context.Context, tenantID, principalID uuid.UUID, objectType string) ([]*PushSubscription, error)
}
