package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MediaBuyStatus string

const (
	MediaBuyStatusPendingActivation MediaBuyStatus = "pending_activation"
	MediaBuyStatusActive            MediaBuyStatus = "active"
	MediaBuyStatusFailed            MediaBuyStatus = "failed"
	MediaBuyStatusPaused            MediaBuyStatus = "paused"
)

// MediaBuy is the business object a buyer's campaign request produces: an
// order placed against the tenant's ad server. Its lifecycle across workflow
// steps is tracked through object mappings.
type MediaBuy struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	PrincipalID    uuid.UUID
	ContextID      uuid.UUID
	OrderName      string
	BudgetMicros   int64
	Currency       string
	FlightStart    time.Time
	FlightEnd      time.Time
	AdServerOrderID string // assigned once the ad server accepts the order
	Status         MediaBuyStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MediaBuyRepository interface {
	Create(ctx context.Context, m *MediaBuy) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*MediaBuy, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status MediaBuyStatus) error
	SetAdServerOrderID(ctx context.Context, tenantID, id uuid.UUID, orderID string) error
	ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*MediaBuy, error)
}
