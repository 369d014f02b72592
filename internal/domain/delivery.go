package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
	DeliveryStatusFailed   DeliveryStatus = "failed"
)

// DeliveryLogEntry records one webhook delivery. The row is upserted by ID as
// attempts progress (retrying -> success|failed), not duplicated per attempt.
type DeliveryLogEntry struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	PrincipalID      uuid.UUID
	ObjectType       string
	ObjectID         string
	URL              string
	NotificationType string
	Sequence         int64
	Attempts         int
	Status           DeliveryStatus
	HTTPStatus       int // 0 when the request never got a response
	ErrorMessage     string
	PayloadBytes     int
	ResponseTimeMS   int64
	NextRetryAt      *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
}

type DeliveryLogRepository interface {
	Upsert(ctx context.Context, e *DeliveryLogEntry) error
	ListByObject(ctx context.Context, tenantID uuid.UUID, objectType, objectID string, limit int) ([]*DeliveryLogEntry, error)
	// NextSequence returns a monotonically increasing sequence number scoped
	// to (tenant, object, notification type) so receivers can detect gaps
	// and duplicates.
	NextSequence(ctx context.Context, tenantID uuid.UUID, objectType, objectID, notificationType string) (int64, error)
}
