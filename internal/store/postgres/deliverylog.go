package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/adbroker/internal/domain"
)

type DeliveryLogRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryLogRepo(pool *pgxpool.Pool) *DeliveryLogRepo {
	return &DeliveryLogRepo{pool: pool}
}

// Upsert writes the attempt record, replacing any earlier row with the
// same id so one delivery keeps one row across retries.
func (r *DeliveryLogRepo) Upsert(ctx context.Context, e *domain.DeliveryLogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO delivery_logs
		   (id, tenant_id, principal_id, object_type, object_id, url,
		    notification_type, sequence, attempts, status, http_status,
		    error_message, payload_bytes, response_time_ms, next_retry_at,
		    completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (id) DO UPDATE SET
		   attempts = EXCLUDED.attempts,
		   status = EXCLUDED.status,
		   http_status = EXCLUDED.http_status,
		   error_message = EXCLUDED.error_message,
		   response_time_ms = EXCLUDED.response_time_ms,
		   next_retry_at = EXCLUDED.next_retry_at,
		   completed_at = EXCLUDED.completed_at`,
		e.ID, e.TenantID, e.PrincipalID, e.ObjectType, e.ObjectID, e.URL,
		e.NotificationType, e.Sequence, e.Attempts, e.Status, e.HTTPStatus,
		e.ErrorMessage, e.PayloadBytes, e.ResponseTimeMS, e.NextRetryAt,
		e.CompletedAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("deliveryLogRepo.Upsert: %w", err)
	}

	return nil
}

func (r *DeliveryLogRepo) ListByObject(ctx context.Context, tenantID uuid.UUID, objectType, objectID string, limit int) ([]*domain.DeliveryLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, principal_id, object_type, object_id, url,
		        notification_type, sequence, attempts, status, http_status,
		        error_message, payload_bytes, response_time_ms, next_retry_at,
		        completed_at, created_at
		 FROM delivery_logs
		 WHERE tenant_id = $1 AND object_type = $2 AND object_id = $3
		 ORDER BY sequence
		 LIMIT $4`,
		tenantID, objectType, objectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("deliveryLogRepo.ListByObject: %w", err)
	}
	defer rows.Close()

	var entries []*domain.DeliveryLogEntry
	for rows.Next() {
		var e domain.DeliveryLogEntry

		err = rows.Scan(
			&e.ID, &e.TenantID, &e.PrincipalID, &e.ObjectType, &e.ObjectID, &e.URL,
			&e.NotificationType, &e.Sequence, &e.Attempts, &e.Status, &e.HTTPStatus,
			&e.ErrorMessage, &e.PayloadBytes, &e.ResponseTimeMS, &e.NextRetryAt,
			&e.CompletedAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("deliveryLogRepo.ListByObject: scan: %w", err)
		}

		entries = append(entries, &e)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("deliveryLogRepo.ListByObject: rows: %w", err)
	}

	return entries, nil
}

// NextSequence atomically advances the per-(object, notification type)
// counter and returns the new value. Receivers use it to order events.
func (r *DeliveryLogRepo) NextSequence(ctx context.Context, tenantID uuid.UUID, objectType, objectID, notificationType string) (int64, error) {
	var seq int64

	err := r.pool.QueryRow(ctx,
		`INSERT INTO webhook_sequences (tenant_id, object_type, object_id, notification_type, seq)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (tenant_id, object_type, object_id, notification_type)
		 DO UPDATE SET seq = webhook_sequences.seq + 1
		 RETURNING seq`,
		tenantID, objectType, objectID, notificationType,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("deliveryLogRepo.NextSequence: %w", err)
	}

	return seq, nil
}
