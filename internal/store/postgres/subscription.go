package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/adbroker/internal/domain"
)

type PushSubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPushSubscriptionRepo(pool *pgxpool.Pool) *PushSubscriptionRepo {
	return &PushSubscriptionRepo{pool: pool}
}

func (r *PushSubscriptionRepo) Create(ctx context.Context, s *domain.PushSubscription) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions
		   (id, tenant_id, principal_id, url, auth_type, auth_token, object_type, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.TenantID, s.PrincipalID, s.URL, s.AuthType, s.AuthToken,
		s.ObjectType, s.Active, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("subscriptionRepo.Create: %w", err)
	}

	return nil
}

func (r *PushSubscriptionRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("subscriptionRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscriptionRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *PushSubscriptionRepo) ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) ([]*domain.PushSubscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, principal_id, url, auth_type, auth_token, object_type, active, created_at
		 FROM push_subscriptions
		 WHERE tenant_id = $1 AND principal_id = $2
		 ORDER BY created_at`,
		tenantID, principalID,
	)
	if err != nil {
		return nil, fmt.Errorf("subscriptionRepo.ListByPrincipal: %w", err)
	}
	defer rows.Close()

	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("subscriptionRepo.ListByPrincipal: %w", err)
	}

	return subs, nil
}

// ListForObject returns active subscriptions matching the object type,
// including catch-all subscriptions with an empty object_type.
func (r *PushSubscriptionRepo) ListForObject(ctx context.Context, tenantID, principalID uuid.UUID, objectType string) ([]*domain.PushSubscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, principal_id, url, auth_type, auth_token, object_type, active, created_at
		 FROM push_subscriptions
		 WHERE tenant_id = $1 AND principal_id = $2 AND active
		   AND (object_type = $3 OR object_type = '')
		 ORDER BY created_at`,
		tenantID, principalID, objectType,
	)
	if err != nil {
		return nil, fmt.Errorf("subscriptionRepo.ListForObject: %w", err)
	}
	defer rows.Close()

	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("subscriptionRepo.ListForObject: %w", err)
	}

	return subs, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*domain.PushSubscription, error) {
	var subs []*domain.PushSubscription
	for rows.Next() {
		var s domain.PushSubscription

		err := rows.Scan(&s.ID, &s.TenantID, &s.PrincipalID, &s.URL, &s.AuthType,
			&s.AuthToken, &s.ObjectType, &s.Active, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		subs = append(subs, &s)
	}
	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return subs, nil
}
