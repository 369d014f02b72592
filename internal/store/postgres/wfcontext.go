package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/adbroker/internal/domain"
)

type ContextRepo struct {
	pool *pgxpool.Pool
}

func NewContextRepo(pool *pgxpool.Pool) *ContextRepo {
	return &ContextRepo{pool: pool}
}

func (r *ContextRepo) Create(ctx context.Context, c *domain.Context) error {
	history, err := json.Marshal(c.History)
	if err != nil {
		return fmt.Errorf("contextRepo.Create: marshal history: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO contexts (id, tenant_id, principal_id, history, last_activity_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.TenantID, c.PrincipalID, history, c.LastActivityAt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("contextRepo.Create: %w", err)
	}

	return nil
}

func (r *ContextRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Context, error) {
	var (
		c       domain.Context
		history []byte
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, principal_id, history, last_activity_at, created_at
		 FROM contexts WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&c.ID, &c.TenantID, &c.PrincipalID, &history, &c.LastActivityAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contextRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("contextRepo.GetByID: %w", err)
	}

	if len(history) > 0 {
		err = json.Unmarshal(history, &c.History)
		if err != nil {
			return nil, fmt.Errorf("contextRepo.GetByID: unmarshal history: %w", err)
		}
	}

	return &c, nil
}

func (r *ContextRepo) AppendMessage(ctx context.Context, tenantID, id uuid.UUID, entry domain.ConversationEntry) error {
	payload, err := json.Marshal([]domain.ConversationEntry{entry})
	if err != nil {
		return fmt.Errorf("contextRepo.AppendMessage: marshal: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE contexts
		 SET history = history || $3::jsonb, last_activity_at = now()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, payload,
	)
	if err != nil {
		return fmt.Errorf("contextRepo.AppendMessage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contextRepo.AppendMessage: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ContextRepo) ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*domain.Context, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, principal_id, history, last_activity_at, created_at
		 FROM contexts
		 WHERE tenant_id = $1 AND principal_id = $2
		 ORDER BY last_activity_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID, principalID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("contextRepo.ListByPrincipal: %w", err)
	}
	defer rows.Close()

	var contexts []*domain.Context
	for rows.Next() {
		var (
			c       domain.Context
			history []byte
		)

		err = rows.Scan(&c.ID, &c.TenantID, &c.PrincipalID, &history, &c.LastActivityAt, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("contextRepo.ListByPrincipal: scan: %w", err)
		}

		if len(history) > 0 {
			err = json.Unmarshal(history, &c.History)
			if err != nil {
				return nil, fmt.Errorf("contextRepo.ListByPrincipal: unmarshal history: %w", err)
			}
		}

		contexts = append(contexts, &c)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("contextRepo.ListByPrincipal: rows: %w", err)
	}

	return contexts, nil
}
