package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/adbroker/internal/domain"
)

type ObjectMappingRepo struct {
	pool *pgxpool.Pool
}

func NewObjectMappingRepo(pool *pgxpool.Pool) *ObjectMappingRepo {
	return &ObjectMappingRepo{pool: pool}
}

func (r *ObjectMappingRepo) Create(ctx context.Context, m *domain.ObjectMapping) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO object_workflow_mappings
		   (id, tenant_id, object_type, object_id, step_id, action, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.TenantID, m.ObjectType, m.ObjectID, m.StepID, m.Action, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("mappingRepo.Create: %w", err)
	}

	return nil
}

// Lifecycle returns every step that ever touched the object, oldest first,
// joined with the action each mapping recorded.
func (r *ObjectMappingRepo) Lifecycle(ctx context.Context, tenantID uuid.UUID, objectType, objectID string) ([]*domain.LifecycleEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.action, m.created_at,
		        s.id, s.step_type, s.status, s.owner, s.assignee,
		        s.error_message, s.comments, s.completed_at
		 FROM object_workflow_mappings m
		 JOIN workflow_steps s ON s.id = m.step_id AND s.tenant_id = m.tenant_id
		 WHERE m.tenant_id = $1 AND m.object_type = $2 AND m.object_id = $3
		 ORDER BY m.created_at`,
		tenantID, objectType, objectID,
	)
	if err != nil {
		return nil, fmt.Errorf("mappingRepo.Lifecycle: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LifecycleEntry
	for rows.Next() {
		var (
			entry    domain.LifecycleEntry
			comments []byte
		)

		err = rows.Scan(
			&entry.Action, &entry.CreatedAt,
			&entry.StepID, &entry.StepType, &entry.Status, &entry.Owner,
			&entry.Assignee, &entry.ErrorMessage, &comments, &entry.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("mappingRepo.Lifecycle: scan: %w", err)
		}

		if len(comments) > 0 {
			if err = json.Unmarshal(comments, &entry.Comments); err != nil {
				return nil, fmt.Errorf("mappingRepo.Lifecycle: decode comments: %w", err)
			}
		}

		entries = append(entries, &entry)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("mappingRepo.Lifecycle: rows: %w", err)
	}

	return entries, nil
}

func (r *ObjectMappingRepo) ListByStep(ctx context.Context, tenantID, stepID uuid.UUID) ([]*domain.ObjectMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, object_type, object_id, step_id, action, created_at
		 FROM object_workflow_mappings
		 WHERE tenant_id = $1 AND step_id = $2
		 ORDER BY created_at`,
		tenantID, stepID,
	)
	if err != nil {
		return nil, fmt.Errorf("mappingRepo.ListByStep: %w", err)
	}
	defer rows.Close()

	var mappings []*domain.ObjectMapping
	for rows.Next() {
		var m domain.ObjectMapping

		err = rows.Scan(&m.ID, &m.TenantID, &m.ObjectType, &m.ObjectID, &m.StepID, &m.Action, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("mappingRepo.ListByStep: scan: %w", err)
		}

		mappings = append(mappings, &m)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("mappingRepo.ListByStep: rows: %w", err)
	}

	return mappings, nil
}
