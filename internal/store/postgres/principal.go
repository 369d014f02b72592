package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/adbroker/internal/domain"
)

type PrincipalRepo struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepo(pool *pgxpool.Pool) *PrincipalRepo {
	return &PrincipalRepo{pool: pool}
}

func (r *PrincipalRepo) Create(ctx context.Context, p *domain.Principal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO principals (id, tenant_id, name, advertiser_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.TenantID, p.Name, p.AdvertiserID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("principalRepo.Create: %w", err)
	}

	return nil
}

func (r *PrincipalRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Principal, error) {
	var p domain.Principal

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, advertiser_id, created_at, updated_at
		 FROM principals WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.AdvertiserID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("principalRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("principalRepo.GetByID: %w", err)
	}

	return &p, nil
}

func (r *PrincipalRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Principal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, name, advertiser_id, created_at, updated_at
		 FROM principals WHERE tenant_id = $1
		 ORDER BY created_at
		 LIMIT 1000`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("principalRepo.List: %w", err)
	}
	defer rows.Close()

	var principals []*domain.Principal
	for rows.Next() {
		var p domain.Principal

		err = rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.AdvertiserID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("principalRepo.List: scan: %w", err)
		}

		principals = append(principals, &p)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("principalRepo.List: rows: %w", err)
	}

	return principals, nil
}

func (r *PrincipalRepo) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, principal_id, name, key_hash, prefix, expires_at, last_used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		k.ID, k.TenantID, k.PrincipalID, k.Name, k.KeyHash, k.Prefix,
		k.ExpiresAt, k.LastUsedAt, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("principalRepo.CreateAPIKey: %w", err)
	}

	return nil
}

func (r *PrincipalRepo) GetAPIKeyByPrefix(ctx context.Context, tenantID uuid.UUID, prefix string) (*domain.APIKey, error) {
	var key domain.APIKey

	// uuid.Nil means "any tenant": key lookup happens before a tenant
	// context exists.
	query := `SELECT id, tenant_id, principal_id, name, key_hash, prefix, expires_at, last_used_at, created_at
	          FROM api_keys WHERE prefix = $1`
	args := []any{prefix}
	if tenantID != uuid.Nil {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&key.ID, &key.TenantID, &key.PrincipalID, &key.Name, &key.KeyHash,
		&key.Prefix, &key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("principalRepo.GetAPIKeyByPrefix: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("principalRepo.GetAPIKeyByPrefix: %w", err)
	}

	return &key, nil
}

func (r *PrincipalRepo) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("principalRepo.UpdateAPIKeyLastUsed: %w", err)
	}

	return nil
}
