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

type MediaBuyRepo struct {
	pool *pgxpool.Pool
}

func NewMediaBuyRepo(pool *pgxpool.Pool) *MediaBuyRepo {
	return &MediaBuyRepo{pool: pool}
}

func (r *MediaBuyRepo) Create(ctx context.Context, mb *domain.MediaBuy) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO media_buys
		   (id, tenant_id, principal_id, context_id, order_name, budget_micros,
		    currency, flight_start, flight_end, ad_server_order_id, status,
		    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		mb.ID, mb.TenantID, mb.PrincipalID, mb.ContextID, mb.OrderName,
		mb.BudgetMicros, mb.Currency, mb.FlightStart, mb.FlightEnd,
		mb.AdServerOrderID, mb.Status, mb.CreatedAt, mb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("mediaBuyRepo.Create: %w", err)
	}

	return nil
}

func (r *MediaBuyRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.MediaBuy, error) {
	var mb domain.MediaBuy

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, principal_id, context_id, order_name, budget_micros,
		        currency, flight_start, flight_end, ad_server_order_id, status,
		        created_at, updated_at
		 FROM media_buys WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(
		&mb.ID, &mb.TenantID, &mb.PrincipalID, &mb.ContextID, &mb.OrderName,
		&mb.BudgetMicros, &mb.Currency, &mb.FlightStart, &mb.FlightEnd,
		&mb.AdServerOrderID, &mb.Status, &mb.CreatedAt, &mb.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mediaBuyRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mediaBuyRepo.GetByID: %w", err)
	}

	return &mb, nil
}

func (r *MediaBuyRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status domain.MediaBuyStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE media_buys SET status = $3, updated_at = now()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, status,
	)
	if err != nil {
		return fmt.Errorf("mediaBuyRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mediaBuyRepo.UpdateStatus: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *MediaBuyRepo) SetAdServerOrderID(ctx context.Context, tenantID, id uuid.UUID, orderID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE media_buys SET ad_server_order_id = $3, updated_at = now()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, orderID,
	)
	if err != nil {
		return fmt.Errorf("mediaBuyRepo.SetAdServerOrderID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mediaBuyRepo.SetAdServerOrderID: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *MediaBuyRepo) ListByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID, limit, offset int) ([]*domain.MediaBuy, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, principal_id, context_id, order_name, budget_micros,
		        currency, flight_start, flight_end, ad_server_order_id, status,
		        created_at, updated_at
		 FROM media_buys
		 WHERE tenant_id = $1 AND principal_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID, principalID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("mediaBuyRepo.ListByPrincipal: %w", err)
	}
	defer rows.Close()

	var buys []*domain.MediaBuy
	for rows.Next() {
		var mb domain.MediaBuy

		err = rows.Scan(
			&mb.ID, &mb.TenantID, &mb.PrincipalID, &mb.ContextID, &mb.OrderName,
			&mb.BudgetMicros, &mb.Currency, &mb.FlightStart, &mb.FlightEnd,
			&mb.AdServerOrderID, &mb.Status, &mb.CreatedAt, &mb.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("mediaBuyRepo.ListByPrincipal: scan: %w", err)
		}

		buys = append(buys, &mb)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("mediaBuyRepo.ListByPrincipal: rows: %w", err)
	}

	return buys, nil
}
