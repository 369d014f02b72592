package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/adbroker/internal/domain"
)

type Store struct {
	pool          *pgxpool.Pool
	tenants       *TenantRepo
	principals    *PrincipalRepo
	contexts      *ContextRepo
	steps         *WorkflowStepRepo
	mappings      *ObjectMappingRepo
	deliveryLogs  *DeliveryLogRepo
	subscriptions *PushSubscriptionRepo
	mediaBuys     *MediaBuyRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:          pool,
		tenants:       NewTenantRepo(pool),
		principals:    NewPrincipalRepo(pool),
		contexts:      NewContextRepo(pool),
		steps:         NewWorkflowStepRepo(pool),
		mappings:      NewObjectMappingRepo(pool),
		deliveryLogs:  NewDeliveryLogRepo(pool),
		subscriptions: NewPushSubscriptionRepo(pool),
		mediaBuys:     NewMediaBuyRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tenants() domain.TenantRepository                     { return s.tenants }
func (s *Store) Principals() domain.PrincipalRepository               { return s.principals }
func (s *Store) Contexts() domain.ContextRepository                   { return s.contexts }
func (s *Store) WorkflowSteps() domain.WorkflowStepRepository         { return s.steps }
func (s *Store) ObjectMappings() domain.ObjectMappingRepository       { return s.mappings }
func (s *Store) DeliveryLogs() domain.DeliveryLogRepository           { return s.deliveryLogs }
func (s *Store) PushSubscriptions() domain.PushSubscriptionRepository { return s.subscriptions }
func (s *Store) MediaBuys() domain.MediaBuyRepository                 { return s.mediaBuys }
