package postgres_test

import (
	v1 "github.com/gosuda/adbroker/internal/api/v1"
	"github.com/gosuda/adbroker/internal/domain"
	"github.com/gosuda/adbroker/internal/store/postgres"
	"github.com/gosuda/adbroker/internal/workflow"
)

// Compile-time checks that every repo implements its domain interface and
// that Store satisfies both consumer-side aggregates.
var (
	_ domain.TenantRepository           = (*postgres.TenantRepo)(nil)
	_ domain.PrincipalRepository        = (*postgres.PrincipalRepo)(nil)
	_ domain.ContextRepository          = (*postgres.ContextRepo)(nil)
	_ domain.WorkflowStepRepository     = (*postgres.WorkflowStepRepo)(nil)
	_ domain.ObjectMappingRepository    = (*postgres.ObjectMappingRepo)(nil)
	_ domain.DeliveryLogRepository      = (*postgres.DeliveryLogRepo)(nil)
	_ domain.PushSubscriptionRepository = (*postgres.PushSubscriptionRepo)(nil)
	_ domain.MediaBuyRepository         = (*postgres.MediaBuyRepo)(nil)

	_ workflow.Store = (*postgres.Store)(nil)
	_ v1.DataStore   = (*postgres.Store)(nil)
)
