package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/adbroker/internal/api/v1"
	"github.com/gosuda/adbroker/internal/api/ws"
	"github.com/gosuda/adbroker/internal/auth"
	"github.com/gosuda/adbroker/internal/store/postgres"
	"github.com/gosuda/adbroker/internal/workflow"
)

func registerAuthRoutes(api huma.API, authSvc *auth.Service) {
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAPIRoutes(api huma.API, store *postgres.Store, orchestrator *workflow.Orchestrator, deps Deps) {
	v1.RegisterContextRoutes(api, store, orchestrator)
	v1.RegisterStepRoutes(api, store, orchestrator)
	v1.RegisterSubscriptionRoutes(api, store)
	v1.RegisterMediaBuyRoutes(api, store, orchestrator, deps.Poller, deps.Adapters)
}

func registerAdminRoutes(api huma.API, store *postgres.Store, authSvc *auth.Service) {
	v1.RegisterAdminRoutes(api, store, authSvc)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/contexts/{contextID}", hub.ServeContext)
	r.Get("/tenant", hub.ServeTenant)
}
