// Package intake provides the webhook ingestion bounded context module.
// This file defines the module that encapsulates intake setup and route
// registration.
package intake

import (
	apphttp "dialer_sync_backend/internal/http"
	"dialer_sync_backend/platform/config"
	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the intake bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	repo    *Repository
	cfg     config.IntakeConfig
}

// NewModule creates and initializes the intake module with all its dependencies.
func NewModule(pool *pgxpool.Pool, processor Processor, cfg config.IntakeConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, processor, log)
	handler := NewHandler(service, repo, val)

	return &Module{
		handler: handler,
		service: service,
		repo:    repo,
		cfg:     cfg,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "intake"
}

// Repository exposes the event store for the router and admin endpoints.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts intake routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	webhooks := ctx.V1.Group("/webhooks")
	webhooks.Use(SignatureRequired(m.cfg))
	webhooks.POST("/:source", m.handler.HandleWebhook)

	ctx.Admin.GET("/events", m.handler.ListEvents)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
