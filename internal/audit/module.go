package audit

import (
	apphttp "dialer_sync_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the audit bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
}

// NewModule creates and initializes the audit module.
func NewModule(pool *pgxpool.Pool, retrier Retrier) *Module {
	repo := NewRepository(pool)
	handler := NewHandler(repo, retrier)

	return &Module{
		handler: handler,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "audit"
}

// Repository exposes the sync log for the router and job worker.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts the audit query API and the operator endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	auditGroup := ctx.V1.Group("/audit")
	auditGroup.GET("/events/:id", m.handler.GetByCorrelation)
	auditGroup.GET("/log", m.handler.ListLog)

	ctx.Admin.POST("/quarantine", m.handler.QuarantineEvent)
	ctx.Admin.GET("/quarantine", m.handler.ListQuarantined)
	ctx.Admin.DELETE("/quarantine/:id", m.handler.UnquarantineEvent)
	ctx.Admin.POST("/events/:id/retry", m.handler.RetryEvent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
