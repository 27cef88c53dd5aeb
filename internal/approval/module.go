// Package approval's module wires the review-queue API into the HTTP app.
package approval

import (
	"time"

	apphttp "orcazap/internal/http"
	"orcazap/platform/logger"
	"orcazap/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the approval bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the approval module with all its dependencies.
func NewModule(pool *pgxpool.Pool, sender Sender, messagingWindow time.Duration, val *validator.Validator, log *logger.Logger) *Module {
	store := NewStore(pool)
	service := NewService(store, sender, messagingWindow, log)
	handler := NewHandler(service, val)

	return &Module{
		handler: handler,
		service: service,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "approval"
}

// Service exposes the approval workflow for other components.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts approval routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/approvals")
	group.GET("/pending", m.handler.HandleListPending)
	group.POST("/:approvalId/approve", m.handler.HandleApprove)
	group.POST("/:approvalId/reject", m.handler.HandleReject)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
