// Package webhook's module wires Cloud API ingestion into the HTTP app.
package webhook

import (
	"orcazap/internal/conversation"
	apphttp "orcazap/internal/http"
	"orcazap/internal/tenant"
	"orcazap/platform/config"
	"orcazap/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler   *Handler
	appSecret string
	log       *logger.Logger
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(pool *pgxpool.Pool, deduper Deduper, enqueuer Enqueuer, cfg config.WhatsAppConfig, log *logger.Logger) *Module {
	service := NewService(
		tenant.NewRepository(pool),
		conversation.NewRepository(pool),
		deduper,
		enqueuer,
		log,
	)

	return &Module{
		handler:   NewHandler(service),
		appSecret: cfg.GetWhatsAppAppSecret(),
		log:       log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook/whatsapp")
	group.Use(ctx.WebhookRateLimiter.RateLimit())

	// Subscription handshake carries no signature.
	group.GET("", m.handler.HandleVerify)
	group.POST("", SignatureMiddleware(m.appSecret, m.log), m.handler.HandleNotification)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
