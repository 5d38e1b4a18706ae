package webhook

import (
	"clinic_engage_backend/internal/events"
	apphttp "clinic_engage_backend/internal/http"
	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	svc     *Service
	token   string
}

// NewModule creates and initializes the webhook module.
func NewModule(pool *pgxpool.Pool, cfg config.WebhookConfig, contacts ContactResolver,
	messaging MessageRecorder, media MediaStorer, bus events.Bus, log *logger.Logger) *Module {

	repo := NewRepository(pool)
	svc := NewService(repo, contacts, messaging, media, bus, log)

	return &Module{
		handler: NewHandler(svc),
		svc:     svc,
		token:   cfg.GetWebhookToken(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// Service exposes the ingestion service to the scheduler worker (fallback
// retry sweep).
func (m *Module) Service() *Service {
	return m.svc
}

// RegisterRoutes mounts the public provider callbacks and the operator-facing
// fallback/metrics admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Provider callbacks are public but token-authenticated and rate limited.
	public := ctx.Engine.Group("/api/webhook")
	public.Use(ctx.WebhookRateLimiter.RateLimit(), TokenAuthMiddleware(m.token))
	public.POST("/sms", m.handler.ReceiveMessage)
	public.POST("/sms/status", m.handler.ReceiveStatus)

	admin := ctx.Protected.Group("/webhook")
	admin.GET("/fallback", m.handler.ListFallback)
	admin.POST("/fallback/:id/retry", m.handler.RetryFallback)
	admin.GET("/metrics", m.handler.ListMetrics)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
