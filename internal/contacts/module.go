// Package contacts provides the contact/lead bounded context module.
package contacts

import (
	"clinic_engage_backend/internal/contacts/handler"
	"clinic_engage_backend/internal/contacts/repository"
	"clinic_engage_backend/internal/contacts/service"
	apphttp "clinic_engage_backend/internal/http"
	"clinic_engage_backend/platform/logger"
	"clinic_engage_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the contacts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the contacts module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)

	return &Module{
		handler: handler.New(svc, val),
		svc:     svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contacts"
}

// Service exposes the contact service to sibling modules (webhook ingestion).
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts contact routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/contacts"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
