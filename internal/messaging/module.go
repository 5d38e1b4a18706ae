// Package messaging provides the conversation bounded context module: message
// persistence, the SMS gateway client and the scripted-flow reconstructor.
package messaging

import (
	"time"

	"clinic_engage_backend/internal/adapters/storage"
	contactsservice "clinic_engage_backend/internal/contacts/service"
	"clinic_engage_backend/internal/events"
	apphttp "clinic_engage_backend/internal/http"
	"clinic_engage_backend/internal/messaging/flow"
	"clinic_engage_backend/internal/messaging/gateway"
	"clinic_engage_backend/internal/messaging/handler"
	"clinic_engage_backend/internal/messaging/repository"
	"clinic_engage_backend/internal/messaging/service"
	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"
	"clinic_engage_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the slice of application config the messaging module needs.
type Config interface {
	config.SMSConfig
	config.ClinicConfig
	config.BookingConfig
}

// Module is the messaging bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the messaging module. booking is the
// scheduling collaborator the flow dispatcher calls for reschedules and
// cancellations; media may be nil when object storage is not configured.
func NewModule(pool *pgxpool.Pool, cfg Config, contacts *contactsservice.Service,
	booking flow.BookingService, media *storage.MediaStore,
	bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {

	location, err := time.LoadLocation(cfg.GetPracticeTimezone())
	if err != nil {
		log.Error("invalid practice timezone, falling back to UTC", "timezone", cfg.GetPracticeTimezone())
		location = time.UTC
	}

	catalog := flow.DefaultCatalog()
	dispatcher := flow.NewDispatcher(booking, catalog, log)

	var gw service.Gateway
	if client := gateway.NewClient(cfg, log); client != nil {
		gw = client
	}

	repo := repository.New(pool)
	svc := service.New(repo, gw, contacts, catalog, dispatcher, bus, log, service.Options{
		ClinicName:  cfg.GetClinicName(),
		BookingLink: cfg.GetBookingLink(),
		Location:    location,
	})
	if media != nil {
		svc.SetMediaStore(media)
	}

	return &Module{
		handler: handler.New(svc, val),
		svc:     svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "messaging"
}

// Service exposes the messaging service to sibling modules (webhook ingestion).
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts conversation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/conversations"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
