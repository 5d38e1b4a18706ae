// Package scheduling provides the appointment bounded context module: the
// availability engine, booking operations and the weekly template admin API.
package scheduling

import (
	"time"

	contactsservice "clinic_engage_backend/internal/contacts/service"
	"clinic_engage_backend/internal/events"
	apphttp "clinic_engage_backend/internal/http"
	"clinic_engage_backend/internal/scheduling/handler"
	"clinic_engage_backend/internal/scheduling/repository"
	"clinic_engage_backend/internal/scheduling/service"
	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"
	"clinic_engage_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the scheduling bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the scheduling module. reminders may be
// nil when no task queue is configured.
func NewModule(pool *pgxpool.Pool, cfg config.BookingConfig, contacts *contactsservice.Service,
	reminders service.ReminderScheduler, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {

	location, err := time.LoadLocation(cfg.GetPracticeTimezone())
	if err != nil {
		log.Error("invalid practice timezone, falling back to UTC", "timezone", cfg.GetPracticeTimezone())
		location = time.UTC
	}

	engine := service.NewEngine(location,
		cfg.GetSlotGranularityMinutes(),
		cfg.GetMinLeadTimeHours(),
		cfg.GetBookingHorizonBusinessDays())

	repo := repository.New(pool)
	svc := service.New(repo, contacts, engine, bus, reminders, log)

	return &Module{
		handler: handler.New(svc, val),
		svc:     svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scheduling"
}

// Service exposes the scheduling service to sibling modules (conversation
// flow dispatch, reminder worker).
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts scheduling routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/scheduling"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
