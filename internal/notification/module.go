// Package notification turns domain events into operator inbox entries and
// alert emails. It subscribes to the event bus and inverts the dependency:
// domain modules never talk to SMTP or the inbox directly.
package notification

import (
	"context"
	"fmt"
	"time"

	"clinic_engage_backend/internal/email"
	"clinic_engage_backend/internal/events"
	apphttp "clinic_engage_backend/internal/http"
	"clinic_engage_backend/internal/notification/inapp"
	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the slice of application config the notification module needs.
type Config interface {
	config.EmailConfig
	config.ClinicConfig
	config.BookingConfig
}

// Module handles notification-related event subscriptions and the inbox API.
type Module struct {
	inbox          *inapp.Service
	handler        *Handler
	sender         email.Sender
	alertRecipient string
	location       *time.Location
	log            *logger.Logger
}

// New creates the notification module. The email sender is optional; when nil
// (email disabled) only in-app notifications are produced.
func New(pool *pgxpool.Pool, cfg Config, log *logger.Logger) *Module {
	inbox := inapp.NewService(inapp.NewRepository(pool), log)

	var sender email.Sender
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetClinicName(),
		)
	}

	location, err := time.LoadLocation(cfg.GetPracticeTimezone())
	if err != nil {
		log.Warn("invalid practice timezone, falling back to UTC", "timezone", cfg.GetPracticeTimezone())
		location = time.UTC
	}

	return &Module{
		inbox:          inbox,
		handler:        NewHandler(inbox),
		sender:         sender,
		alertRecipient: cfg.GetAlertRecipient(),
		location:       location,
		log:            log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the operator inbox API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	notifications.GET("", m.handler.List)
	notifications.POST("/:id/read", m.handler.MarkRead)
	notifications.POST("/read-all", m.handler.MarkAllRead)
}

// RegisterHandlers subscribes to the domain events the module reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.MessageReceived{}.EventName(), m)
	bus.Subscribe(events.AppointmentBooked{}.EventName(), m)
	bus.Subscribe(events.AppointmentCancelled{}.EventName(), m)
	bus.Subscribe(events.WebhookFallbackCaptured{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method. Notification
// delivery is best-effort; failures are logged by the inbox service and never
// fail the originating operation.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.MessageReceived:
		return m.handleMessageReceived(ctx, e)
	case events.AppointmentBooked:
		return m.handleAppointmentBooked(ctx, e)
	case events.AppointmentCancelled:
		return m.handleAppointmentCancelled(ctx, e)
	case events.WebhookFallbackCaptured:
		return m.handleFallbackCaptured(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleMessageReceived(ctx context.Context, e events.MessageReceived) error {
	name := e.ContactName
	if name == "" {
		name = e.ContactPhone
	}

	title := "New message from " + name
	if e.IsNewContact {
		title = "New contact: " + name
	}

	messageID := e.MessageID
	return m.inbox.Send(ctx, inapp.SendParams{
		Title:        title,
		Content:      truncate(e.Body, 160),
		ResourceID:   &messageID,
		ResourceType: "message",
		Category:     "info",
	})
}

func (m *Module) handleAppointmentBooked(ctx context.Context, e events.AppointmentBooked) error {
	when := e.ScheduledAt.In(m.location).Format("Monday, Jan 2 at 3:04 PM")

	appointmentID := e.AppointmentID
	if err := m.inbox.Send(ctx, inapp.SendParams{
		Title:        "Appointment booked",
		Content:      fmt.Sprintf("%s booked a session for %s.", displayName(e.ContactName, e.ContactPhone), when),
		ResourceID:   &appointmentID,
		ResourceType: "appointment",
		Category:     "success",
	}); err != nil {
		return err
	}

	if m.sender != nil && m.alertRecipient != "" {
		if err := m.sender.SendBookingAlertEmail(ctx, m.alertRecipient,
			displayName(e.ContactName, e.ContactPhone), when); err != nil {
			m.log.Error("failed to send booking alert email",
				"appointmentId", e.AppointmentID, "error", err)
		}
	}
	return nil
}

func (m *Module) handleAppointmentCancelled(ctx context.Context, e events.AppointmentCancelled) error {
	when := e.ScheduledAt.In(m.location).Format("Monday, Jan 2 at 3:04 PM")

	appointmentID := e.AppointmentID
	return m.inbox.Send(ctx, inapp.SendParams{
		Title:        "Appointment cancelled",
		Content:      "The session on " + when + " was cancelled.",
		ResourceID:   &appointmentID,
		ResourceType: "appointment",
		Category:     "warning",
	})
}

// handleFallbackCaptured alerts the operator about failed webhook ingestion.
// Status-only events stay in-app; message-bearing events also get an email
// because an unprocessed patient message is time sensitive.
func (m *Module) handleFallbackCaptured(ctx context.Context, e events.WebhookFallbackCaptured) error {
	category := "warning"
	title := "Delivery callback needs review"
	if e.HadBody {
		category = "error"
		title = "Inbound message needs review"
	}

	recordID := e.RecordID
	if err := m.inbox.Send(ctx, inapp.SendParams{
		Title:        title,
		Content:      "Webhook event " + e.ProviderID + " failed processing: " + e.Error,
		ResourceID:   &recordID,
		ResourceType: "webhook_fallback",
		Category:     category,
	}); err != nil {
		return err
	}

	if e.HadBody && m.sender != nil && m.alertRecipient != "" {
		if err := m.sender.SendFallbackAlertEmail(ctx, m.alertRecipient,
			e.RecordID.String(), e.ProviderID, e.Error); err != nil {
			m.log.Error("failed to send fallback alert email",
				"recordId", e.RecordID, "error", err)
		}
	}
	return nil
}

func displayName(name, phone string) string {
	if name != "" {
		return name
	}
	return phone
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
