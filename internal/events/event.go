// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"clinic_engage_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Messaging Domain Events
// =============================================================================

// MessageReceived is published when an inbound SMS is persisted.
type MessageReceived struct {
	BaseEvent
	MessageID    uuid.UUID `json:"messageId"`
	ContactID    uuid.UUID `json:"contactId"`
	ContactName  string    `json:"contactName"`
	ContactPhone string    `json:"contactPhone"`
	Body         string    `json:"body"`
	IsNewContact bool      `json:"isNewContact"`
}

func (e MessageReceived) EventName() string { return "messaging.message.received" }

// MessageStatusUpdated is published when a delivery callback advances an
// outbound message's status.
type MessageStatusUpdated struct {
	BaseEvent
	MessageID    uuid.UUID `json:"messageId"`
	ContactID    uuid.UUID `json:"contactId"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

func (e MessageStatusUpdated) EventName() string { return "messaging.message.status_updated" }

// =============================================================================
// Scheduling Domain Events
// =============================================================================

// AppointmentBooked is published when an appointment is created in a free slot.
type AppointmentBooked struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	ContactID     uuid.UUID `json:"contactId"`
	ContactName   string    `json:"contactName"`
	ContactPhone  string    `json:"contactPhone"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Timezone      string    `json:"timezone"`
}

func (e AppointmentBooked) EventName() string { return "scheduling.appointment.booked" }

// AppointmentRescheduled is published when an appointment moves to a new instant.
type AppointmentRescheduled struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	ContactID     uuid.UUID `json:"contactId"`
	PreviousAt    time.Time `json:"previousAt"`
	ScheduledAt   time.Time `json:"scheduledAt"`
}

func (e AppointmentRescheduled) EventName() string { return "scheduling.appointment.rescheduled" }

// AppointmentCancelled is published when an appointment is cancelled.
type AppointmentCancelled struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	ContactID     uuid.UUID `json:"contactId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
}

func (e AppointmentCancelled) EventName() string { return "scheduling.appointment.cancelled" }

// =============================================================================
// Webhook Domain Events
// =============================================================================

// WebhookFallbackCaptured is published when primary ingestion fails and the raw
// event lands in the fallback queue. HadBody distinguishes message events from
// lower-priority status-only events.
type WebhookFallbackCaptured struct {
	BaseEvent
	RecordID   uuid.UUID `json:"recordId"`
	ProviderID string    `json:"providerId"`
	HadBody    bool      `json:"hadBody"`
	Error      string    `json:"error"`
}

func (e WebhookFallbackCaptured) EventName() string { return "webhook.fallback.captured" }
