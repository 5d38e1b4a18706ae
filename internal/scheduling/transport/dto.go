// Package transport defines request/response DTOs for the scheduling module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// SlotResponse is one bookable start time on a date.
type SlotResponse struct {
	StartUTC     time.Time `json:"startUtc"`
	DisplayLabel string    `json:"displayLabel"`
	Available    bool      `json:"available"`
}

// AvailabilityResponse is the slot list for one calendar date.
type AvailabilityResponse struct {
	Date       string         `json:"date"`
	Selectable bool           `json:"selectable"`
	Slots      []SlotResponse `json:"slots"`
}

// SelectableDatesResponse lists which upcoming dates can be offered.
type SelectableDatesResponse struct {
	Dates []DateSelectability `json:"dates"`
}

// DateSelectability reports one date's bookability.
type DateSelectability struct {
	Date       string `json:"date"`
	Selectable bool   `json:"selectable"`
}

// BookAppointmentRequest books a slot for a contact.
type BookAppointmentRequest struct {
	ContactID uuid.UUID `json:"contactId" validate:"required"`
	StartUTC  time.Time `json:"startUtc" validate:"required"`
}

// RescheduleAppointmentRequest moves an appointment to a new slot.
type RescheduleAppointmentRequest struct {
	StartUTC time.Time `json:"startUtc" validate:"required"`
}

// AppointmentResponse is the API shape of an appointment.
type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	ContactID   uuid.UUID `json:"contactId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Timezone    string    `json:"timezone"`
	Status      string    `json:"status"`
	CancelToken uuid.UUID `json:"cancelToken"`
	CreatedAt   time.Time `json:"createdAt"`
}

// WeeklyTemplateResponse is the recurring availability template, keyed by
// weekday number (0=Sunday).
type WeeklyTemplateResponse struct {
	Windows map[int][]WindowResponse `json:"windows"`
}

// WindowResponse is one wall-clock availability window.
type WindowResponse struct {
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "17:00"
}

// BlockedDatesResponse lists the date-specific overrides closing the calendar.
type BlockedDatesResponse struct {
	Dates []BlockedDateResponse `json:"dates"`
}

// BlockedDateResponse is one closed day.
type BlockedDateResponse struct {
	Date      string    `json:"date"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlockDateRequest closes one calendar date for booking.
type BlockDateRequest struct {
	Date   string `json:"date" validate:"required"`
	Reason string `json:"reason" validate:"max=200"`
}

// UpdateTemplateRequest replaces the weekly availability template.
type UpdateTemplateRequest struct {
	Windows map[int][]WindowRequest `json:"windows" validate:"required"`
}

// WindowRequest is one wall-clock window in "HH:MM" form.
type WindowRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}
