// Package transport defines request/response DTOs for the contacts module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// ContactResponse is the API shape of a contact.
type ContactResponse struct {
	ID                uuid.UUID  `json:"id"`
	Phone             string     `json:"phone"`
	Name              string     `json:"name"`
	Email             *string    `json:"email,omitempty"`
	Status            string     `json:"status"`
	AppointmentStatus *string    `json:"appointmentStatus,omitempty"`
	AppointmentAt     *time.Time `json:"appointmentAt,omitempty"`
	MessageCount      int        `json:"messageCount"`
	LastMessageAt     *time.Time `json:"lastMessageAt,omitempty"`
	Tags              []string   `json:"tags"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// ListContactsRequest filters the contact list.
type ListContactsRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=ACTIVE INACTIVE PROSPECT CLIENT"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// ContactListResponse wraps a page of contacts.
type ContactListResponse struct {
	Items []ContactResponse `json:"items"`
}

// CreateContactRequest captures a manually entered lead.
type CreateContactRequest struct {
	Phone string   `json:"phone" validate:"required"`
	Name  string   `json:"name" validate:"required"`
	Email *string  `json:"email" validate:"omitempty,email"`
	Tags  []string `json:"tags"`
}

// UpdateStatusRequest changes a contact's lifecycle status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE PROSPECT CLIENT"`
}
