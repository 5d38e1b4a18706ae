// Package transport defines request/response DTOs for the messaging module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// MessageResponse is the API shape of a stored message.
type MessageResponse struct {
	ID                uuid.UUID `json:"id"`
	ContactID         uuid.UUID `json:"contactId"`
	Direction         string    `json:"direction"`
	Body              string    `json:"body"`
	Status            string    `json:"status"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	ErrorMessage      *string   `json:"errorMessage,omitempty"`
	MediaKeys         []string  `json:"mediaKeys,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// CandidateResponse is a suggested script rendered for the contact.
type CandidateResponse struct {
	NodeID   string `json:"nodeId"`
	Category string `json:"category"`
	Rendered string `json:"rendered"`
}

// ConversationResponse is a contact's history plus the reconstructed position.
type ConversationResponse struct {
	Messages      []MessageResponse   `json:"messages"`
	Waiting       bool                `json:"waiting"`
	LastNode      *string             `json:"lastNode,omitempty"`
	Candidates    []CandidateResponse `json:"candidates"`
	PendingAction *string             `json:"pendingAction,omitempty"`
}

// MediaLinkResponse is a short-lived download link for a stored MMS attachment.
type MediaLinkResponse struct {
	FileKey   string    `json:"fileKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendMessageRequest sends a free-form operator message.
type SendMessageRequest struct {
	Body string `json:"body" validate:"required,max=1600"`
}

// SendScriptRequest sends a catalog script by node id.
type SendScriptRequest struct {
	NodeID string `json:"nodeId" validate:"required"`
}

// DispatchActionRequest executes a pending conversation action.
type DispatchActionRequest struct {
	Action string `json:"action" validate:"required,oneof=reschedule_today reschedule_tomorrow cancel"`
}

// DispatchActionResponse carries the script reflecting the action's outcome.
type DispatchActionResponse struct {
	Succeeded bool              `json:"succeeded"`
	Script    CandidateResponse `json:"script"`
}
