// Package service implements the messaging use cases: sending operator
// messages and scripts, and reconstructing conversation position on read.
package service

import (
	"context"
	"errors"
	"time"

	"clinic_engage_backend/internal/adapters/storage"
	contactsrepo "clinic_engage_backend/internal/contacts/repository"
	"clinic_engage_backend/internal/events"
	"clinic_engage_backend/internal/messaging/flow"
	"clinic_engage_backend/internal/messaging/repository"
	"clinic_engage_backend/internal/messaging/transport"
	"clinic_engage_backend/platform/apperr"
	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
)

// Gateway abstracts the SMS provider client.
type Gateway interface {
	Send(ctx context.Context, toNumber, body string) (string, error)
}

// ContactDirectory is the slice of the contacts service messaging depends on.
type ContactDirectory interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*contactsrepo.Contact, error)
	RecordMessageActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

// MediaStore serves presigned download links for stored MMS media. Nil when
// object storage is not configured.
type MediaStore interface {
	DownloadURL(ctx context.Context, fileKey string) (*storage.PresignedURL, error)
}

// Service coordinates message persistence, the gateway and the conversation
// flow reconstructor.
type Service struct {
	repo          *repository.Repository
	gateway       Gateway
	contacts      ContactDirectory
	reconstructor *flow.Reconstructor
	dispatcher    *flow.Dispatcher
	catalog       *flow.Catalog
	media         MediaStore
	bus           events.Bus
	log           *logger.Logger

	clinicName  string
	bookingLink string
	location    *time.Location
}

// Options carries the static rendering context for script templates.
type Options struct {
	ClinicName  string
	BookingLink string
	Location    *time.Location
}

// New creates a messaging service. gateway may be nil when no SMS provider is
// configured; sends then fail with an unavailable error instead of panicking.
func New(repo *repository.Repository, gw Gateway, contacts ContactDirectory,
	catalog *flow.Catalog, dispatcher *flow.Dispatcher, bus events.Bus,
	log *logger.Logger, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:          repo,
		gateway:       gw,
		contacts:      contacts,
		reconstructor: flow.NewReconstructor(catalog),
		dispatcher:    dispatcher,
		catalog:       catalog,
		bus:           bus,
		log:           log,
		clinicName:    opts.ClinicName,
		bookingLink:   opts.BookingLink,
		location:      loc,
	}
}

// GetConversation returns a contact's message history together with the
// reconstructed script position and the next candidate replies.
func (s *Service) GetConversation(ctx context.Context, contactID uuid.UUID) (transport.ConversationResponse, error) {
	contact, err := s.contacts.GetEntity(ctx, contactID)
	if err != nil {
		return transport.ConversationResponse{}, err
	}

	messages, err := s.repo.ListByContact(ctx, contactID)
	if err != nil {
		return transport.ConversationResponse{}, err
	}

	result := s.reconstructor.Reconstruct(toFlowMessages(messages), s.renderContext(contact))

	resp := transport.ConversationResponse{
		Messages:   make([]transport.MessageResponse, len(messages)),
		Waiting:    result.Waiting,
		Candidates: make([]transport.CandidateResponse, len(result.Candidates)),
	}
	for i := range messages {
		resp.Messages[i] = toMessageResponse(&messages[i])
	}
	for i, c := range result.Candidates {
		resp.Candidates[i] = toCandidateResponse(c)
	}
	if result.LastNode != nil {
		node := string(*result.LastNode)
		resp.LastNode = &node
	}
	if result.PendingAction != nil {
		action := string(result.PendingAction.Kind)
		resp.PendingAction = &action
	}
	return resp, nil
}

// SetMediaStore injects the media store for MMS download links.
func (s *Service) SetMediaStore(store MediaStore) {
	s.media = store
}

// GetMessageMedia returns presigned download links for a message's stored
// media. The contact id guards against reading another contact's message.
func (s *Service) GetMessageMedia(ctx context.Context, contactID, messageID uuid.UUID) ([]transport.MediaLinkResponse, error) {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("message not found")
		}
		return nil, err
	}
	if msg.ContactID != contactID {
		return nil, apperr.NotFound("message not found")
	}
	if len(msg.MediaKeys) == 0 {
		return []transport.MediaLinkResponse{}, nil
	}
	if s.media == nil {
		return nil, apperr.Unavailable("media storage not configured")
	}

	links := make([]transport.MediaLinkResponse, 0, len(msg.MediaKeys))
	for _, key := range msg.MediaKeys {
		presigned, err := s.media.DownloadURL(ctx, key)
		if err != nil {
			return nil, err
		}
		links = append(links, transport.MediaLinkResponse{
			FileKey:   presigned.FileKey,
			URL:       presigned.URL,
			ExpiresAt: presigned.ExpiresAt,
		})
	}
	return links, nil
}

// SendMessage sends a free-form operator message to the contact.
func (s *Service) SendMessage(ctx context.Context, contactID uuid.UUID, req transport.SendMessageRequest) (transport.MessageResponse, error) {
	return s.send(ctx, contactID, req.Body)
}

// SendScript renders a catalog node for the contact and sends it.
func (s *Service) SendScript(ctx context.Context, contactID uuid.UUID, req transport.SendScriptRequest) (transport.MessageResponse, error) {
	node, ok := s.catalog.Get(flow.NodeID(req.NodeID))
	if !ok {
		return transport.MessageResponse{}, apperr.Validation("unknown script node")
	}

	contact, err := s.contacts.GetEntity(ctx, contactID)
	if err != nil {
		return transport.MessageResponse{}, err
	}

	body := flow.Render(node.Template, s.renderContext(contact))
	return s.send(ctx, contactID, body)
}

// SendAppointmentReminder sends the reminder script to the contact. Called by
// the scheduler worker when a reminder task fires.
func (s *Service) SendAppointmentReminder(ctx context.Context, contactID uuid.UUID) error {
	node, ok := s.catalog.Get(flow.NodeReminder)
	if !ok {
		return apperr.Internal("reminder script node missing from catalog")
	}

	contact, err := s.contacts.GetEntity(ctx, contactID)
	if err != nil {
		return err
	}

	body := flow.Render(node.Template, s.renderContext(contact))
	_, err = s.send(ctx, contactID, body)
	return err
}

// DispatchAction executes a pending conversation action (reschedule, cancel)
// and returns the script reflecting the real outcome. The script is returned
// for the operator to send; nothing is sent automatically.
func (s *Service) DispatchAction(ctx context.Context, contactID uuid.UUID, req transport.DispatchActionRequest) (transport.DispatchActionResponse, error) {
	contact, err := s.contacts.GetEntity(ctx, contactID)
	if err != nil {
		return transport.DispatchActionResponse{}, err
	}

	candidate, dispatchErr := s.dispatcher.Dispatch(ctx, contactID,
		flow.Action{Kind: flow.ActionKind(req.Action)}, s.renderContext(contact))

	return transport.DispatchActionResponse{
		Succeeded: dispatchErr == nil,
		Script:    toCandidateResponse(candidate),
	}, nil
}

func (s *Service) send(ctx context.Context, contactID uuid.UUID, body string) (transport.MessageResponse, error) {
	contact, err := s.contacts.GetEntity(ctx, contactID)
	if err != nil {
		return transport.MessageResponse{}, err
	}
	if s.gateway == nil {
		return transport.MessageResponse{}, apperr.Unavailable("sms gateway not configured")
	}

	saved, err := s.repo.InsertOutbound(ctx, repository.Message{
		ID:        uuid.New(),
		ContactID: contactID,
		Body:      body,
	})
	if err != nil {
		return transport.MessageResponse{}, err
	}

	providerID, err := s.gateway.Send(ctx, contact.Phone, body)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, saved.ID, err.Error()); markErr != nil {
			s.log.DatabaseError("mark message failed", markErr)
		}
		s.log.GatewayError("send sms", err)
		return transport.MessageResponse{}, apperr.Wrap(apperr.KindUnavailable, "message could not be sent", err)
	}

	if err := s.repo.MarkSent(ctx, saved.ID, providerID); err != nil {
		s.log.DatabaseError("mark message sent", err)
	}
	if err := s.contacts.RecordMessageActivity(ctx, contactID, saved.CreatedAt); err != nil {
		s.log.DatabaseError("record message activity", err)
	}

	saved.Status = repository.StatusSent
	saved.ProviderMessageID = &providerID
	return toMessageResponse(saved), nil
}

// RecordInbound stores an inbound message idempotently and bumps the contact
// aggregate only on first ingestion. Used by webhook processing. The returned
// bool reports whether this delivery was the first one.
func (s *Service) RecordInbound(ctx context.Context, contact *contactsrepo.Contact, isNewContact bool, body, providerMessageID string, mediaKeys []string) (*repository.Message, bool, error) {
	saved, created, err := s.repo.InsertInbound(ctx, repository.Message{
		ID:                uuid.New(),
		ContactID:         contact.ID,
		Body:              body,
		ProviderMessageID: &providerMessageID,
		MediaKeys:         mediaKeys,
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		return saved, false, nil
	}

	if err := s.contacts.RecordMessageActivity(ctx, contact.ID, saved.CreatedAt); err != nil {
		s.log.DatabaseError("record message activity", err)
	}
	s.bus.Publish(ctx, events.MessageReceived{
		BaseEvent:    events.NewBaseEvent(),
		MessageID:    saved.ID,
		ContactID:    contact.ID,
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
		Body:         body,
		IsNewContact: isNewContact,
	})
	return saved, true, nil
}

// ApplyStatusCallback updates an outbound message from a delivery callback.
// Returns repository.ErrNotFound when the provider id is unknown.
func (s *Service) ApplyStatusCallback(ctx context.Context, providerMessageID string, status repository.Status, errorMessage *string) error {
	if err := s.repo.UpdateStatusByProviderID(ctx, providerMessageID, status, errorMessage); err != nil {
		return err
	}

	updated, err := s.repo.GetByProviderID(ctx, providerMessageID, repository.DirectionOutbound)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.DatabaseError("load message after status update", err)
		}
		return nil
	}

	event := events.MessageStatusUpdated{
		BaseEvent: events.NewBaseEvent(),
		MessageID: updated.ID,
		ContactID: updated.ContactID,
		Status:    string(status),
	}
	if errorMessage != nil {
		event.ErrorMessage = *errorMessage
	}
	s.bus.Publish(ctx, event)
	return nil
}

func (s *Service) renderContext(contact *contactsrepo.Contact) flow.RenderContext {
	return flow.RenderContext{
		ContactName:   firstName(contact.Name, contact.Phone),
		ClinicName:    s.clinicName,
		BookingLink:   s.bookingLink,
		AppointmentAt: contact.AppointmentAt,
		Location:      s.location,
	}
}

// firstName extracts a friendly first name; auto-created contacts carry their
// phone number as a name, which reads poorly in a script.
func firstName(name, phone string) string {
	if name == "" || name == phone {
		return ""
	}
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	return name
}

func toFlowMessages(messages []repository.Message) []flow.Message {
	out := make([]flow.Message, len(messages))
	for i, m := range messages {
		out[i] = flow.Message{
			Direction: flow.Direction(m.Direction),
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		}
	}
	return out
}

func toMessageResponse(m *repository.Message) transport.MessageResponse {
	return transport.MessageResponse{
		ID:                m.ID,
		ContactID:         m.ContactID,
		Direction:         string(m.Direction),
		Body:              m.Body,
		Status:            string(m.Status),
		ProviderMessageID: m.ProviderMessageID,
		ErrorMessage:      m.ErrorMessage,
		MediaKeys:         m.MediaKeys,
		CreatedAt:         m.CreatedAt,
	}
}

func toCandidateResponse(c flow.Candidate) transport.CandidateResponse {
	return transport.CandidateResponse{
		NodeID:   string(c.Node.ID),
		Category: string(c.Node.Category),
		Rendered: c.Rendered,
	}
}
