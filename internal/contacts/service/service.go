// Package service contains contact business logic: lead capture, lookup and
// lifecycle updates. Webhook ingestion resolves contacts through this service
// so an unknown sender still becomes a lead rather than a dropped message.
package service

import (
	"context"
	"errors"
	"time"

	"clinic_engage_backend/internal/contacts/repository"
	"clinic_engage_backend/internal/contacts/transport"
	"clinic_engage_backend/platform/apperr"
	"clinic_engage_backend/platform/logger"
	"clinic_engage_backend/platform/phone"

	"github.com/google/uuid"
)

// unknownTag marks contacts auto-created from an unrecognized inbound number.
const unknownTag = "Unknown"

// Service handles contact operations.
type Service struct {
	repo *repository.Repository
	log  *logger.Logger
}

// New creates a contact service.
func New(repo *repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create registers a manually captured lead.
func (s *Service) Create(ctx context.Context, req transport.CreateContactRequest) (transport.ContactResponse, error) {
	normalized := phone.NormalizeE164(req.Phone)
	if normalized == "" {
		return transport.ContactResponse{}, apperr.Validation("phone number is required")
	}

	saved, err := s.repo.Create(ctx, repository.Contact{
		ID:     uuid.New(),
		Phone:  normalized,
		Name:   req.Name,
		Email:  req.Email,
		Status: repository.StatusProspect,
		Tags:   req.Tags,
	})
	if err != nil {
		return transport.ContactResponse{}, err
	}
	return toResponse(saved), nil
}

// ResolveOrCreateByPhone finds the contact owning a phone number, creating a
// placeholder prospect when none exists. Returns whether a contact was created.
func (s *Service) ResolveOrCreateByPhone(ctx context.Context, rawPhone string) (*repository.Contact, bool, error) {
	normalized := phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return nil, false, apperr.Validation("phone number is required")
	}

	existing, err := s.repo.GetByPhone(ctx, normalized)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperr.Wrap(apperr.KindUnavailable, "contact lookup failed", err)
	}

	created, err := s.repo.Create(ctx, repository.Contact{
		ID:     uuid.New(),
		Phone:  normalized,
		Name:   normalized,
		Status: repository.StatusProspect,
		Tags:   []string{unknownTag},
	})
	if err != nil {
		// A concurrent webhook delivery may have created the row first.
		if apperr.Is(err, apperr.KindConflict) {
			existing, lookupErr := s.repo.GetByPhone(ctx, normalized)
			if lookupErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, apperr.Wrap(apperr.KindUnavailable, "contact creation failed", err)
	}

	s.log.Info("contact auto-created from inbound message", "contactId", created.ID, "phone", normalized)
	return created, true, nil
}

// GetEntity returns the stored contact for sibling modules that need more
// than the API shape (conversation rendering, scheduling).
func (s *Service) GetEntity(ctx context.Context, id uuid.UUID) (*repository.Contact, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("contact not found")
		}
		return nil, err
	}
	return contact, nil
}

// RecordMessageActivity bumps the contact's message counters.
func (s *Service) RecordMessageActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.repo.RecordMessageActivity(ctx, id, at)
}

// SetAppointment mirrors the contact's current appointment onto the aggregate.
func (s *Service) SetAppointment(ctx context.Context, id uuid.UUID, at *time.Time, status *repository.AppointmentStatus) error {
	return s.repo.SetAppointment(ctx, id, at, status)
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ContactResponse, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContactResponse{}, apperr.NotFound("contact not found")
		}
		return transport.ContactResponse{}, err
	}
	return toResponse(contact), nil
}

// List returns a page of contacts.
func (s *Service) List(ctx context.Context, req transport.ListContactsRequest) (transport.ContactListResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var status *repository.Status
	if req.Status != "" {
		st := repository.Status(req.Status)
		status = &st
	}

	items, err := s.repo.List(ctx, status, limit, max(req.Offset, 0))
	if err != nil {
		return transport.ContactListResponse{}, err
	}

	resp := transport.ContactListResponse{Items: make([]transport.ContactResponse, len(items))}
	for i := range items {
		resp.Items[i] = toResponse(&items[i])
	}
	return resp, nil
}

// UpdateStatus changes a contact's lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateStatusRequest) error {
	err := s.repo.UpdateStatus(ctx, id, repository.Status(req.Status))
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("contact not found")
	}
	return err
}

func toResponse(c *repository.Contact) transport.ContactResponse {
	resp := transport.ContactResponse{
		ID:            c.ID,
		Phone:         c.Phone,
		Name:          c.Name,
		Email:         c.Email,
		Status:        string(c.Status),
		AppointmentAt: c.AppointmentAt,
		MessageCount:  c.MessageCount,
		LastMessageAt: c.LastMessageAt,
		Tags:          c.Tags,
		CreatedAt:     c.CreatedAt,
	}
	if c.AppointmentStatus != nil {
		status := string(*c.AppointmentStatus)
		resp.AppointmentStatus = &status
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	return resp
}
