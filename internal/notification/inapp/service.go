package inapp

import (
	"context"
	"errors"

	"clinic_engage_backend/platform/apperr"
	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
)

// Service wraps the repository with pagination defaults and best-effort sends.
type Service struct {
	repo *Repository
	log  *logger.Logger
}

// NewService creates an in-app notification service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// SendParams describes a notification to deliver to the operator inbox.
type SendParams struct {
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string // "info", "success", "warning", "error"
}

// Send persists the notification. Failures are logged and returned; callers
// reacting to domain events are expected to drop the error.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	var resourceType *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}

	_, err := s.repo.Create(ctx, CreateParams{
		Title:        p.Title,
		Content:      p.Content,
		ResourceID:   p.ResourceID,
		ResourceType: resourceType,
		Category:     p.Category,
	})
	if err != nil {
		s.log.Error("failed to persist notification", "title", p.Title, "error", err)
		return err
	}
	return nil
}

// List returns a page of notifications plus total and unread counts.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]Notification, int, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	items, total, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, 0, err
	}

	unread, err := s.repo.CountUnread(ctx)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("notification not found")
		}
		return err
	}
	return nil
}

// MarkAllRead marks every unread notification as read.
func (s *Service) MarkAllRead(ctx context.Context) error {
	return s.repo.MarkAllRead(ctx)
}
