// Package webhook ingests SMS provider events: inbound messages and delivery
// status callbacks. Failures never drop an event; the raw payload lands in a
// retryable fallback queue, and every attempt is recorded as a metric.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contactsrepo "clinic_engage_backend/internal/contacts/repository"
	"clinic_engage_backend/internal/events"
	msgrepo "clinic_engage_backend/internal/messaging/repository"
	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	opIncomingMessage = "incoming_message"
	opStatusCallback  = "status_callback"
)

// InboundEvent is a provider webhook event. Body-bearing events are inbound
// messages; status-bearing events are delivery callbacks for outbound sends.
type InboundEvent struct {
	ProviderID   string      `json:"providerId"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	Body         *string     `json:"body,omitempty"`
	Status       *string     `json:"status,omitempty"`
	ErrorMessage *string     `json:"errorMessage,omitempty"`
	MediaItems   []MediaItem `json:"mediaItems,omitempty"`
}

// MediaItem is one MMS attachment still hosted on the provider's CDN.
type MediaItem struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// HasBody reports whether the event carries message content.
func (e InboundEvent) HasBody() bool {
	return e.Body != nil && *e.Body != ""
}

// IngestResult is the outcome of processing an inbound message event.
type IngestResult struct {
	MessageID    uuid.UUID
	ContactID    uuid.UUID
	IsNewContact bool
	Duplicate    bool
}

// ContactResolver is the slice of the contacts service ingestion depends on.
type ContactResolver interface {
	ResolveOrCreateByPhone(ctx context.Context, rawPhone string) (*contactsrepo.Contact, bool, error)
}

// MessageRecorder is the slice of the messaging service ingestion depends on.
type MessageRecorder interface {
	RecordInbound(ctx context.Context, contact *contactsrepo.Contact, isNewContact bool, body, providerMessageID string, mediaKeys []string) (*msgrepo.Message, bool, error)
	ApplyStatusCallback(ctx context.Context, providerMessageID string, status msgrepo.Status, errorMessage *string) error
}

// MediaStorer copies provider-hosted media into object storage. Nil when
// object storage is not configured.
type MediaStorer interface {
	StoreFromURL(ctx context.Context, providerMessageID, mediaURL, contentType string) (string, error)
}

// Service runs the webhook ingestion pipeline.
type Service struct {
	repo      *Repository
	contacts  ContactResolver
	messaging MessageRecorder
	media     MediaStorer
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a webhook ingestion service.
func NewService(repo *Repository, contacts ContactResolver, messaging MessageRecorder,
	media MediaStorer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		contacts:  contacts,
		messaging: messaging,
		media:     media,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// ProcessIncomingMessage runs the primary ingestion path for an inbound
// message. On failure the raw event is captured in the fallback queue; the
// event is never lost.
func (s *Service) ProcessIncomingMessage(ctx context.Context, ev InboundEvent) (IngestResult, error) {
	result, err := s.ingestMessage(ctx, ev, StrategyPrimary, 0)
	if err != nil {
		s.captureFallback(ctx, ev, err)
		return IngestResult{}, err
	}
	return result, nil
}

// ProcessStatusCallback applies a delivery status callback. A callback for an
// unknown provider id is recoverable (it can race the outbound-send write)
// and is logged rather than captured.
func (s *Service) ProcessStatusCallback(ctx context.Context, ev InboundEvent) error {
	if err := s.applyStatus(ctx, ev, StrategyPrimary, 0); err != nil {
		if statusCaptureWorthy(err) {
			s.captureFallback(ctx, ev, err)
		}
		return err
	}
	return nil
}

// ingestMessage is the shared message path for primary and fallback retries.
func (s *Service) ingestMessage(ctx context.Context, ev InboundEvent, strategy Strategy, attempt int) (IngestResult, error) {
	start := s.now()

	result, err := s.doIngestMessage(ctx, ev)
	s.recordMetric(ctx, opIncomingMessage, strategy, ev.ProviderID, attempt, start, err)
	if err != nil {
		return IngestResult{}, err
	}

	s.log.WebhookEvent(opIncomingMessage, ev.ProviderID, string(strategy), true, msSince(start, s.now()))
	return result, nil
}

func (s *Service) doIngestMessage(ctx context.Context, ev InboundEvent) (IngestResult, error) {
	contact, isNew, err := s.contacts.ResolveOrCreateByPhone(ctx, ev.From)
	if err != nil {
		return IngestResult{}, err
	}

	mediaKeys, err := s.storeMedia(ctx, ev)
	if err != nil {
		return IngestResult{}, err
	}

	body := ""
	if ev.Body != nil {
		body = *ev.Body
	}
	msg, created, err := s.messaging.RecordInbound(ctx, contact, isNew, body, ev.ProviderID, mediaKeys)
	if err != nil {
		return IngestResult{}, err
	}
	if !created {
		// Redelivery of an already-ingested provider id: no-op success.
		s.log.Info("duplicate webhook delivery ignored", "providerMessageId", ev.ProviderID)
	}

	return IngestResult{
		MessageID:    msg.ID,
		ContactID:    contact.ID,
		IsNewContact: isNew,
		Duplicate:    !created,
	}, nil
}

// storeMedia copies MMS attachments into object storage. A store failure
// fails ingestion so the event retries while the provider URLs are still
// valid. Without a configured store, media is dropped with a log line.
func (s *Service) storeMedia(ctx context.Context, ev InboundEvent) ([]string, error) {
	if len(ev.MediaItems) == 0 {
		return nil, nil
	}
	if s.media == nil {
		s.log.Warn("media store not configured, dropping attachments",
			"providerMessageId", ev.ProviderID, "count", len(ev.MediaItems))
		return nil, nil
	}

	keys := make([]string, 0, len(ev.MediaItems))
	for _, item := range ev.MediaItems {
		key, err := s.media.StoreFromURL(ctx, ev.ProviderID, item.URL, item.ContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to store media attachment: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Service) applyStatus(ctx context.Context, ev InboundEvent, strategy Strategy, attempt int) error {
	start := s.now()

	err := s.doApplyStatus(ctx, ev)
	s.recordMetric(ctx, opStatusCallback, strategy, ev.ProviderID, attempt, start, err)
	return err
}

func (s *Service) doApplyStatus(ctx context.Context, ev InboundEvent) error {
	if ev.Status == nil {
		return errInvalidEvent("status callback without a status")
	}

	status, ok := normalizeStatus(*ev.Status)
	if !ok {
		return errInvalidEvent("unrecognized delivery status " + *ev.Status)
	}

	err := s.messaging.ApplyStatusCallback(ctx, ev.ProviderID, status, ev.ErrorMessage)
	if err != nil {
		if errorsIsNotFound(err) {
			// Callbacks can arrive before the outbound-send write commits.
			s.log.Warn("status callback for unknown message", "providerMessageId", ev.ProviderID, "status", status)
			return nil
		}
		return err
	}
	return nil
}

// captureFallback persists the raw event for retry. HadBody distinguishes
// message events, which warrant a review notification, from status-only ones.
func (s *Service) captureFallback(ctx context.Context, ev InboundEvent, cause error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("failed to marshal fallback payload", "providerMessageId", ev.ProviderID, "error", err)
		return
	}

	record, err := s.repo.CreateFallback(ctx, FallbackRecord{
		ID:         uuid.New(),
		ProviderID: ev.ProviderID,
		Payload:    payload,
		HadBody:    ev.HasBody(),
		Error:      cause.Error(),
	})
	if err != nil {
		// Both the pipeline and the capture failed. Log loudly; the provider
		// will redeliver.
		s.log.Error("failed to capture webhook fallback", "providerMessageId", ev.ProviderID, "error", err)
		return
	}

	s.bus.Publish(ctx, events.WebhookFallbackCaptured{
		BaseEvent:  events.NewBaseEvent(),
		RecordID:   record.ID,
		ProviderID: record.ProviderID,
		HadBody:    record.HadBody,
		Error:      record.Error,
	})
	s.log.Warn("webhook event captured to fallback queue",
		"recordId", record.ID, "providerMessageId", ev.ProviderID, "hadBody", record.HadBody)
}

func (s *Service) recordMetric(ctx context.Context, operation string, strategy Strategy, providerID string, attempt int, start time.Time, cause error) {
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	err := s.repo.RecordMetric(ctx, Metric{
		Operation:  operation,
		Strategy:   strategy,
		ProviderID: providerID,
		Success:    cause == nil,
		Attempt:    attempt,
		DurationMs: msSince(start, s.now()),
		Error:      errText,
	})
	if err != nil {
		s.log.DatabaseError("record processing metric", err)
	}
}

// ListMetrics returns recent processing metrics for the admin API.
func (s *Service) ListMetrics(ctx context.Context, limit int) ([]Metric, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListMetrics(ctx, limit)
}

func normalizeStatus(provider string) (msgrepo.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "queued", "accepted":
		return msgrepo.StatusQueued, true
	case "sending":
		return msgrepo.StatusSending, true
	case "sent":
		return msgrepo.StatusSent, true
	case "delivered":
		return msgrepo.StatusDelivered, true
	case "failed":
		return msgrepo.StatusFailed, true
	case "undelivered":
		return msgrepo.StatusUndelivered, true
	}
	return "", false
}

func msSince(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}
