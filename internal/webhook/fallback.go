package webhook

import (
	"context"
	"encoding/json"
	"errors"

	msgrepo "clinic_engage_backend/internal/messaging/repository"
	"clinic_engage_backend/platform/apperr"

	"github.com/google/uuid"
)

// maxRetries caps automatic and unforced manual retries of a fallback record.
const maxRetries = 3

func errInvalidEvent(message string) error {
	return apperr.Validation(message)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, msgrepo.ErrNotFound)
}

// statusCaptureWorthy reports whether a failed status callback belongs in the
// fallback queue. A malformed status fails validation identically on every
// replay, so it is surfaced to the provider instead of retried.
func statusCaptureWorthy(err error) bool {
	return !apperr.Is(err, apperr.KindValidation)
}

// canRetry is the retry-cap gate: a record at the cap is only retryable with
// force.
func canRetry(record *FallbackRecord, force bool) bool {
	return force || record.RetryCount < maxRetries
}

// Retry replays a captured event through the ingestion pipeline. The retry
// count advances on success and failure alike, so the cap bounds total
// attempts regardless of outcome.
func (s *Service) Retry(ctx context.Context, recordID uuid.UUID, force bool) (*FallbackRecord, error) {
	record, err := s.repo.GetFallback(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, apperr.NotFound("fallback record not found")
		}
		return nil, err
	}

	if !canRetry(record, force) {
		return nil, apperr.Conflict("retry limit reached; use force to retry anyway")
	}

	var ev InboundEvent
	if err := json.Unmarshal(record.Payload, &ev); err != nil {
		resolved, resolveErr := s.repo.ResolveFallback(ctx, record.ID, FallbackFailed, "unreadable payload: "+err.Error())
		if resolveErr != nil {
			return nil, resolveErr
		}
		return resolved, nil
	}

	attempt := record.RetryCount + 1
	replayErr := s.replay(ctx, ev, attempt)

	status := FallbackCompleted
	errText := ""
	if replayErr != nil {
		status = FallbackFailed
		errText = replayErr.Error()
	}

	resolved, err := s.repo.ResolveFallback(ctx, record.ID, status, errText)
	if err != nil {
		return nil, err
	}

	s.log.Info("fallback record retried",
		"recordId", record.ID, "attempt", attempt, "succeeded", replayErr == nil)
	return resolved, nil
}

// replay routes a captured event back through the matching pipeline path,
// tagged with the fallback strategy for metrics.
func (s *Service) replay(ctx context.Context, ev InboundEvent, attempt int) error {
	if ev.HasBody() {
		_, err := s.ingestMessage(ctx, ev, StrategyFallback, attempt)
		return err
	}
	return s.applyStatus(ctx, ev, StrategyFallback, attempt)
}

// RetrySweep retries every record still under the cap. Called by the
// scheduler at a fixed cadence; errors on individual records do not stop the
// sweep.
func (s *Service) RetrySweep(ctx context.Context, batchSize int) (retried, succeeded int, err error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	records, err := s.repo.ListRetryable(ctx, maxRetries, batchSize)
	if err != nil {
		return 0, 0, err
	}

	for i := range records {
		resolved, err := s.Retry(ctx, records[i].ID, false)
		if err != nil {
			s.log.Error("fallback sweep retry failed", "recordId", records[i].ID, "error", err)
			continue
		}
		retried++
		if resolved.Status == FallbackCompleted {
			succeeded++
		}
	}
	return retried, succeeded, nil
}

// ListFallback returns fallback records for the admin API.
func (s *Service) ListFallback(ctx context.Context, status string, limit int) ([]FallbackRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var filter *FallbackStatus
	if status != "" {
		st := FallbackStatus(status)
		switch st {
		case FallbackPendingReview, FallbackCompleted, FallbackFailed:
			filter = &st
		default:
			return nil, apperr.Validation("unknown fallback status")
		}
	}
	return s.repo.ListFallback(ctx, filter, limit)
}
