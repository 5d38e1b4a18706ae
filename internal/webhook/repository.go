package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRecordNotFound is returned when no fallback record matches the query.
var ErrRecordNotFound = errors.New("fallback record not found")

// FallbackStatus is the review lifecycle of a captured webhook event.
type FallbackStatus string

const (
	FallbackPendingReview FallbackStatus = "pending_review"
	FallbackCompleted     FallbackStatus = "completed"
	FallbackFailed        FallbackStatus = "failed"
)

// FallbackRecord is a raw webhook event that failed primary ingestion and
// awaits retry or manual review.
type FallbackRecord struct {
	ID         uuid.UUID
	ProviderID string
	Payload    []byte
	HadBody    bool
	Error      string
	RetryCount int
	Status     FallbackStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Strategy names which processing path handled an attempt.
type Strategy string

const (
	StrategyPrimary  Strategy = "primary"
	StrategyFallback Strategy = "fallback"
)

// Metric is one processing-attempt record. Append-only; aggregation is an
// external reporting concern.
type Metric struct {
	ID         uuid.UUID `json:"id"`
	Operation  string    `json:"operation"`
	Strategy   Strategy  `json:"strategy"`
	ProviderID string    `json:"providerId"`
	Success    bool      `json:"success"`
	Attempt    int       `json:"attempt"`
	DurationMs float64   `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

const fallbackColumns = `id, provider_id, payload, had_body, error, retry_count, status, created_at, updated_at`

// Repository persists fallback records and processing metrics.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanFallback(row pgx.Row) (*FallbackRecord, error) {
	var r FallbackRecord
	err := row.Scan(&r.ID, &r.ProviderID, &r.Payload, &r.HadBody, &r.Error,
		&r.RetryCount, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan fallback record: %w", err)
	}
	return &r, nil
}

// CreateFallback captures a failed webhook event for later retry.
func (r *Repository) CreateFallback(ctx context.Context, record FallbackRecord) (*FallbackRecord, error) {
	query := `
		INSERT INTO webhook_fallback_records (id, provider_id, payload, had_body, error, retry_count, status)
		VALUES ($1, $2, $3, $4, $5, 0, 'pending_review')
		RETURNING ` + fallbackColumns

	return scanFallback(r.pool.QueryRow(ctx, query,
		record.ID, record.ProviderID, record.Payload, record.HadBody, record.Error))
}

// GetFallback returns a single fallback record.
func (r *Repository) GetFallback(ctx context.Context, id uuid.UUID) (*FallbackRecord, error) {
	query := `SELECT ` + fallbackColumns + ` FROM webhook_fallback_records WHERE id = $1`
	return scanFallback(r.pool.QueryRow(ctx, query, id))
}

// ListFallback returns fallback records filtered by status, newest first.
func (r *Repository) ListFallback(ctx context.Context, status *FallbackStatus, limit int) ([]FallbackRecord, error) {
	query := `SELECT ` + fallbackColumns + `
		FROM webhook_fallback_records
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fallback records: %w", err)
	}
	defer rows.Close()

	var records []FallbackRecord
	for rows.Next() {
		rec, err := scanFallback(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ResolveFallback records a retry outcome: the count always advances, success
// and failure differ only in status and stored error.
func (r *Repository) ResolveFallback(ctx context.Context, id uuid.UUID, status FallbackStatus, retryErr string) (*FallbackRecord, error) {
	query := `
		UPDATE webhook_fallback_records
		SET status = $2, error = $3, retry_count = retry_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING ` + fallbackColumns

	return scanFallback(r.pool.QueryRow(ctx, query, id, status, retryErr))
}

// ListRetryable returns pending or failed records still under the retry cap,
// oldest first, for the sweep job.
func (r *Repository) ListRetryable(ctx context.Context, maxRetries, limit int) ([]FallbackRecord, error) {
	query := `SELECT ` + fallbackColumns + `
		FROM webhook_fallback_records
		WHERE status IN ('pending_review', 'failed') AND retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable records: %w", err)
	}
	defer rows.Close()

	var records []FallbackRecord
	for rows.Next() {
		rec, err := scanFallback(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// RecordMetric appends one processing-attempt record.
func (r *Repository) RecordMetric(ctx context.Context, m Metric) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO processing_metrics (id, operation, strategy, provider_id, success, attempt, duration_ms, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), m.Operation, m.Strategy, m.ProviderID, m.Success, m.Attempt, m.DurationMs, m.Error)
	if err != nil {
		return fmt.Errorf("failed to record processing metric: %w", err)
	}
	return nil
}

// ListMetrics returns recent processing metrics, newest first.
func (r *Repository) ListMetrics(ctx context.Context, limit int) ([]Metric, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, operation, strategy, provider_id, success, attempt, duration_ms, error, created_at
		FROM processing_metrics
		ORDER BY created_at DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.Operation, &m.Strategy, &m.ProviderID,
			&m.Success, &m.Attempt, &m.DurationMs, &m.Error, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processing metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
