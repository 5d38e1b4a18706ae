// Package repository persists SMS messages. Inbound inserts are idempotent on
// the provider message id so webhook redeliveries never duplicate rows.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no message matches the query.
var ErrNotFound = errors.New("message not found")

// Direction marks who sent the message.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Status is the delivery lifecycle of a message.
type Status string

const (
	StatusQueued      Status = "QUEUED"
	StatusSending     Status = "SENDING"
	StatusSent        Status = "SENT"
	StatusDelivered   Status = "DELIVERED"
	StatusFailed      Status = "FAILED"
	StatusUndelivered Status = "UNDELIVERED"
	StatusReceived    Status = "RECEIVED"
)

// Message is a stored SMS in either direction.
type Message struct {
	ID                uuid.UUID
	ContactID         uuid.UUID
	Direction         Direction
	Body              string
	Status            Status
	ProviderMessageID *string
	ErrorMessage      *string
	MediaKeys         []string
	CreatedAt         time.Time
}

const messageColumns = `id, contact_id, direction, body, status, provider_message_id, error_message, media_keys, created_at`

// Repository provides message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a message repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ContactID, &m.Direction, &m.Body, &m.Status,
		&m.ProviderMessageID, &m.ErrorMessage, &m.MediaKeys, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	return &m, nil
}

// insertInboundQuery repeats the partial index predicate in its conflict
// target. Postgres infers a partial unique index as the ON CONFLICT arbiter
// only when the predicate is spelled out; without it every insert fails
// before a row is written.
const insertInboundQuery = `
	INSERT INTO messages (id, contact_id, direction, body, status, provider_message_id, media_keys)
	VALUES ($1, $2, 'INBOUND', $3, 'RECEIVED', $4, $5)
	ON CONFLICT (provider_message_id, direction) WHERE provider_message_id IS NOT NULL DO NOTHING
	RETURNING ` + messageColumns

// InsertInbound stores an inbound message. When the provider message id was
// already ingested the existing row is returned and created is false; the
// caller treats that as success without re-running side effects.
func (r *Repository) InsertInbound(ctx context.Context, m Message) (*Message, bool, error) {
	saved, err := scanMessage(r.pool.QueryRow(ctx, insertInboundQuery, m.ID, m.ContactID, m.Body, m.ProviderMessageID, m.MediaKeys))
	if err == nil {
		return saved, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	// Conflict path: the row already exists from an earlier delivery.
	existing, err := r.GetByProviderID(ctx, *m.ProviderMessageID, DirectionInbound)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// InsertOutbound stores an outbound message before it is handed to the gateway.
func (r *Repository) InsertOutbound(ctx context.Context, m Message) (*Message, error) {
	query := `
		INSERT INTO messages (id, contact_id, direction, body, status, media_keys)
		VALUES ($1, $2, 'OUTBOUND', $3, $4, $5)
		RETURNING ` + messageColumns

	status := m.Status
	if status == "" {
		status = StatusQueued
	}
	return scanMessage(r.pool.QueryRow(ctx, query, m.ID, m.ContactID, m.Body, status, m.MediaKeys))
}

// MarkSent records the gateway's acceptance of an outbound message.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'SENT', provider_message_id = $2 WHERE id = $1`,
		id, providerMessageID)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a gateway rejection of an outbound message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = 'FAILED', error_message = $2 WHERE id = $1`,
		id, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return nil
}

// GetByID returns a single message.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.pool.QueryRow(ctx, query, id))
}

// GetByProviderID finds a message by its provider id and direction.
func (r *Repository) GetByProviderID(ctx context.Context, providerMessageID string, direction Direction) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE provider_message_id = $1 AND direction = $2`
	return scanMessage(r.pool.QueryRow(ctx, query, providerMessageID, direction))
}

// UpdateStatusByProviderID applies a delivery status callback to the matching
// outbound message. Returns ErrNotFound when the callback references a message
// we never sent (or haven't recorded yet).
func (r *Repository) UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status Status, errorMessage *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2, error_message = COALESCE($3, error_message)
		WHERE provider_message_id = $1 AND direction = 'OUTBOUND'`,
		providerMessageID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByContact returns a contact's full message history, oldest first.
func (r *Repository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE contact_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}
